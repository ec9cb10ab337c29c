// Package block implements the in-memory BlockBuffer that an ingest run
// fills one Entry at a time before handing it off to a committer
// (spec.md §4.5/§4.6).
package block

import (
	"time"

	"github.com/yunchih/nfcollect/internal/model"
)

// Buffer accumulates entries for a single block. It is not safe for
// concurrent use: exactly one ingest run owns a Buffer at a time, and
// ownership transfers to a committer goroutine once the buffer is handed
// off (spec.md §5).
//
// start/end track the ingest run's own clock (spec.md §4.6 steps 1 and 5:
// "record start_time = now" at allocation, "record end_time = now" at
// loop exit), not the timestamps of the entries it happens to hold — a
// run that drops every packet until its last second still has a correct
// window.
type Buffer struct {
	entries []model.Entry
	start   int64
	end     int64
}

// New returns an empty Buffer with room for capacity entries. The backing
// slice should come from a Pool in the hot path; New is for tests and for
// callers that don't need pooling.
func New(capacity uint32) *Buffer {
	return &Buffer{entries: make([]model.Entry, 0, capacity)}
}

// Len reports how many entries have been added so far.
func (b *Buffer) Len() int { return len(b.entries) }

// Cap reports the buffer's entry capacity.
func (b *Buffer) Cap() int { return cap(b.entries) }

// Full reports whether the buffer has reached its capacity (spec.md §4.4
// step 9 / §4.5).
func (b *Buffer) Full() bool { return len(b.entries) == cap(b.entries) }

// Add appends e to the buffer. It panics if the buffer is Full; the ingest
// loop never adds to a full buffer because it hands a buffer off as soon as
// it becomes Full.
func (b *Buffer) Add(e model.Entry) {
	if b.Full() {
		panic("block: Add called on a full buffer")
	}
	b.entries = append(b.entries, e)
}

// Entries returns the entries added so far, in admission order.
func (b *Buffer) Entries() []model.Entry { return b.entries }

// Start records the ingest run's start_time (spec.md §4.6 step 1). The
// ingest loop calls this once, immediately after drawing a fresh buffer
// from the pool.
func (b *Buffer) Start(now time.Time) { b.start = now.Unix() }

// Finish records the ingest run's end_time (spec.md §4.6 step 5). The
// ingest loop calls this once, immediately before handing the buffer to
// the committer.
func (b *Buffer) Finish(now time.Time) { b.end = now.Unix() }

// Reset empties the buffer in place so its backing array can be reused for
// the next block, without returning it to a Pool.
func (b *Buffer) Reset() {
	b.entries = b.entries[:0]
	b.start, b.end = 0, 0
}

// Header builds the committed Header for this buffer's current contents,
// recording the given compression type and stored payload size.
func (b *Buffer) Header(compression model.CompressionType, rawSize uint32) model.Header {
	return model.Header{
		NrEntries:       uint32(len(b.entries)),
		RawSize:         rawSize,
		CompressionType: compression,
		StartTime:       b.start,
		EndTime:         b.end,
	}
}

package model

import "sync/atomic"

// Metrics tracks operational counters across the ingest, commit and query
// pipelines. All fields are safe for concurrent use; the ingest loop, each
// committer goroutine and the query engine all update the same instance.
type Metrics struct {
	// Ingest (C4/C6)
	PacketsAdmitted  atomic.Uint64
	PacketsDropped   atomic.Uint64 // aggregate of the reasons below
	DroppedNonIPv4   atomic.Uint64
	DroppedFiltered  atomic.Uint64 // ACK-only / unsupported protocol
	DroppedUIDLookup atomic.Uint64
	DroppedRateLimit atomic.Uint64
	DroppedBlockFull atomic.Uint64
	BlocksCompleted  atomic.Uint64

	// Commit & retention (C7)
	BlocksCommitted   atomic.Uint64
	CommitFailures    atomic.Uint64
	CompressFallbacks atomic.Uint64 // compress failed, committed uncompressed
	BytesEvicted      atomic.Uint64
	RowsEvicted       atomic.Uint64
	StorageConsumed   atomic.Uint64

	// Query (C8)
	RowsScanned    atomic.Uint64
	RowsCorrupt    atomic.Uint64
	EntriesEmitted atomic.Uint64
}

// NewMetrics returns a ready-to-use, zeroed Metrics.
func NewMetrics() *Metrics { return &Metrics{} }

// RecordDrop increments reason and the aggregate PacketsDropped counter in
// one call, so callers in internal/packet never forget the aggregate.
func (m *Metrics) RecordDrop(reason *atomic.Uint64) {
	reason.Add(1)
	m.PacketsDropped.Add(1)
}

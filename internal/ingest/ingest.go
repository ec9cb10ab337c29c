// Package ingest drives the single active capture-to-block pipeline: read
// one datagram, run it through the filter, and append admitted entries to
// the current block until it is full or the run is cancelled (spec.md
// §4.4/§4.5/§4.6, C6).
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/yunchih/nfcollect/internal/block"
	"github.com/yunchih/nfcollect/internal/capture"
	"github.com/yunchih/nfcollect/internal/logging"
	"github.com/yunchih/nfcollect/internal/model"
	"github.com/yunchih/nfcollect/internal/packet"
)

// now is overridden in tests that need a deterministic clock.
var now = time.Now

// Loop owns one capture Source and the block Pool it draws empty buffers
// from, and emits completed buffers on Blocks until Run returns.
type Loop struct {
	source  capture.Source
	pool    *block.Pool
	metrics *model.Metrics
	logger  *logging.Logger

	// Blocks receives a filled Buffer every time one reaches capacity,
	// or when Run stops with a partially-filled buffer still pending.
	// Sends block until received, so the receiver must keep reading until
	// the channel is closed, and is responsible for returning each buffer
	// to pool eventually.
	Blocks chan *block.Buffer
}

// New returns a Loop reading from source, filling buffers drawn from
// pool, and publishing completed buffers on a channel of the given
// capacity.
func New(source capture.Source, pool *block.Pool, metrics *model.Metrics, blocksBacklog int) *Loop {
	return &Loop{
		source:  source,
		pool:    pool,
		metrics: metrics,
		logger:  logging.Default().Component("ingest"),
		Blocks:  make(chan *block.Buffer, blocksBacklog),
	}
}

// Run opens the capture source and ingests datagrams until ctx is
// cancelled, then closes the source and the Blocks channel. Exactly one
// Run may be active on a Loop at a time (spec.md §5).
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.Blocks)
	if err := l.source.Open(); err != nil {
		return err
	}
	defer l.source.Close()

	filter := packet.NewFilter(l.metrics)
	buf := l.pool.Get()
	buf.Start(now()) // spec.md §4.6 step 1: record start_time at allocation

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		buf.Finish(now()) // spec.md §4.6 step 5: record end_time at hand-off
		l.Blocks <- buf
		buf = l.pool.Get()
		buf.Start(now())
	}

	for {
		dg, err := l.source.Dispatch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				flush()
				return nil
			}
			l.logger.Warn("capture dispatch error", "err", err)
			continue
		}

		entry, reason := filter.Admit(dg.Payload, dg.UID, now())
		if reason != packet.DropNone {
			continue
		}

		// buf is always non-full here: flush() replaces it with a fresh
		// buffer as soon as it fills, below.
		buf.Add(entry)

		if buf.Full() {
			l.metrics.BlocksCompleted.Add(1)
			flush()
		}
	}
}

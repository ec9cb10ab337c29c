// Package commit runs the committer pool: it drains completed blocks from
// the ingest loop, compresses and persists each one, and runs retention GC
// after every commit (spec.md §4.6/§4.7, C7).
package commit

import (
	"context"
	"sync"

	"github.com/yunchih/nfcollect/internal/block"
	"github.com/yunchih/nfcollect/internal/codec"
	"github.com/yunchih/nfcollect/internal/constants"
	"github.com/yunchih/nfcollect/internal/logging"
	"github.com/yunchih/nfcollect/internal/model"
	"github.com/yunchih/nfcollect/internal/store"
)

// Committer persists blocks pulled off a channel, bounding concurrency
// with a buffered channel of permits: a counting semaphore without
// pulling in a separate dependency for it.
type Committer struct {
	store       *store.Store
	pool        *block.Pool
	compression model.CompressionType
	budget      uint64 // storage budget in bytes (spec.md §4.7)
	metrics     *model.Metrics
	logger      *logging.Logger

	permits chan struct{}
	wg      sync.WaitGroup
}

// New returns a Committer that persists blocks into s, allowing at most
// maxConcurrent commits in flight at once.
func New(s *store.Store, pool *block.Pool, compression model.CompressionType, budget uint64, metrics *model.Metrics, maxConcurrent int) *Committer {
	return &Committer{
		store:       s,
		pool:        pool,
		compression: compression,
		budget:      budget,
		metrics:     metrics,
		logger:      logging.Default().Component("commit"),
		permits:     make(chan struct{}, maxConcurrent),
	}
}

// Run consumes blocks from the channel until it is closed, committing each
// one on its own goroutine up to the configured concurrency limit. It
// blocks until every in-flight commit has finished. Cancelling ctx does not
// abort commits: every block received is still inserted.
func (c *Committer) Run(ctx context.Context, blocks <-chan *block.Buffer) {
	ctx = context.WithoutCancel(ctx)
	for buf := range blocks {
		buf := buf
		c.permits <- struct{}{}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer func() { <-c.permits }()
			c.commitOne(ctx, buf)
		}()
	}
	c.wg.Wait()
}

func (c *Committer) commitOne(ctx context.Context, buf *block.Buffer) {
	defer c.pool.Put(buf)

	entries := buf.Entries()
	raw := model.EncodeEntries(entries)

	compression := c.compression
	payload, err := codec.Compress(compression, raw)
	if err != nil {
		// Compression failures are not fatal: fall back to storing the
		// block uncompressed rather than losing it (spec.md §9).
		c.logger.Warn("compression failed, storing uncompressed", "err", err)
		c.metrics.CompressFallbacks.Add(1)
		compression = model.CompressionNone
		payload = raw
	}

	header := buf.Header(compression, uint32(len(payload)))
	if err := c.store.Insert(ctx, header, payload); err != nil {
		c.logger.Error("commit failed", "err", err)
		c.metrics.CommitFailures.Add(1)
		return
	}
	c.metrics.BlocksCommitted.Add(1)

	c.runRetention(ctx, uint64(len(payload)))
}

// runRetention applies the budget/consumed/cur retention formula of
// spec.md §4.7 after every successful commit. cur is the raw size of the
// block that was just committed.
func (c *Committer) runRetention(ctx context.Context, cur uint64) {
	consumed, err := c.store.FileSize()
	if err != nil {
		c.logger.Warn("retention: could not stat store", "err", err)
		return
	}
	c.metrics.StorageConsumed.Store(consumed)

	if c.budget == 0 {
		return // unbounded storage; GC disabled
	}

	remain := int64(c.budget) - int64(consumed)
	if remain > 0 {
		return
	}

	gc := uint64(-remain) + cur*constants.GCRate
	gcCap := uint64(float64(min64(consumed, c.budget)) * constants.GCCapFraction)
	if gc > gcCap {
		gc = gcCap
	}
	if gc == 0 {
		return
	}

	evictedBytes, evictedRows, err := c.store.DeleteOldestBytes(ctx, gc)
	if err != nil {
		c.logger.Warn("retention GC failed", "err", err)
		return
	}
	c.metrics.BytesEvicted.Add(evictedBytes)
	c.metrics.RowsEvicted.Add(evictedRows)

	if evictedRows > 0 {
		if err := c.store.Vacuum(ctx); err != nil {
			c.logger.Warn("retention: vacuum failed", "err", err)
		}
	}

	if newSize, err := c.store.FileSize(); err == nil {
		c.metrics.StorageConsumed.Store(newSize)
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

package nfcollect

import (
	"context"
	"fmt"
	"runtime"

	"github.com/yunchih/nfcollect/internal/block"
	"github.com/yunchih/nfcollect/internal/capture"
	"github.com/yunchih/nfcollect/internal/commit"
	"github.com/yunchih/nfcollect/internal/constants"
	"github.com/yunchih/nfcollect/internal/ingest"
	"github.com/yunchih/nfcollect/internal/logging"
	"github.com/yunchih/nfcollect/internal/store"
)

// Options configures a Collector (spec.md §6, nfcollect's CLI flags).
type Options struct {
	NFLOGGroup  uint16          // -g/--nflog_group
	StoragePath string          // -d/--storage
	StorageSize uint64          // -s/--storage_size, in bytes; required, > 0
	Compression CompressionType // -c/--compression
	Vacuum      bool            // -V/--vacuum: VACUUM the store before serving

	BlockCapacity     uint32 // entries per block; defaults to constants.DefaultCapacity
	CommitConcurrency int    // committer pool size; defaults to nproc-1, floor 1
	BlocksBacklog     int    // ingest->commit channel capacity; defaults to 2

	// Source overrides the capture source, for tests. Production callers
	// leave this nil and get the real netfilter NFLOG source.
	Source capture.Source
}

// Validate checks Options against the constraints of spec.md §6.
func (o *Options) Validate() error {
	if o.StoragePath == "" {
		return NewFatalError("Options.Validate", CodeConfiguration, fmt.Errorf("storage path is required"))
	}
	if o.StorageSize == 0 {
		return NewFatalError("Options.Validate", CodeConfiguration, fmt.Errorf("storage size must be greater than zero"))
	}
	return nil
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.BlockCapacity == 0 {
		out.BlockCapacity = constants.DefaultCapacity
	}
	if out.CommitConcurrency == 0 {
		out.CommitConcurrency = runtime.NumCPU() - 1
		if out.CommitConcurrency < 1 {
			out.CommitConcurrency = 1
		}
	}
	if out.BlocksBacklog == 0 {
		out.BlocksBacklog = 2
	}
	return out
}

// Collector runs the full ingest -> commit -> retention pipeline against
// one store (spec.md §5).
type Collector struct {
	opts    Options
	store   *store.Store
	metrics *Metrics
	logger  *logging.Logger
}

// New opens the store at opts.StoragePath and returns a Collector ready to
// Run. Callers must call Close when done.
func New(ctx context.Context, opts Options) (*Collector, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s, err := store.Open(ctx, opts.StoragePath)
	if err != nil {
		return nil, err
	}
	if opts.Vacuum {
		if err := s.Vacuum(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}

	return &Collector{
		opts:    opts,
		store:   s,
		metrics: NewMetrics(),
		logger:  logging.Default().Component("collector"),
	}, nil
}

// Metrics returns the Collector's counters, safe to read concurrently
// with Run.
func (c *Collector) Metrics() *Metrics { return c.metrics }

// Close releases the underlying store.
func (c *Collector) Close() error { return c.store.Close() }

// Run drives ingest and commit until ctx is cancelled, then drains any
// in-flight commits before returning (spec.md §5's single active ingest
// run, with a bounded committer pool downstream of it).
func (c *Collector) Run(ctx context.Context) error {
	src := c.opts.Source
	if src == nil {
		src = capture.NewNFLOGSource(c.opts.NFLOGGroup)
	}

	pool := block.NewPool(c.opts.BlockCapacity)
	loop := ingest.New(src, pool, c.metrics, c.opts.BlocksBacklog)
	committer := commit.New(c.store, pool, c.opts.Compression, c.opts.StorageSize, c.metrics, c.opts.CommitConcurrency)

	ingestDone := make(chan error, 1)
	go func() { ingestDone <- loop.Run(ctx) }()

	committer.Run(ctx, loop.Blocks)

	c.logger.Info("ingest loop stopped, committer drained")
	return <-ingestDone
}

package nfcollect

import (
	"context"

	"github.com/yunchih/nfcollect/internal/constants"
	"github.com/yunchih/nfcollect/internal/query"
	"github.com/yunchih/nfcollect/internal/store"
)

// Extract opens the store at path for the duration of the call and streams
// every Entry in tr, in chronological order, to emit. The store is opened
// with store.Open, the same read-write handle the collector uses, so a file
// that does not exist yet is created with empty tables
// (spec.md §6, the nfextract CLI). capacity is the block capacity the
// writing Collector was configured with, used to validate each row's
// header on read (spec.md §4.8 step 3); pass 0 to use the same default
// the collector uses when its own BlockCapacity is left unset.
func Extract(ctx context.Context, path string, tr Timerange, capacity uint32, emit func(Entry) error) error {
	s, err := store.Open(ctx, path)
	if err != nil {
		return err
	}
	defer s.Close()

	if capacity == 0 {
		capacity = constants.DefaultCapacity
	}

	metrics := NewMetrics()
	eng := query.New(s, metrics, capacity)
	return eng.Run(ctx, tr, emit)
}

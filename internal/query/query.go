// Package query answers time-ranged reads against the store: fetch the
// overlapping blocks, decompress each payload, and emit only the entries
// that actually fall within the requested range (spec.md §4.8, C8).
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yunchih/nfcollect/internal/codec"
	"github.com/yunchih/nfcollect/internal/logging"
	"github.com/yunchih/nfcollect/internal/model"
	"github.com/yunchih/nfcollect/internal/store"
)

// Engine answers queries against one store.
type Engine struct {
	store    *store.Store
	metrics  *model.Metrics
	logger   *logging.Logger
	capacity uint32
}

// New returns an Engine reading from s. capacity is the block capacity
// rows are validated against (spec.md §4.8 step 3: "nr_entries ≤
// capacity").
func New(s *store.Store, metrics *model.Metrics, capacity uint32) *Engine {
	return &Engine{store: s, metrics: metrics, capacity: capacity, logger: logging.Default().Component("query")}
}

// Run streams every entry whose timestamp falls in tr, in chronological
// order, to emit. A corrupt row (decompression failure, bad length, or a
// header that fails validation) is logged and skipped rather than failing
// the whole query (spec.md §7).
func (e *Engine) Run(ctx context.Context, tr model.Timerange, emit func(model.Entry) error) error {
	rows, err := e.store.SelectOverlapping(ctx, tr)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		row, err := rows.Scan()
		if err != nil {
			return model.NewError("query.Run", model.CodeTransientDB, err)
		}
		e.metrics.RowsScanned.Add(1)

		entries, err := decodeRow(row, e.capacity)
		if err != nil {
			e.logger.Warn("skipping corrupt row", "id", row.ID, "err", err)
			e.metrics.RowsCorrupt.Add(1)
			continue
		}

		sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp < entries[j].Timestamp })
		for _, entry := range entries {
			if !tr.Contains(entry.Timestamp) {
				continue
			}
			if err := emit(entry); err != nil {
				return err
			}
			e.metrics.EntriesEmitted.Add(1)
		}
	}
	if err := rows.Err(); err != nil {
		return model.NewError("query.Run", model.CodeTransientDB, err)
	}
	return nil
}

// decodeRow validates a row's header in full (spec.md §4.8 step 3: known
// compression type, raw_size equal to the stored blob length, nr_entries
// ≤ capacity, start_time ≤ end_time ≤ now) before attempting to
// decompress and decode it.
func decodeRow(row store.Row, capacity uint32) ([]model.Entry, error) {
	if err := row.Header.Validate(capacity, time.Now()); err != nil {
		return nil, model.NewError("query.decodeRow", model.CodeRowCorrupt, err)
	}
	if int(row.Header.RawSize) != len(row.Payload) {
		return nil, model.NewError("query.decodeRow", model.CodeRowCorrupt,
			fmt.Errorf("header raw_size %d != stored blob length %d", row.Header.RawSize, len(row.Payload)))
	}

	rawSize := row.Header.NrEntries * model.EntrySize
	raw, err := codec.Decompress(row.Header.CompressionType, row.Payload, int(rawSize))
	if err != nil {
		return nil, model.NewError("query.decodeRow", model.CodeRowCorrupt, err)
	}

	entries, err := model.DecodeEntries(raw)
	if err != nil {
		return nil, model.NewError("query.decodeRow", model.CodeRowCorrupt, err)
	}
	return entries, nil
}

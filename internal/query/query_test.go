package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yunchih/nfcollect/internal/block"
	"github.com/yunchih/nfcollect/internal/commit"
	"github.com/yunchih/nfcollect/internal/model"
	"github.com/yunchih/nfcollect/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nfcollect.db")
	s, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func commitEntries(t *testing.T, s *store.Store, entries []model.Entry, compression model.CompressionType) {
	t.Helper()
	pool := block.NewPool(uint32(len(entries)))
	metrics := model.NewMetrics()
	c := commit.New(s, pool, compression, 0, metrics, 1)

	buf := block.New(uint32(len(entries)))
	start, end := entries[0].Timestamp, entries[0].Timestamp
	for _, e := range entries {
		buf.Add(e)
		if e.Timestamp < start {
			start = e.Timestamp
		}
		if e.Timestamp > end {
			end = e.Timestamp
		}
	}
	// The header window is the ingest run's clock; stand in for an ingest
	// run that spanned exactly these entries.
	buf.Start(time.Unix(start, 0))
	buf.Finish(time.Unix(end, 0))
	blocks := make(chan *block.Buffer, 1)
	blocks <- buf
	close(blocks)
	c.Run(context.Background(), blocks)
}

func TestEngineEmitsEntriesInRangeChronologically(t *testing.T) {
	s := openTestStore(t)
	commitEntries(t, s, []model.Entry{
		{Timestamp: 200, Sport: 2},
		{Timestamp: 100, Sport: 1},
		{Timestamp: 300, Sport: 3},
	}, model.CompressionZSTD)

	eng := New(s, model.NewMetrics(), 10)
	var got []model.Entry
	err := eng.Run(context.Background(), model.Timerange{From: 100, Until: 300}, func(e model.Entry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2) // [100, 300) excludes the 300 timestamp
	require.EqualValues(t, 100, got[0].Timestamp)
	require.EqualValues(t, 200, got[1].Timestamp)
}

func TestEngineSkipsCorruptRowWithoutFailingQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// A header claiming more entries than its payload actually holds.
	require.NoError(t, s.Insert(ctx, model.Header{
		NrEntries:       4,
		RawSize:         model.EntrySize, // wrong: should be 4*EntrySize
		CompressionType: model.CompressionNone,
		StartTime:       1,
		EndTime:         2,
	}, make([]byte, model.EntrySize)))

	commitEntries(t, s, []model.Entry{{Timestamp: 5, Sport: 9}}, model.CompressionNone)

	metrics := model.NewMetrics()
	eng := New(s, metrics, 10)
	var got []model.Entry
	err := eng.Run(ctx, model.Timerange{From: 0, Until: 100}, func(e model.Entry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.EqualValues(t, 1, metrics.RowsCorrupt.Load())
}

func TestEngineNoMatchesReturnsNoError(t *testing.T) {
	s := openTestStore(t)
	eng := New(s, model.NewMetrics(), 10)
	calls := 0
	err := eng.Run(context.Background(), model.Timerange{From: 0, Until: 10}, func(e model.Entry) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, calls)
}

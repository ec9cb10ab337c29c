package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yunchih/nfcollect/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nfcollect.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertBlock(t *testing.T, s *Store, start, end int64, payload []byte) {
	t.Helper()
	h := model.Header{
		NrEntries:       uint32(len(payload) / model.EntrySize),
		RawSize:         uint32(len(payload)),
		CompressionType: model.CompressionNone,
		StartTime:       start,
		EndTime:         end,
	}
	require.NoError(t, s.Insert(context.Background(), h, payload))
}

func TestInsertAndSelectOverlapping(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertBlock(t, s, 100, 200, make([]byte, 48))
	insertBlock(t, s, 300, 400, make([]byte, 24))

	rows, err := s.SelectOverlapping(ctx, model.Timerange{From: 150, Until: 350})
	require.NoError(t, err)
	defer rows.Close()

	var got []Row
	for rows.Next() {
		row, err := rows.Scan()
		require.NoError(t, err)
		got = append(got, row)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)
}

func TestSelectOverlappingExcludesDisjointRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insertBlock(t, s, 100, 200, make([]byte, 24))

	rows, err := s.SelectOverlapping(ctx, model.Timerange{From: 500, Until: 600})
	require.NoError(t, err)
	defer rows.Close()
	require.False(t, rows.Next())
}

func TestDeleteOldestBytesEvictsInEndTimeOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertBlock(t, s, 1, 10, make([]byte, 24))
	insertBlock(t, s, 11, 20, make([]byte, 24))
	insertBlock(t, s, 21, 30, make([]byte, 24))

	evictedBytes, evictedRows, err := s.DeleteOldestBytes(ctx, 30)
	require.NoError(t, err)
	require.EqualValues(t, 48, evictedBytes)
	require.EqualValues(t, 2, evictedRows)

	rows, err := s.SelectOverlapping(ctx, model.Timerange{From: 0, Until: 1000})
	require.NoError(t, err)
	defer rows.Close()

	var remaining []Row
	for rows.Next() {
		row, err := rows.Scan()
		require.NoError(t, err)
		remaining = append(remaining, row)
	}
	require.Len(t, remaining, 1)
	require.EqualValues(t, 21, remaining[0].Header.StartTime)
}

func TestDeleteOldestBytesStopsWhenStoreEmpty(t *testing.T) {
	s := openTestStore(t)
	evictedBytes, evictedRows, err := s.DeleteOldestBytes(context.Background(), 1000)
	require.NoError(t, err)
	require.Zero(t, evictedBytes)
	require.Zero(t, evictedRows)
}

func TestFileSizeDoesNotShrinkAfterInsert(t *testing.T) {
	s := openTestStore(t)
	before, err := s.FileSize()
	require.NoError(t, err)

	insertBlock(t, s, 1, 2, make([]byte, 4096))

	after, err := s.FileSize()
	require.NoError(t, err)
	require.GreaterOrEqual(t, after, before)
}

func TestVacuumRunsWithoutError(t *testing.T) {
	s := openTestStore(t)
	insertBlock(t, s, 1, 2, make([]byte, 24))
	require.NoError(t, s.Vacuum(context.Background()))
}

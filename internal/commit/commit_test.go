package commit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yunchih/nfcollect/internal/block"
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

func filledBuffer(t *testing.T, n int) *block.Buffer {
	t.Helper()
	buf := block.New(uint32(n))
	buf.Start(time.Unix(100, 0))
	for i := 0; i < n; i++ {
		buf.Add(model.Entry{Timestamp: int64(100 + i), Sport: uint16(i)})
	}
	buf.Finish(time.Unix(int64(100+n-1), 0))
	return buf
}

func TestCommitterPersistsBlock(t *testing.T) {
	s := openTestStore(t)
	pool := block.NewPool(4)
	metrics := model.NewMetrics()
	c := New(s, pool, model.CompressionZSTD, 0, metrics, 2)

	blocks := make(chan *block.Buffer, 1)
	blocks <- filledBuffer(t, 4)
	close(blocks)

	c.Run(context.Background(), blocks)

	require.EqualValues(t, 1, metrics.BlocksCommitted.Load())

	rows, err := s.SelectOverlapping(context.Background(), model.Timerange{From: 0, Until: 1000})
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	row, err := rows.Scan()
	require.NoError(t, err)
	require.Equal(t, model.CompressionZSTD, row.Header.CompressionType)
}

func TestCommitterRunsRetentionUnderBudget(t *testing.T) {
	s := openTestStore(t)
	pool := block.NewPool(4)
	metrics := model.NewMetrics()
	// A budget far larger than anything committed here never triggers GC.
	c := New(s, pool, model.CompressionNone, 1<<30, metrics, 1)

	blocks := make(chan *block.Buffer, 1)
	blocks <- filledBuffer(t, 2)
	close(blocks)

	c.Run(context.Background(), blocks)

	require.EqualValues(t, 1, metrics.BlocksCommitted.Load())
	require.Zero(t, metrics.BytesEvicted.Load())
}

func TestCommitterEvictsWhenOverBudget(t *testing.T) {
	s := openTestStore(t)
	pool := block.NewPool(4)
	metrics := model.NewMetrics()

	// Commit one block first to establish some baseline storage.
	c0 := New(s, pool, model.CompressionNone, 0, metrics, 1)
	blocks0 := make(chan *block.Buffer, 1)
	blocks0 <- filledBuffer(t, 4)
	close(blocks0)
	c0.Run(context.Background(), blocks0)

	consumed, err := s.FileSize()
	require.NoError(t, err)

	// A tiny budget forces the next commit's retention pass to evict.
	c1 := New(s, pool, model.CompressionNone, consumed/2, metrics, 1)
	blocks1 := make(chan *block.Buffer, 1)
	blocks1 <- filledBuffer(t, 4)
	close(blocks1)
	c1.Run(context.Background(), blocks1)

	require.EqualValues(t, 2, metrics.BlocksCommitted.Load())
	require.Greater(t, metrics.RowsEvicted.Load(), uint64(0))
}

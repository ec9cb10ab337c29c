package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimerangeOverlaps(t *testing.T) {
	tr := Timerange{From: 100, Until: 200}
	require.True(t, tr.Overlaps(150, 250))
	require.True(t, tr.Overlaps(50, 150))
	require.False(t, tr.Overlaps(200, 300))
	require.False(t, tr.Overlaps(0, 100))
}

func TestTimerangeContains(t *testing.T) {
	tr := Timerange{From: 100, Until: 200}
	require.True(t, tr.Contains(100))
	require.True(t, tr.Contains(199))
	require.False(t, tr.Contains(200))
	require.False(t, tr.Contains(99))
}

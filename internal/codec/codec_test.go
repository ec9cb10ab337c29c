package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yunchih/nfcollect/internal/model"
)

func roundTrip(t *testing.T, alg model.CompressionType) {
	t.Helper()
	src := bytes.Repeat([]byte("nfcollect-entry-payload-"), 64)

	compressed, err := Compress(alg, src)
	require.NoError(t, err)

	decompressed, err := Decompress(alg, compressed, len(src))
	require.NoError(t, err)
	require.Equal(t, src, decompressed)
}

func TestRoundTripNone(t *testing.T) { roundTrip(t, model.CompressionNone) }
func TestRoundTripLZ4(t *testing.T)  { roundTrip(t, model.CompressionLZ4) }
func TestRoundTripZSTD(t *testing.T) { roundTrip(t, model.CompressionZSTD) }

func TestDecompressRejectsSizeMismatch(t *testing.T) {
	src := []byte("hello world")
	compressed, err := Compress(model.CompressionZSTD, src)
	require.NoError(t, err)

	_, err = Decompress(model.CompressionZSTD, compressed, len(src)+1)
	require.Error(t, err)
}

func TestNoneDecompressRejectsWrongLength(t *testing.T) {
	_, err := Decompress(model.CompressionNone, []byte("abc"), 4)
	require.Error(t, err)
}

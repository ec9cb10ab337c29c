// Package codec wraps the third-party compression libraries used to store
// block payloads, behind a pair of small interfaces (spec.md §4.1).
package codec

import (
	"fmt"
	"runtime"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/yunchih/nfcollect/internal/model"
)

// Compressor appends the compressed form of src to dst and returns the
// result.
type Compressor interface {
	Compress(src, dst []byte) ([]byte, error)
}

// Decompressor returns the decompressed form of src, exactly wantSize bytes
// long; for a payload stored uncompressed that is src itself rather than a
// copy. It must error rather than silently truncate or pad if
// the decompressed length does not match wantSize, so that a corrupt or
// truncated row is caught before it reaches the query engine.
type Decompressor interface {
	Decompress(src []byte, wantSize int) ([]byte, error)
}

type noneCodec struct{}

func (noneCodec) Compress(src, dst []byte) ([]byte, error) { return append(dst, src...), nil }

func (noneCodec) Decompress(src []byte, wantSize int) ([]byte, error) {
	if len(src) != wantSize {
		return nil, fmt.Errorf("nfcollect: uncompressed payload is %d bytes, want %d", len(src), wantSize)
	}
	return src, nil
}

type lz4Codec struct{}

func (lz4Codec) Compress(src, dst []byte) ([]byte, error) {
	var c lz4.Compressor
	bound := lz4.CompressBlockBound(len(src))
	buf := make([]byte, bound)
	n, err := c.CompressBlock(src, buf)
	if err != nil {
		return nil, fmt.Errorf("nfcollect: lz4 compress: %w", err)
	}
	if n == 0 {
		// Incompressible input: lz4 signals this by returning n == 0.
		// Store the raw bytes verbatim; Decompress accepts a payload of
		// exactly wantSize bytes that fails to decode as an lz4 block.
		return append(dst, src...), nil
	}
	return append(dst, buf[:n]...), nil
}

func (lz4Codec) Decompress(src []byte, wantSize int) ([]byte, error) {
	dst := make([]byte, wantSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		// The incompressible-input fallback in Compress stores the raw
		// bytes verbatim; accept that case here too.
		if len(src) == wantSize {
			return src, nil
		}
		return nil, fmt.Errorf("nfcollect: lz4 decompress: %w", err)
	}
	if n != wantSize {
		return nil, fmt.Errorf("nfcollect: lz4 decompressed %d bytes, want %d", n, wantSize)
	}
	return dst, nil
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() *zstdCodec {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err) // only fails on invalid options, which are fixed above
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	return &zstdCodec{enc: enc, dec: dec}
}

func (z *zstdCodec) Compress(src, dst []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, dst), nil
}

func (z *zstdCodec) Decompress(src []byte, wantSize int) ([]byte, error) {
	into := make([]byte, 0, wantSize)
	ret, err := z.dec.DecodeAll(src, into)
	if err != nil {
		return nil, fmt.Errorf("nfcollect: zstd decompress: %w", err)
	}
	if len(ret) != wantSize {
		return nil, fmt.Errorf("nfcollect: zstd decompressed %d bytes, want %d", len(ret), wantSize)
	}
	return ret, nil
}

// zstdSingleton is long-lived: the encoder and decoder both carry internal
// buffers and goroutine pools that are expensive to set up per block.
var zstdSingleton = newZstdCodec()

// For returns the Compressor for the given algorithm.
func For(alg model.CompressionType) Compressor {
	switch alg {
	case model.CompressionLZ4:
		return lz4Codec{}
	case model.CompressionZSTD:
		return zstdSingleton
	default:
		return noneCodec{}
	}
}

// DecompressorFor returns the Decompressor matching a header's declared
// compression type.
func DecompressorFor(alg model.CompressionType) Decompressor {
	switch alg {
	case model.CompressionLZ4:
		return lz4Codec{}
	case model.CompressionZSTD:
		return zstdSingleton
	default:
		return noneCodec{}
	}
}

// Compress is a convenience wrapper returning a freshly allocated result.
func Compress(alg model.CompressionType, src []byte) ([]byte, error) {
	return For(alg).Compress(src, nil)
}

// Decompress is a convenience wrapper around DecompressorFor.
func Decompress(alg model.CompressionType, src []byte, wantSize int) ([]byte, error) {
	return DecompressorFor(alg).Decompress(src, wantSize)
}

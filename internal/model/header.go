package model

import (
	"fmt"
	"time"

	"github.com/yunchih/nfcollect/internal/constants"
)

// CompressionType identifies the algorithm a block's payload was
// compressed with.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionLZ4
	CompressionZSTD
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompressionType accepts the CLI spellings from spec.md §6.
func ParseCompressionType(flag string) (CompressionType, error) {
	switch flag {
	case "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "zstandard":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("nfcollect: unknown compression algorithm %q", flag)
	}
}

// Header is the metadata committed alongside one block's payload.
type Header struct {
	NrEntries       uint32
	RawSize         uint32 // byte length of the payload as stored (compressed size if enabled)
	CompressionType CompressionType
	StartTime       int64 // timestamp of the first ingest attempt in this block
	EndTime         int64 // timestamp of the last ingest attempt in this block
}

// Validate checks the invariants of spec.md §3 against a header that was
// just read back from storage (capacity is the configured block capacity).
func (h Header) Validate(capacity uint32, now time.Time) error {
	if h.NrEntries > capacity {
		return fmt.Errorf("nfcollect: header nr_entries %d exceeds capacity %d", h.NrEntries, capacity)
	}
	if h.StartTime > h.EndTime {
		return fmt.Errorf("nfcollect: header start_time %d after end_time %d", h.StartTime, h.EndTime)
	}
	if h.EndTime > now.Unix() {
		return fmt.Errorf("nfcollect: header end_time %d is in the future", h.EndTime)
	}
	if h.RawSize == 0 {
		return fmt.Errorf("nfcollect: header raw_size must be > 0")
	}
	switch h.CompressionType {
	case CompressionNone, CompressionLZ4, CompressionZSTD:
	default:
		return fmt.Errorf("nfcollect: header has unknown compression_type %d", h.CompressionType)
	}
	if h.CompressionType == CompressionNone {
		want := h.NrEntries * EntrySize
		if h.RawSize != want {
			return fmt.Errorf("nfcollect: uncompressed header raw_size %d != nr_entries*%d = %d", h.RawSize, EntrySize, want)
		}
	}
	return nil
}

// EntrySize re-exports the packed wire size of one Entry for callers
// outside the package that need it (e.g. capacity arithmetic in the CLIs).
const EntrySize = constants.EntrySize

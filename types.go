// Package nfcollect implements a long-running daemon that ingests firewall
// log events from the kernel's netfilter NFLOG facility, accumulates them
// into fixed-size blocks, commits blocks to an embedded SQLite store with
// optional compression, enforces a storage budget through a retention GC,
// and answers time-ranged queries for the companion extractor tool.
//
// The heavy lifting lives in internal/* packages; this package re-exports
// their public types and wires them together behind Collector and Extract.
package nfcollect

import (
	"time"

	"github.com/yunchih/nfcollect/internal/model"
)

// Re-exported data model types (spec.md §3). These are type aliases so
// that values constructed by internal/* packages and values constructed by
// callers of this package are interchangeable.
type (
	Entry           = model.Entry
	Protocol        = model.Protocol
	Header          = model.Header
	CompressionType = model.CompressionType
	Timerange       = model.Timerange
	ErrorCode       = model.ErrorCode
	Error           = model.Error
	Metrics         = model.Metrics
)

const (
	ProtocolTCP = model.ProtocolTCP
	ProtocolUDP = model.ProtocolUDP

	CompressionNone = model.CompressionNone
	CompressionLZ4  = model.CompressionLZ4
	CompressionZSTD = model.CompressionZSTD

	CodeConfiguration = model.CodeConfiguration
	CodeStartup       = model.CodeStartup
	CodeRowCorrupt    = model.CodeRowCorrupt
	CodeTransientDB   = model.CodeTransientDB
	CodeCompression   = model.CodeCompression
)

// NewError builds a non-fatal *Error.
func NewError(op string, code ErrorCode, err error) *Error { return model.NewError(op, code, err) }

// NewFatalError builds a fatal *Error; callers at the binary entry point
// are expected to exit(1) after logging it.
func NewFatalError(op string, code ErrorCode, err error) *Error {
	return model.NewFatalError(op, code, err)
}

// NewMetrics returns a ready-to-use, zeroed Metrics.
func NewMetrics() *Metrics { return model.NewMetrics() }

// ParseCompressionType accepts the CLI spellings from spec.md §6.
func ParseCompressionType(flag string) (CompressionType, error) {
	return model.ParseCompressionType(flag)
}

// Since builds a Timerange covering [from, now).
func Since(from time.Time) Timerange { return model.Since(from) }

// EntrySize is the packed wire size of one Entry, in bytes.
const EntrySize = model.EntrySize


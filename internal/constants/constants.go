// Package constants holds the tunables shared across nfcollect's
// ingest, commit and query subsystems.
package constants

import "time"

const (
	// EntrySize is the packed, on-the-wire size of one Entry in bytes.
	EntrySize = 24

	// DefaultCapacity is the default number of entries held in one block,
	// chosen to fit roughly 256 KiB of raw (uncompressed) payload.
	DefaultCapacity = 256 * 1024 / EntrySize

	// NFLOGQueueThreshold is the kernel-side batch threshold: the number
	// of packets nflog accumulates before delivering one netlink message.
	NFLOGQueueThreshold = 64

	// NFLOGCopyLen is the number of bytes nflog copies per packet: an
	// IPv4 header plus a TCP header, which is also large enough to hold
	// a UDP header.
	NFLOGCopyLen = 20 + 20

	// RecvBufSize is the scratch buffer used for one blocking read of the
	// capture descriptor: up to NFLOGQueueThreshold packets, each taking
	// at most 128 bytes including netlink/attribute overhead.
	RecvBufSize = 128*NFLOGQueueThreshold + 1

	// SQLiteTableHeader and SQLiteTableData are the versioned table
	// names that make up the on-disk contract of the store.
	SQLiteTableHeader = "nfcollect_v1_header"
	SQLiteTableData   = "nfcollect_v1_data"

	// SQLiteDDLRetries is the number of times a transient busy/locked
	// error on table creation is retried before the process gives up.
	SQLiteDDLRetries = 8

	// SQLiteDDLBackoff is the delay between DDL retries.
	SQLiteDDLBackoff = time.Second

	// GCRate scales how much extra headroom a retention pass evicts
	// beyond the bytes strictly required to get back under budget, so
	// that back-to-back commits don't re-trigger GC every time.
	GCRate = 16

	// GCCapFraction bounds a single retention pass to evicting at most
	// this fraction of min(consumed, budget), so one pass never empties
	// the whole store.
	GCCapFraction = 0.25

	// CaptureRecvTimeout bounds how long a capture source's blocking read
	// may park in the kernel before returning control to the ingest loop
	// to recheck for shutdown. Closing the capture while a read is
	// parked does not reliably unblock it on Linux, so the read is given
	// a deadline instead (spec.md §4.3, §9 "Signal-to-shutdown wakeup").
	CaptureRecvTimeout = 500 * time.Millisecond
)

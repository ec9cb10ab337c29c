package packet

import (
	"time"

	"github.com/yunchih/nfcollect/internal/model"
)

// DropReason explains why a datagram was not admitted. Drops are never
// errors (spec.md §7): they are silent, and only observable via Metrics.
type DropReason int

const (
	DropNone DropReason = iota
	DropNonIPv4
	DropFilteredProtocol // non-TCP/UDP, or TCP without SYN/PSH
	DropUIDLookup
	DropRateLimited
)

func (r DropReason) String() string {
	switch r {
	case DropNonIPv4:
		return "non-ipv4"
	case DropFilteredProtocol:
		return "filtered-protocol"
	case DropUIDLookup:
		return "uid-lookup-failed"
	case DropRateLimited:
		return "rate-limited"
	default:
		return "none"
	}
}

// UIDLookup resolves the sending uid for the datagram currently being
// parsed. It is supplied by the capture source's per-datagram metadata
// handle (spec.md §4.3/§4.4 step 6).
type UIDLookup func() (uint32, error)

// Filter holds the per-ingest-run rate-limiting state (spec.md §4.4 step 8
// and §9's note that the single static slot in the original C source is
// made an explicit per-ingest field here). It is owned by exactly one
// ingest run and must not be shared across concurrent runs.
type Filter struct {
	metrics  *model.Metrics
	prevHash uint64
	hasPrev  bool
}

// NewFilter returns a Filter with no rate-limiting history, ready for a
// fresh ingest run. metrics may be nil in tests.
func NewFilter(metrics *model.Metrics) *Filter { return &Filter{metrics: metrics} }

func (f *Filter) recordDrop(reason DropReason) {
	if f.metrics == nil {
		return
	}
	switch reason {
	case DropNonIPv4:
		f.metrics.RecordDrop(&f.metrics.DroppedNonIPv4)
	case DropFilteredProtocol:
		f.metrics.RecordDrop(&f.metrics.DroppedFiltered)
	case DropUIDLookup:
		f.metrics.RecordDrop(&f.metrics.DroppedUIDLookup)
	case DropRateLimited:
		f.metrics.RecordDrop(&f.metrics.DroppedRateLimit)
	}
}

// Admit parses one raw IPv4 datagram and decides whether it becomes an
// Entry, per spec.md §4.4. now is the ingest-time clock; passing it in
// keeps the function deterministic and testable.
func (f *Filter) Admit(raw []byte, uid UIDLookup, now time.Time) (model.Entry, DropReason) {
	entry, reason := f.admit(raw, uid, now)
	if reason == DropNone {
		if f.metrics != nil {
			f.metrics.PacketsAdmitted.Add(1)
		}
	} else {
		f.recordDrop(reason)
	}
	return entry, reason
}

func (f *Filter) admit(raw []byte, uid UIDLookup, now time.Time) (model.Entry, DropReason) {
	iph, ok := parseIPv4(raw)
	if !ok {
		return model.Entry{}, DropNonIPv4
	}

	inner := raw[iph.IHL:]
	var sport, dport uint16

	switch iph.Protocol {
	case protoTCP:
		tcph, ok := parseTCP(inner)
		if !ok {
			return model.Entry{}, DropFilteredProtocol
		}
		if !tcph.SYN && !tcph.PSH {
			// ACK-only noise is suppressed.
			return model.Entry{}, DropFilteredProtocol
		}
		sport, dport = tcph.Sport, tcph.Dport
	case protoUDP:
		udph, ok := parseUDP(inner)
		if !ok {
			return model.Entry{}, DropFilteredProtocol
		}
		sport, dport = udph.Sport, udph.Dport
	default:
		// Includes IPv6, which never reaches here as IPv6 (version nibble
		// != 4 fails parseIPv4 already); anything else is dropped silently.
		return model.Entry{}, DropFilteredProtocol
	}

	ts := now.Unix()

	// Uid lookup (step 6) happens before the rate-limit hash update (step
	// 8): a datagram dropped for a failed lookup must not consume the
	// rate-limiter's slot, or a legitimate packet with the same
	// sport+second right behind it would be wrongly rate-limited.
	gotUID, err := uid()
	if err != nil {
		return model.Entry{}, DropUIDLookup
	}

	// Rate-limit: a single-slot de-duplicator keyed on sport XOR
	// timestamp. The kernel delivers one process's packets contiguously,
	// so a burst from one process collapses to a single admitted entry
	// per second.
	hash := uint64(sport) ^ uint64(ts)
	if f.hasPrev && hash == f.prevHash {
		return model.Entry{}, DropRateLimited
	}
	f.prevHash = hash
	f.hasPrev = true

	return model.Entry{
		Timestamp: ts,
		Daddr:     iph.Daddr,
		UID:       gotUID,
		Protocol:  model.Protocol(iph.Protocol),
		Sport:     sport,
		Dport:     dport,
	}, DropNone
}

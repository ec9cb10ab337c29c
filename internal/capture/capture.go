// Package capture abstracts the kernel facility an ingest run reads
// datagrams from. The only production implementation is the netfilter
// NFLOG socket (nflog_linux.go); on non-Linux builds that source fails at
// Open (nflog_other.go), and tests use FakeSource (spec.md §4.3).
package capture

import "context"

// Datagram is one captured unit handed to the filter: the raw payload
// bytes and a lazily-resolved sender uid.
type Datagram struct {
	Payload []byte
	UID     func() (uint32, error)
}

// Source is the capture abstraction the ingest loop drives. Open binds to
// the configured log group; Dispatch blocks until one datagram is
// available or ctx is cancelled; Close releases the underlying socket.
type Source interface {
	Open() error
	Dispatch(ctx context.Context) (Datagram, error)
	Close() error
}

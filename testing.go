package nfcollect

import (
	"github.com/yunchih/nfcollect/internal/capture"
)

// FakeSource replays a fixed slice of Datagrams in place of a real
// netfilter NFLOG socket, for tests that exercise a full Collector
// without root privileges or a Linux kernel.
type FakeSource = capture.FakeSource

// SyntheticTCPSYN builds the raw IPv4/TCP payload a real nflog socket
// would deliver for a SYN segment, suitable for feeding to a FakeSource.
func SyntheticTCPSYN(daddr uint32, sport, dport uint16) []byte {
	buf := make([]byte, 40)
	buf[0] = 0x45
	buf[9] = 6 // TCP
	buf[16], buf[17], buf[18], buf[19] = byte(daddr>>24), byte(daddr>>16), byte(daddr>>8), byte(daddr)

	tcp := buf[20:]
	tcp[0], tcp[1] = byte(sport>>8), byte(sport)
	tcp[2], tcp[3] = byte(dport>>8), byte(dport)
	tcp[13] = 1 << 1 // SYN flag
	return buf
}

// FixedUID returns a capture.Datagram UID resolver that always succeeds
// with uid.
func FixedUID(uid uint32) func() (uint32, error) {
	return func() (uint32, error) { return uid, nil }
}

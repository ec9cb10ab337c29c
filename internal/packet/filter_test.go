package packet

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yunchih/nfcollect/internal/model"
)

// buildIPv4TCP constructs a minimal 20-byte IPv4 header over a 20-byte TCP
// header, with no options and no payload.
func buildIPv4TCP(daddr uint32, sport, dport uint16, flags byte) []byte {
	buf := make([]byte, ipv4MinHeaderLen+tcpMinHeaderLen)
	buf[0] = 0x45 // version 4, IHL 5
	buf[9] = protoTCP
	buf[16] = byte(daddr >> 24)
	buf[17] = byte(daddr >> 16)
	buf[18] = byte(daddr >> 8)
	buf[19] = byte(daddr)

	tcp := buf[ipv4MinHeaderLen:]
	tcp[0] = byte(sport >> 8)
	tcp[1] = byte(sport)
	tcp[2] = byte(dport >> 8)
	tcp[3] = byte(dport)
	tcp[13] = flags
	return buf
}

func buildIPv4UDP(daddr uint32, sport, dport uint16) []byte {
	buf := make([]byte, ipv4MinHeaderLen+udpHeaderLen)
	buf[0] = 0x45
	buf[9] = protoUDP
	buf[16] = byte(daddr >> 24)
	buf[17] = byte(daddr >> 16)
	buf[18] = byte(daddr >> 8)
	buf[19] = byte(daddr)

	udp := buf[ipv4MinHeaderLen:]
	udp[0] = byte(sport >> 8)
	udp[1] = byte(sport)
	udp[2] = byte(dport >> 8)
	udp[3] = byte(dport)
	return buf
}

func fixedUID(uid uint32) UIDLookup {
	return func() (uint32, error) { return uid, nil }
}

func TestFilterAdmitsSYNSegment(t *testing.T) {
	f := NewFilter(model.NewMetrics())
	now := time.Unix(1000, 0)

	raw := buildIPv4TCP(0x01020304, 4000, 80, tcpFlagSYN)
	entry, reason := f.Admit(raw, fixedUID(1000), now)

	require.Equal(t, DropNone, reason)
	require.Equal(t, model.ProtocolTCP, entry.Protocol)
	require.EqualValues(t, 4000, entry.Sport)
	require.EqualValues(t, 80, entry.Dport)
	require.EqualValues(t, 1000, entry.UID)
	require.Equal(t, "1.2.3.4", entry.DaddrString())
}

func TestFilterDropsACKOnly(t *testing.T) {
	f := NewFilter(model.NewMetrics())
	raw := buildIPv4TCP(0x01020304, 4000, 80, tcpFlagACK)

	_, reason := f.Admit(raw, fixedUID(1000), time.Unix(1000, 0))
	require.Equal(t, DropFilteredProtocol, reason)
}

func TestFilterAdmitsUDP(t *testing.T) {
	f := NewFilter(nil)
	raw := buildIPv4UDP(0x0a000001, 53, 12345)

	entry, reason := f.Admit(raw, fixedUID(0), time.Unix(5, 0))
	require.Equal(t, DropNone, reason)
	require.Equal(t, model.ProtocolUDP, entry.Protocol)
}

func TestFilterDropsNonIPv4(t *testing.T) {
	f := NewFilter(nil)
	raw := []byte{0x60, 0, 0, 0, 0, 0, 0, 0} // version nibble 6

	_, reason := f.Admit(raw, fixedUID(0), time.Now())
	require.Equal(t, DropNonIPv4, reason)
}

func TestFilterRateLimitsRepeatedHash(t *testing.T) {
	f := NewFilter(nil)
	now := time.Unix(42, 0)
	raw := buildIPv4TCP(0x01020304, 4000, 80, tcpFlagSYN)

	_, first := f.Admit(raw, fixedUID(0), now)
	require.Equal(t, DropNone, first)

	_, second := f.Admit(raw, fixedUID(0), now)
	require.Equal(t, DropRateLimited, second)

	// A new second changes the hash and is admitted again.
	_, third := f.Admit(raw, fixedUID(0), now.Add(time.Second))
	require.Equal(t, DropNone, third)
}

func TestFilterDropsOnUIDLookupFailure(t *testing.T) {
	f := NewFilter(nil)
	raw := buildIPv4TCP(0x01020304, 4000, 80, tcpFlagSYN)

	failingUID := func() (uint32, error) { return 0, errors.New("no such process") }
	_, reason := f.Admit(raw, failingUID, time.Unix(1, 0))
	require.Equal(t, DropUIDLookup, reason)
}

func TestFilterUIDLookupFailureDoesNotPoisonRateLimiter(t *testing.T) {
	f := NewFilter(nil)
	now := time.Unix(42, 0)
	raw := buildIPv4TCP(0x01020304, 4000, 80, tcpFlagSYN)

	failingUID := func() (uint32, error) { return 0, errors.New("no such process") }
	_, reason := f.Admit(raw, failingUID, now)
	require.Equal(t, DropUIDLookup, reason)

	// Same sport+second, but this time the uid lookup succeeds: it must
	// be admitted, not rate-limited by the failed lookup above.
	_, second := f.Admit(raw, fixedUID(1000), now)
	require.Equal(t, DropNone, second)
}

func TestFilterDropsTruncatedDatagram(t *testing.T) {
	f := NewFilter(nil)
	_, reason := f.Admit([]byte{0x45, 0, 0, 0}, fixedUID(0), time.Now())
	require.Equal(t, DropNonIPv4, reason)
}

func TestDropReasonString(t *testing.T) {
	require.Equal(t, "non-ipv4", DropNonIPv4.String())
	require.Equal(t, "none", DropNone.String())
}

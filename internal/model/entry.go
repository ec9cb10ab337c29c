package model

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/yunchih/nfcollect/internal/constants"
)

// Protocol identifies the transport protocol of a captured connection.
type Protocol uint8

const (
	ProtocolTCP Protocol = 6
	ProtocolUDP Protocol = 17
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "TCP"
	case ProtocolUDP:
		return "UDP"
	default:
		return fmt.Sprintf("proto(%d)", uint8(p))
	}
}

// Entry is one ingested connection record: timestamp, destination address,
// uid, protocol and port pair. It has a fixed 24-byte wire layout that is
// stable across writers and readers (spec.md §3).
type Entry struct {
	Timestamp int64    // seconds since the Unix epoch
	Daddr     uint32   // destination IPv4 address, network byte order value held in host form
	UID       uint32   // sender uid, as reported by the capture facility
	Protocol  Protocol // TCP or UDP
	Sport     uint16   // source port
	Dport     uint16   // destination port
}

// Compile-time reminder that the in-memory layout happens to match the
// wire layout's size (natural alignment rounds Entry up to 24 bytes on
// common platforms); MarshalBinary/UnmarshalEntry do the real encoding
// and never depend on this holding.
var _ [constants.EntrySize]byte = [unsafe.Sizeof(Entry{})]byte{}

// MarshalBinary encodes e in the fixed 24-byte wire layout.
func (e Entry) MarshalBinary() []byte {
	buf := make([]byte, constants.EntrySize)
	putEntry(buf, e)
	return buf
}

// putEntry writes e into buf[:24] without allocating.
func putEntry(buf []byte, e Entry) {
	_ = buf[:constants.EntrySize] // bounds check hint
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.Timestamp))
	binary.LittleEndian.PutUint32(buf[8:12], e.Daddr)
	binary.LittleEndian.PutUint32(buf[12:16], e.UID)
	buf[16] = byte(e.Protocol)
	buf[17] = 0 // padding
	binary.LittleEndian.PutUint16(buf[18:20], 0)
	binary.LittleEndian.PutUint16(buf[20:22], e.Sport)
	binary.LittleEndian.PutUint16(buf[22:24], e.Dport)
}

// UnmarshalEntry decodes one Entry from buf[:24].
func UnmarshalEntry(buf []byte) (Entry, error) {
	if len(buf) < constants.EntrySize {
		return Entry{}, fmt.Errorf("nfcollect: entry buffer too short: got %d, want %d", len(buf), constants.EntrySize)
	}
	return Entry{
		Timestamp: int64(binary.LittleEndian.Uint64(buf[0:8])),
		Daddr:     binary.LittleEndian.Uint32(buf[8:12]),
		UID:       binary.LittleEndian.Uint32(buf[12:16]),
		Protocol:  Protocol(buf[16]),
		Sport:     binary.LittleEndian.Uint16(buf[20:22]),
		Dport:     binary.LittleEndian.Uint16(buf[22:24]),
	}, nil
}

// EncodeEntries packs entries into their wire form, one after another.
func EncodeEntries(entries []Entry) []byte {
	buf := make([]byte, len(entries)*constants.EntrySize)
	for i, e := range entries {
		putEntry(buf[i*constants.EntrySize:], e)
	}
	return buf
}

// DecodeEntries unpacks a buffer of concatenated wire-form entries.
// It errors if buf's length isn't a multiple of the entry size.
func DecodeEntries(buf []byte) ([]Entry, error) {
	if len(buf)%constants.EntrySize != 0 {
		return nil, fmt.Errorf("nfcollect: entry buffer length %d not a multiple of %d", len(buf), constants.EntrySize)
	}
	n := len(buf) / constants.EntrySize
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		e, err := UnmarshalEntry(buf[i*constants.EntrySize:])
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// DaddrString renders Daddr as a dotted-quad IPv4 address.
func (e Entry) DaddrString() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		byte(e.Daddr>>24), byte(e.Daddr>>16), byte(e.Daddr>>8), byte(e.Daddr))
}

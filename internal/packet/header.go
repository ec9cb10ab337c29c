// Package packet parses raw IPv4 datagrams captured off the nflog facility
// and turns the ones worth keeping into model.Entry values (spec.md §4.4).
package packet

import "encoding/binary"

const (
	ipv4MinHeaderLen = 20
	tcpMinHeaderLen  = 20
	udpHeaderLen     = 8

	protoTCP = 6
	protoUDP = 17
)

// ipv4Header is the subset of an IPv4 header this package cares about.
type ipv4Header struct {
	IHL      int // header length in bytes
	Protocol uint8
	Daddr    uint32
}

// parseIPv4 reads an IPv4 header from the front of buf. It returns ok=false
// for anything that isn't a well-formed IPv4 datagram (spec.md §4.4 step 1).
func parseIPv4(buf []byte) (ipv4Header, bool) {
	if len(buf) < ipv4MinHeaderLen {
		return ipv4Header{}, false
	}
	versionIHL := buf[0]
	if versionIHL>>4 != 4 {
		return ipv4Header{}, false
	}
	ihl := int(versionIHL&0x0f) * 4
	if ihl < ipv4MinHeaderLen || len(buf) < ihl {
		return ipv4Header{}, false
	}
	return ipv4Header{
		IHL:      ihl,
		Protocol: buf[9],
		Daddr:    binary.BigEndian.Uint32(buf[16:20]),
	}, true
}

// tcpFlags bit positions within byte 13 of a TCP header.
const (
	tcpFlagFIN = 1 << 0
	tcpFlagSYN = 1 << 1
	tcpFlagRST = 1 << 2
	tcpFlagPSH = 1 << 3
	tcpFlagACK = 1 << 4
)

type tcpHeader struct {
	Sport, Dport uint16
	SYN, PSH     bool
}

func parseTCP(buf []byte) (tcpHeader, bool) {
	if len(buf) < tcpMinHeaderLen {
		return tcpHeader{}, false
	}
	flags := buf[13]
	return tcpHeader{
		Sport: binary.BigEndian.Uint16(buf[0:2]),
		Dport: binary.BigEndian.Uint16(buf[2:4]),
		SYN:   flags&tcpFlagSYN != 0,
		PSH:   flags&tcpFlagPSH != 0,
	}, true
}

type udpHeader struct {
	Sport, Dport uint16
}

func parseUDP(buf []byte) (udpHeader, bool) {
	if len(buf) < udpHeaderLen {
		return udpHeader{}, false
	}
	return udpHeader{
		Sport: binary.BigEndian.Uint16(buf[0:2]),
		Dport: binary.BigEndian.Uint16(buf[2:4]),
	}, true
}

// Package nlproto speaks the minimal subset of the netfilter NFLOG
// netlink protocol nfcollect needs: binding a log group in a chosen copy
// mode, and decoding NFULNL_MSG_PACKET notifications back into raw
// datagrams and their sender uid (spec.md §4.3).
package nlproto

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// NFNETLINK subsystem and message types (linux/netfilter/nfnetlink_log.h).
const (
	nfnlSubsysULog = 4

	nfulnlMsgPacket = 0
	nfulnlMsgConfig = 1
)

// Attribute types carried in NFULNL_MSG_CONFIG messages.
const (
	nfulaCfgCmd    = 1
	nfulaCfgMode   = 2
	nfulaCfgQThresh = 5
)

// Attribute types carried in NFULNL_MSG_PACKET messages.
const (
	nfulaPacketHdr = 1
	nfulaUID       = 11
	nfulaPayload   = 9
)

// Config commands, carried as the 1-byte value of an nfulaCfgCmd attribute.
const (
	CfgCmdPFBind   = 3
	CfgCmdPFUnbind = 4
	CfgCmdBind     = 1
	CfgCmdUnbind   = 2
)

// Copy modes, carried in the nfulnl_msg_config_mode payload.
const (
	CopyNone   = 0x00
	CopyMeta   = 0x01
	CopyPacket = 0x02
)

const nlmsgAlign = 4

func align(n int) int { return (n + nlmsgAlign - 1) &^ (nlmsgAlign - 1) }

// subsysType packs a netfilter subsystem id and message type into the
// 16-bit nlmsghdr.Type field, per NFNL_SUBSYS_ID/NFNL_MSG_TYPE.
func subsysType(subsys, msgType uint8) uint16 {
	return uint16(subsys)<<8 | uint16(msgType)
}

// putNlMsgHdr writes a netlink message header.
func putNlMsgHdr(buf []byte, length uint32, msgType uint16, flags uint16, seq uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], length)
	binary.LittleEndian.PutUint16(buf[4:6], msgType)
	binary.LittleEndian.PutUint16(buf[6:8], flags)
	binary.LittleEndian.PutUint32(buf[8:12], seq)
	binary.LittleEndian.PutUint32(buf[12:16], 0) // pid, kernel fills in for requests
}

// putAttr appends a TLV-encoded, 4-byte padded attribute to buf.
func putAttr(buf []byte, attrType uint16, value []byte) []byte {
	hdrLen := 4
	totalLen := hdrLen + len(value)
	out := make([]byte, align(totalLen))
	binary.LittleEndian.PutUint16(out[0:2], uint16(totalLen))
	binary.LittleEndian.PutUint16(out[2:4], attrType)
	copy(out[4:], value)
	return append(buf, out...)
}

const nlmsghdrLen = 16
const nfgenmsgLen = 4

func putNfGenMsg(buf []byte, family uint8) {
	buf[0] = family
	buf[1] = unix.AF_UNSPEC // nfgenmsg.version, 0 == NFNETLINK_V0
	binary.BigEndian.PutUint16(buf[2:4], 0)
}

// BindRequest builds the two netlink messages needed to start receiving
// NFLOG notifications for one group: a protocol-family bind (so the
// kernel starts delivering to this socket at all) followed by the actual
// group bind carrying the copy mode and queue threshold.
func BindRequest(family uint8, group uint16, copyMode uint8, copyRange uint32, qthresh uint32, seq uint32) [][]byte {
	pfBind := configMessage(family, 0, seq, func(body []byte) []byte {
		return putAttr(body, nfulaCfgCmd, []byte{CfgCmdPFBind})
	})

	groupBind := configMessage(family, group, seq+1, func(body []byte) []byte {
		body = putAttr(body, nfulaCfgCmd, []byte{CfgCmdBind})
		mode := make([]byte, 8)
		binary.BigEndian.PutUint32(mode[0:4], copyRange)
		mode[4] = copyMode
		body = putAttr(body, nfulaCfgMode, mode)
		qt := make([]byte, 4)
		binary.BigEndian.PutUint32(qt, qthresh)
		body = putAttr(body, nfulaCfgQThresh, qt)
		return body
	})

	return [][]byte{pfBind, groupBind}
}

func configMessage(family uint8, group uint16, seq uint32, addAttrs func([]byte) []byte) []byte {
	body := make([]byte, nfgenmsgLen)
	putNfGenMsg(body, family)
	binary.BigEndian.PutUint16(body[2:4], group)
	body = addAttrs(body)

	msg := make([]byte, nlmsghdrLen)
	msg = append(msg, body...)
	putNlMsgHdr(msg, uint32(len(msg)), subsysType(nfnlSubsysULog, nfulnlMsgConfig),
		unix.NLM_F_REQUEST|unix.NLM_F_ACK, seq)
	return msg
}

// Datagram is one decoded NFULNL_MSG_PACKET notification.
type Datagram struct {
	Payload []byte
	UID     *uint32 // nil if the kernel could not resolve a sending socket
}

// DecodePacket parses a raw netlink message, returning the embedded
// datagram if msg is an NFULNL_MSG_PACKET notification addressed to our
// subsystem, or ok=false for anything else (acks, errors from other
// subsystems sharing the socket).
func DecodePacket(msg []byte) (Datagram, bool, error) {
	if len(msg) < nlmsghdrLen {
		return Datagram{}, false, fmt.Errorf("nlproto: short netlink message (%d bytes)", len(msg))
	}
	msgType := binary.LittleEndian.Uint16(msg[4:6])
	subsys := uint8(msgType >> 8)
	kind := uint8(msgType & 0xff)
	if subsys != nfnlSubsysULog || kind != nfulnlMsgPacket {
		return Datagram{}, false, nil
	}

	body := msg[nlmsghdrLen:]
	if len(body) < nfgenmsgLen {
		return Datagram{}, false, fmt.Errorf("nlproto: truncated nfgenmsg")
	}

	var dg Datagram
	for off := nfgenmsgLen; off+4 <= len(body); {
		attrLen := int(binary.LittleEndian.Uint16(body[off : off+2]))
		attrType := binary.LittleEndian.Uint16(body[off+2:off+4]) & 0x7fff // NLA_F_NESTED/NET_BYTEORDER bits
		if attrLen < 4 || off+attrLen > len(body) {
			return Datagram{}, false, fmt.Errorf("nlproto: malformed attribute at offset %d", off)
		}
		value := body[off+4 : off+attrLen]
		switch attrType {
		case nfulaPayload:
			dg.Payload = append([]byte(nil), value...)
		case nfulaUID:
			if len(value) >= 4 {
				uid := binary.BigEndian.Uint32(value[:4])
				dg.UID = &uid
			}
		}
		off += align(attrLen)
	}

	if dg.Payload == nil {
		return Datagram{}, false, fmt.Errorf("nlproto: packet notification missing payload attribute")
	}
	return dg, true, nil
}

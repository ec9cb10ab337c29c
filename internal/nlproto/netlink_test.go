package nlproto

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildPacketMsg(payload []byte, uid *uint32) []byte {
	body := make([]byte, nfgenmsgLen)
	putNfGenMsg(body, 2)
	body = putAttr(body, nfulaPayload, payload)
	if uid != nil {
		uidBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(uidBuf, *uid)
		body = putAttr(body, nfulaUID, uidBuf)
	}

	msg := make([]byte, nlmsghdrLen)
	msg = append(msg, body...)
	putNlMsgHdr(msg, uint32(len(msg)), subsysType(nfnlSubsysULog, nfulnlMsgPacket), 0, 1)
	return msg
}

func TestDecodePacketExtractsPayloadAndUID(t *testing.T) {
	uid := uint32(1000)
	payload := []byte{0x45, 0x00, 0x00, 0x14, 1, 2, 3, 4}
	msg := buildPacketMsg(payload, &uid)

	dg, ok, err := DecodePacket(msg)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload, dg.Payload)
	require.NotNil(t, dg.UID)
	require.Equal(t, uid, *dg.UID)
}

func TestDecodePacketWithoutUID(t *testing.T) {
	payload := []byte{0x45, 0x00}
	msg := buildPacketMsg(payload, nil)

	dg, ok, err := DecodePacket(msg)
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, dg.UID)
}

func TestDecodePacketIgnoresOtherSubsystems(t *testing.T) {
	msg := make([]byte, nlmsghdrLen)
	putNlMsgHdr(msg, uint32(len(msg)), subsysType(9, 0), 0, 1)

	_, ok, err := DecodePacket(msg)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDecodePacketRejectsMissingPayload(t *testing.T) {
	body := make([]byte, nfgenmsgLen)
	putNfGenMsg(body, 2)
	msg := make([]byte, nlmsghdrLen)
	msg = append(msg, body...)
	putNlMsgHdr(msg, uint32(len(msg)), subsysType(nfnlSubsysULog, nfulnlMsgPacket), 0, 1)

	_, ok, err := DecodePacket(msg)
	require.Error(t, err)
	require.False(t, ok)
}

func TestBindRequestProducesTwoMessages(t *testing.T) {
	msgs := BindRequest(2, 5, CopyPacket, 0xffff, 64, 1)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		require.GreaterOrEqual(t, len(m), nlmsghdrLen+nfgenmsgLen)
	}
}

package transport

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadOfSize(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + 1)
	}
	return out
}

func TestFrameRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 57, 58, 59, 60, 200, 500} {
		payload := payloadOfSize(size)
		packets, err := Frame(payload, PacketSize)
		require.NoError(t, err, "size %d", size)

		expectedPackets := (size + 2 + 58) / 59
		assert.Len(t, packets, expectedPackets, "size %d", size)

		for i, packet := range packets {
			assert.Len(t, packet, PacketSize)
			assert.Equal(t, []byte{0, 0, 0, 0}, packet[:4])
			if i == 0 {
				assert.Equal(t, byte(CmdMessage), packet[4])
			} else {
				assert.Equal(t, byte(i-1), packet[4])
			}
		}

		out, err := Reassemble(packets)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, payload, out, "size %d", size)
	}
}

func TestFrameLengthPrefix(t *testing.T) {
	packets, err := Frame([]byte{0x00, 0xA4, 0x04, 0x00, 0x00}, PacketSize)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0xC3, 0x00, 0x05, 0x00, 0xA4, 0x04, 0x00, 0x00}, packets[0][:12])
	assert.Equal(t, make([]byte, PacketSize-12), packets[0][12:])
}

func TestFrameCancel(t *testing.T) {
	packets, err := Frame([]byte{0x00, 0x00}, PacketSize)
	require.NoError(t, err)
	require.Len(t, packets, 1)

	expected := make([]byte, PacketSize)
	expected[4] = 0xD1
	assert.Equal(t, expected, packets[0])
}

func TestFrameLimits(t *testing.T) {
	_, err := Frame([]byte{0x01}, 7)
	assert.ErrorIs(t, err, ErrInvalidPacketSize)

	maxPayload := 59*129 - 2
	packets, err := Frame(payloadOfSize(maxPayload), PacketSize)
	require.NoError(t, err)
	assert.Len(t, packets, 129)
	assert.Equal(t, byte(0x7F), packets[128][4])

	_, err = Frame(payloadOfSize(maxPayload+1), PacketSize)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestReduceSkipsKeepalive(t *testing.T) {
	packets, err := Frame(payloadOfSize(100), PacketSize)
	require.NoError(t, err)

	keepalive := make([]byte, PacketSize)
	keepalive[4] = CmdKeepalive

	frames := [][]byte{keepalive, packets[0], keepalive, keepalive, packets[1]}
	out, err := Reassemble(frames)
	require.NoError(t, err)
	assert.Equal(t, payloadOfSize(100), out)
}

func TestReduceIsPure(t *testing.T) {
	packets, err := Frame(payloadOfSize(80), PacketSize)
	require.NoError(t, err)

	first, err := Reduce(Accumulator{}, packets[0])
	require.NoError(t, err)
	snapshot := append([]byte(nil), first.Data...)

	second, err := Reduce(first, packets[1])
	require.NoError(t, err)
	assert.True(t, second.Done())
	assert.False(t, first.Done())
	assert.Equal(t, snapshot, first.Data)
}

func TestReduceErrorFrames(t *testing.T) {
	scenarios := []struct {
		code     byte
		stall    bool
		expected error
	}{
		{ErrCodeInvalidCommand, false, ErrInvalidCommand},
		{ErrCodeInvalidParameter, false, ErrInvalidParameter},
		{ErrCodeInvalidLength, false, ErrInvalidLength},
		{ErrCodeInvalidSequence, false, ErrInvalidSequence},
		{ErrCodeDeviceCancelled, false, ErrDeviceCancelled},
		{0x42, false, ErrUnknownDeviceError},
		{ErrCodeDeviceBusy, false, ErrDeviceBusy},
		{ErrCodeOther, true, nil},
	}

	for _, s := range scenarios {
		frame := make([]byte, PacketSize)
		frame[4] = CmdError
		frame[7] = s.code

		assert.Equal(t, s.stall, IsStall(frame), "code %02x", s.code)

		acc, err := Reduce(Accumulator{}, frame)
		if s.stall {
			assert.NoError(t, err)
			assert.Equal(t, Accumulator{}, acc)
			continue
		}

		assert.ErrorIs(t, err, s.expected)
		var terr *Error
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, s.code, terr.Code)
	}
}

func TestReduceSequenceErrors(t *testing.T) {
	packets, err := Frame(payloadOfSize(200), PacketSize)
	require.NoError(t, err)
	require.Len(t, packets, 4)

	_, err = Reassemble([][]byte{packets[1]})
	assert.ErrorIs(t, err, ErrUnexpectedContinuation)

	_, err = Reassemble([][]byte{packets[0], packets[2]})
	assert.ErrorIs(t, err, ErrInvalidSequence)

	_, err = Reassemble([][]byte{packets[0], packets[0]})
	assert.ErrorIs(t, err, ErrInvalidSequence)

	_, err = Reassemble(packets[:2])
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = Reduce(Accumulator{}, []byte{0, 0, 0})
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestReduceTruncatesPadding(t *testing.T) {
	frame := make([]byte, PacketSize)
	frame[4] = CmdMessage
	frame[6] = 0x02
	copy(frame[7:], []byte{0x90, 0x00, 0xFF, 0xFF})

	acc, err := Reduce(Accumulator{}, frame)
	require.NoError(t, err)
	assert.True(t, acc.Done())
	assert.True(t, bytes.Equal([]byte{0x90, 0x00}, acc.Data))
}

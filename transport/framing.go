// Package transport implements the packet framing used by the imKey USB
// interface: every command and response travels as a sequence of fixed-size
// packets made of a 4 byte channel placeholder, a command or sequence byte and
// a payload chunk.
package transport

import (
	"bytes"
	"encoding/binary"
)

const (
	// PacketSize is the size of every USB packet exchanged with the device.
	PacketSize = 64

	headerSize      = 5
	firstHeaderSize = 7
	maxSequence     = 0x7F
)

// Frame command bytes.
const (
	CmdMessage   = 0x43 | 0x80
	CmdCancel    = 0x51 | 0x80
	CmdError     = 0x7F | 0x80
	CmdKeepalive = 0x7B | 0x80
)

var cancelPayload = []byte{0x00, 0x00}

// Frame splits payload into packets of packetSize bytes. The first packet is a
// MESSAGE frame whose payload starts with the big-endian length of payload;
// the following ones are continuation frames numbered from zero. The payload
// {0x00, 0x00} is the abort signal and is sent as a single CANCEL frame.
func Frame(payload []byte, packetSize int) ([][]byte, error) {
	if packetSize <= firstHeaderSize {
		return nil, ErrInvalidPacketSize
	}

	if bytes.Equal(payload, cancelPayload) {
		packet := make([]byte, packetSize)
		packet[4] = CmdCancel
		return [][]byte{packet}, nil
	}

	if len(payload) > 0xFFFF {
		return nil, ErrPayloadTooLarge
	}

	data := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(data, uint16(len(payload)))
	copy(data[2:], payload)

	blockSize := packetSize - headerSize
	count := (len(data) + blockSize - 1) / blockSize
	if count-1 > maxSequence+1 {
		return nil, ErrPayloadTooLarge
	}

	packets := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		packet := make([]byte, packetSize)
		if i == 0 {
			packet[4] = CmdMessage
		} else {
			packet[4] = byte(i - 1)
		}

		start := i * blockSize
		end := min(start+blockSize, len(data))
		copy(packet[headerSize:], data[start:end])
		packets = append(packets, packet)
	}

	return packets, nil
}

// Accumulator holds the state of an inbound message being reassembled.
type Accumulator struct {
	Data       []byte
	DataLength int
	Sequence   int
	Started    bool
}

// Done reports whether the whole declared message has been received.
func (a Accumulator) Done() bool {
	return a.Started && len(a.Data) == a.DataLength
}

// IsStall reports whether frame carries no data and only signals that the
// device is still working: keepalive frames, and ERROR frames with the other
// code. A busy device is reported to the caller, not waited on.
func IsStall(frame []byte) bool {
	if len(frame) < headerSize {
		return false
	}

	switch frame[4] {
	case CmdKeepalive:
		return true
	case CmdError:
		if len(frame) < firstHeaderSize+1 {
			return false
		}
		return frame[7] == ErrCodeOther
	}

	return false
}

// Reduce folds frame into acc and returns the new accumulator. Stall frames
// leave the accumulator untouched. Data beyond the declared length is dropped.
func Reduce(acc Accumulator, frame []byte) (Accumulator, error) {
	if len(frame) < headerSize {
		return acc, &Error{Op: "reassemble", Err: ErrShortPacket}
	}

	if IsStall(frame) {
		return acc, nil
	}

	var chunk []byte
	switch cmd := frame[4]; {
	case cmd == CmdError:
		if len(frame) < firstHeaderSize+1 {
			return acc, &Error{Op: "reassemble", Err: ErrShortPacket}
		}
		return acc, deviceError(frame[7])
	case cmd == CmdCancel:
		return acc, &Error{Op: "reassemble", Code: ErrCodeDeviceCancelled, Err: ErrDeviceCancelled}
	case cmd == CmdMessage:
		if acc.Started {
			return acc, &Error{Op: "reassemble", Err: ErrInvalidSequence}
		}
		if len(frame) < firstHeaderSize {
			return acc, &Error{Op: "reassemble", Err: ErrShortPacket}
		}
		acc.Started = true
		acc.DataLength = int(binary.BigEndian.Uint16(frame[5:7]))
		chunk = frame[firstHeaderSize:]
	case cmd <= maxSequence:
		if !acc.Started {
			return acc, &Error{Op: "reassemble", Err: ErrUnexpectedContinuation}
		}
		if int(cmd) != acc.Sequence {
			return acc, &Error{Op: "reassemble", Err: ErrInvalidSequence}
		}
		acc.Sequence++
		chunk = frame[headerSize:]
	default:
		return acc, &Error{Op: "reassemble", Err: ErrInvalidCommand}
	}

	if remaining := acc.DataLength - len(acc.Data); len(chunk) > remaining {
		chunk = chunk[:remaining]
	}

	data := make([]byte, len(acc.Data), len(acc.Data)+len(chunk))
	copy(data, acc.Data)
	acc.Data = append(data, chunk...)

	return acc, nil
}

// Reassemble folds frames until a whole message is available. It returns
// ErrIncomplete if the frames end before the declared length is reached.
func Reassemble(frames [][]byte) ([]byte, error) {
	var (
		acc Accumulator
		err error
	)

	for _, frame := range frames {
		acc, err = Reduce(acc, frame)
		if err != nil {
			return nil, err
		}

		if acc.Done() {
			return acc.Data, nil
		}
	}

	return nil, ErrIncomplete
}

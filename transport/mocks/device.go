// Package mocks provides an in-memory packet device that behaves like an
// imKey secure element behind the USB framing.
package mocks

import (
	"errors"
	"sync"

	"github.com/imkey/imkey-go/transport"
)

var ErrNoResponse = errors.New("mocks: no response queued")

// Handler answers one reassembled command APDU with a response APDU
// (data followed by the status word).
type Handler func(apdu []byte) []byte

// Device reassembles the packets written by the host, passes every complete
// command to its Handler and queues the framed response for Read.
type Device struct {
	mu         sync.Mutex
	handler    Handler
	packetSize int
	pending    [][]byte
	out        [][]byte

	// Keepalives is the number of keepalive frames queued before each response.
	Keepalives int
	ReadErr    error
	WriteErr   error

	Written   [][]byte
	Commands  [][]byte
	Cancelled int
	Closed    bool
}

func NewDevice(handler Handler) *Device {
	return &Device{
		handler:    handler,
		packetSize: transport.PacketSize,
	}
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.WriteErr != nil {
		return 0, d.WriteErr
	}

	frame := append([]byte(nil), p...)
	d.Written = append(d.Written, frame)

	if len(frame) > 4 && frame[4] == transport.CmdCancel {
		d.Cancelled++
		d.pending = nil
		return len(p), nil
	}

	d.pending = append(d.pending, frame)
	msg, err := transport.Reassemble(d.pending)
	if errors.Is(err, transport.ErrIncomplete) {
		return len(p), nil
	}
	d.pending = nil
	if err != nil {
		return 0, err
	}

	d.Commands = append(d.Commands, msg)
	for i := 0; i < d.Keepalives; i++ {
		d.out = append(d.out, KeepaliveFrame(d.packetSize))
	}

	frames, err := transport.Frame(d.handler(msg), d.packetSize)
	if err != nil {
		return 0, err
	}
	d.out = append(d.out, frames...)

	return len(p), nil
}

func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ReadErr != nil {
		return 0, d.ReadErr
	}

	if len(d.out) == 0 {
		return 0, ErrNoResponse
	}

	n := copy(p, d.out[0])
	d.out = d.out[1:]

	return n, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Closed = true
	return nil
}

// Queue appends raw frames to be returned by Read.
func (d *Device) Queue(frames ...[]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.out = append(d.out, frames...)
}

// CommandCount returns the number of complete commands received.
func (d *Device) CommandCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.Commands)
}

func KeepaliveFrame(size int) []byte {
	frame := make([]byte, size)
	frame[4] = transport.CmdKeepalive
	return frame
}

func ErrorFrame(size int, code byte) []byte {
	frame := make([]byte, size)
	frame[4] = transport.CmdError
	frame[7] = code
	return frame
}

// Static returns a handler answering every command with resp.
func Static(resp []byte) Handler {
	return func([]byte) []byte {
		return resp
	}
}

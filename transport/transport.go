package transport

import (
	"bytes"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/imkey/imkey-go/metrics"
)

var logger = log.New("package", "imkey/transport")

// Device is a raw packet device. Every Write and Read moves one packet.
type Device interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// Transport exchanges whole APDU payloads with the device.
type Transport interface {
	Exchange(payload []byte) ([]byte, error)
	Cancel() error
	Close() error
}

// Config bounds the read side of an exchange.
type Config struct {
	PacketSize int
	// ExchangeTimeout limits a whole exchange. Zero disables the timeout.
	ExchangeTimeout time.Duration
	// MaxStallFrames is the number of keepalive or "other" error frames tolerated in a
	// single exchange. Zero disables the limit.
	MaxStallFrames int
}

func DefaultConfig() *Config {
	return &Config{
		PacketSize:      PacketSize,
		ExchangeTimeout: 60 * time.Second,
		MaxStallFrames:  1024,
	}
}

// HIDTransport frames payloads over a Device. Exchanges are serialized; once
// an exchange times out the transport refuses any further exchange because
// the abandoned read may still consume packets.
type HIDTransport struct {
	mu      sync.Mutex
	writeMu sync.Mutex
	device  Device
	config  *Config
	failure error
}

func NewHIDTransport(device Device, config *Config) *HIDTransport {
	if config == nil {
		config = DefaultConfig()
	}
	if config.PacketSize == 0 {
		config.PacketSize = PacketSize
	}

	return &HIDTransport{
		device: device,
		config: config,
	}
}

// Exchange sends payload and waits for the whole response. The cancel payload
// {0x00, 0x00} is written as a CANCEL frame and no response is read.
func (t *HIDTransport) Exchange(payload []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failure != nil {
		return nil, t.failure
	}

	if err := t.send(payload); err != nil {
		metrics.TransportErrors.WithLabelValues(errorLabel(err)).Inc()
		return nil, err
	}

	if bytes.Equal(payload, cancelPayload) {
		return nil, nil
	}

	resp, err := t.receive()
	if err != nil {
		metrics.TransportErrors.WithLabelValues(errorLabel(err)).Inc()
		return nil, err
	}

	return resp, nil
}

// Cancel writes a CANCEL frame. It does not wait for a running exchange, which
// then ends with the device's cancelled error frame.
func (t *HIDTransport) Cancel() error {
	return t.send(cancelPayload)
}

func (t *HIDTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failure == nil {
		t.failure = &Error{Op: "exchange", Err: ErrClosed}
	}

	return t.device.Close()
}

func (t *HIDTransport) send(payload []byte) error {
	packets, err := Frame(payload, t.config.PacketSize)
	if err != nil {
		return &Error{Op: "write", Err: err}
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for _, packet := range packets {
		logger.Trace("packet sent", "chunk", hexutil.Bytes(packet))
		if _, err := t.device.Write(packet); err != nil {
			return &Error{Op: "write", Err: err}
		}
		metrics.TransportPackets.WithLabelValues(metrics.DirectionOut).Inc()
	}

	return nil
}

func (t *HIDTransport) receive() ([]byte, error) {
	if t.config.ExchangeTimeout <= 0 {
		return t.readMessage()
	}

	type result struct {
		data []byte
		err  error
	}

	done := make(chan result, 1)
	go func() {
		data, err := t.readMessage()
		done <- result{data, err}
	}()

	timer := time.NewTimer(t.config.ExchangeTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.data, r.err
	case <-timer.C:
		t.failure = &Error{Op: "read", Err: ErrTimeout}
		logger.Warn("exchange timed out, transport disabled", "timeout", t.config.ExchangeTimeout)
		return nil, t.failure
	}
}

func (t *HIDTransport) readMessage() ([]byte, error) {
	var acc Accumulator

	packet := make([]byte, t.config.PacketSize)
	stalls := 0
	for !acc.Done() {
		n, err := t.device.Read(packet)
		if err != nil {
			return nil, &Error{Op: "read", Err: err}
		}

		frame := packet[:n]
		logger.Trace("packet received", "chunk", hexutil.Bytes(frame))
		metrics.TransportPackets.WithLabelValues(metrics.DirectionIn).Inc()

		if IsStall(frame) {
			stalls++
			metrics.TransportStallFrames.WithLabelValues(stallKind(frame)).Inc()
			if t.config.MaxStallFrames > 0 && stalls > t.config.MaxStallFrames {
				return nil, &Error{Op: "read", Err: ErrStalled}
			}
			continue
		}

		acc, err = Reduce(acc, frame)
		if err != nil {
			return nil, err
		}
	}

	return acc.Data, nil
}

func stallKind(frame []byte) string {
	if frame[4] == CmdKeepalive {
		return "keepalive"
	}
	return "other"
}

package transport

import (
	"errors"
	"fmt"
)

// Device error codes carried in byte 7 of an ERROR frame.
const (
	ErrCodeInvalidCommand   = 0x01
	ErrCodeInvalidParameter = 0x02
	ErrCodeInvalidLength    = 0x03
	ErrCodeInvalidSequence  = 0x04
	ErrCodeDeviceBusy       = 0x06
	ErrCodeOther            = 0x07
	ErrCodeDeviceCancelled  = 0xFE
)

var (
	ErrInvalidCommand         = errors.New("transport: invalid command")
	ErrInvalidParameter       = errors.New("transport: invalid parameter")
	ErrInvalidLength          = errors.New("transport: invalid length")
	ErrInvalidSequence        = errors.New("transport: invalid sequence")
	ErrDeviceBusy             = errors.New("transport: device busy")
	ErrDeviceCancelled        = errors.New("transport: device cancelled")
	ErrOther                  = errors.New("transport: other device error")
	ErrUnknownDeviceError     = errors.New("transport: unknown device error")
	ErrShortPacket            = errors.New("transport: short packet")
	ErrUnexpectedContinuation = errors.New("transport: continuation frame before message frame")
	ErrIncomplete             = errors.New("transport: incomplete message")
	ErrPayloadTooLarge        = errors.New("transport: payload too large")
	ErrInvalidPacketSize      = errors.New("transport: invalid packet size")
	ErrStalled                = errors.New("transport: device stalled")
	ErrTimeout                = errors.New("transport: exchange timeout")
	ErrClosed                 = errors.New("transport: closed")
	ErrNoDevice               = errors.New("transport: no device found")
	ErrUSBUnsupported         = errors.New("transport: usb not supported on this platform")
)

// Error is the TransportError of the binding protocol. Code is set when the
// failure was reported by the device through an ERROR frame.
type Error struct {
	Op   string
	Code byte
	Err  error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %v (code 0x%02X)", e.Op, e.Err, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func deviceError(code byte) *Error {
	var err error
	switch code {
	case ErrCodeInvalidCommand:
		err = ErrInvalidCommand
	case ErrCodeInvalidParameter:
		err = ErrInvalidParameter
	case ErrCodeInvalidLength:
		err = ErrInvalidLength
	case ErrCodeInvalidSequence:
		err = ErrInvalidSequence
	case ErrCodeDeviceBusy:
		err = ErrDeviceBusy
	case ErrCodeDeviceCancelled:
		err = ErrDeviceCancelled
	case ErrCodeOther:
		err = ErrOther
	default:
		err = ErrUnknownDeviceError
	}

	return &Error{Op: "device", Code: code, Err: err}
}

// errorLabel returns a short metrics label for err.
func errorLabel(err error) string {
	var terr *Error
	switch {
	case errors.As(err, &terr) && terr.Code != 0:
		return fmt.Sprintf("device_%02x", terr.Code)
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrStalled):
		return "stalled"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "io"
	}
}

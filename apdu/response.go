package apdu

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	SwOK = 0x9000
)

// ErrBadRawResponse is returned by ParseResponse if the raw response is shorter than a status word.
var ErrBadRawResponse = errors.New("apdu: response must be at least 2 bytes")

// ErrBadResponse defines an error containing the returned Sw code and a description message.
type ErrBadResponse struct {
	Sw      uint16
	message string
}

// NewErrBadResponse returns an ErrBadResponse with the specified sw and message values.
func NewErrBadResponse(sw uint16, message string) *ErrBadResponse {
	return &ErrBadResponse{
		Sw:      sw,
		message: message,
	}
}

// Error implements the error interface.
func (e *ErrBadResponse) Error() string {
	return fmt.Sprintf("bad response %04X: %s", e.Sw, e.message)
}

// Response represents a struct with the data returned by the card.
type Response struct {
	Data []byte
	Sw1  uint8
	Sw2  uint8
	Sw   uint16
}

// ParseResponse parses a raw response and returns a Response.
func ParseResponse(data []byte) (*Response, error) {
	length := len(data)
	if length < 2 {
		return nil, ErrBadRawResponse
	}

	r := &Response{
		Data: data[:length-2],
		Sw1:  data[length-2],
		Sw2:  data[length-1],
	}
	r.Sw = (uint16(r.Sw1) << 8) | uint16(r.Sw2)

	return r, nil
}

// ParseResponseHex parses a hex encoded response whose last 4 characters are the status word.
func ParseResponseHex(s string) (*Response, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("apdu: invalid response hex: %w", err)
	}

	return ParseResponse(raw)
}

// IsOK returns true if the status word is SwOK.
func (r *Response) IsOK() bool {
	return r.Sw == SwOK
}

// DataHex returns the response data, without status word, as upper-case hex.
func (r *Response) DataHex() string {
	return strings.ToUpper(hex.EncodeToString(r.Data))
}

// SwHex returns the status word as 4 upper-case hex characters.
func (r *Response) SwHex() string {
	return fmt.Sprintf("%04X", r.Sw)
}

// Hex returns the data followed by the status word as upper-case hex.
func (r *Response) Hex() string {
	return r.DataHex() + r.SwHex()
}

var statusMessages = map[uint16]string{
	0x6700: "wrong length",
	0x6982: "security status not satisfied",
	0x6985: "conditions of use not satisfied",
	0x6A80: "incorrect data",
	0x6A82: "applet not found",
	0x6A84: "not enough memory",
	0x6D00: "instruction not supported",
	0x6E00: "class not supported",
	0x6F00: "unknown error",
	0xF000: "applet not exist",
	0xF080: "imkey in menu page",
	0xF081: "pin not verified",
}

// CheckResponse returns an ErrBadResponse if the status word of r is not SwOK.
func CheckResponse(r *Response) error {
	if r.IsOK() {
		return nil
	}

	msg, ok := statusMessages[r.Sw]
	if !ok {
		msg = "unexpected status word"
	}

	return NewErrBadResponse(r.Sw, msg)
}

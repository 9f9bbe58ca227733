package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownBindStatus        = errors.New("unknown bind status")
	ErrInvalidBindCheckResponse = errors.New("bind check response too short")
)

// BindingStatus is the relationship between the device and this host as
// reported by the IMK applet.
type BindingStatus int

const (
	BindingStatusUnknown BindingStatus = iota
	BindingStatusUnbound
	BindingStatusBoundThis
	BindingStatusBoundOther
	BindingStatusSuccess
	BindingStatusAuthCodeError
)

var bindingStatuses = []struct {
	status BindingStatus
	code   string
	label  string
}{
	{BindingStatusUnbound, "00", "unbound"},
	{BindingStatusBoundThis, "55", "bound_this"},
	{BindingStatusBoundOther, "AA", "bound_other"},
	{BindingStatusSuccess, "5A", "success"},
	{BindingStatusAuthCodeError, "A5", "authcode_error"},
}

// ParseBindingStatus maps a two hex digit device code to its status.
func ParseBindingStatus(code string) (BindingStatus, error) {
	code = strings.ToUpper(code)
	for _, s := range bindingStatuses {
		if s.code == code {
			return s.status, nil
		}
	}

	return BindingStatusUnknown, fmt.Errorf("%w: %q", ErrUnknownBindStatus, code)
}

// String returns the label exposed to callers, e.g. "bound_this".
func (s BindingStatus) String() string {
	for _, entry := range bindingStatuses {
		if entry.status == s {
			return entry.label
		}
	}
	return "unknown"
}

// Code returns the device code of s.
func (s BindingStatus) Code() string {
	for _, entry := range bindingStatuses {
		if entry.status == s {
			return entry.code
		}
	}
	return ""
}

func (s BindingStatus) MarshalText() ([]byte, error) {
	if s == BindingStatusUnknown {
		return nil, ErrUnknownBindStatus
	}
	return []byte(s.String()), nil
}

// ParseBindCheckResponse splits the bind check response data into the status
// code and the secure element certificate.
func ParseBindCheckResponse(dataHex string) (code, certHex string, err error) {
	if len(dataHex) < 2 {
		return "", "", ErrInvalidBindCheckResponse
	}

	return strings.ToUpper(dataHex[:2]), strings.ToUpper(dataHex[2:]), nil
}

package imkey

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalArgument   = errors.New("illegal argument")
	ErrAuthCodeMismatch  = errors.New("binding code rejected by device")
	ErrBindCheckRequired = errors.New("bind check required before bind acquire")
)

// IllegalArgumentError is returned before any device I/O when an argument is
// malformed.
type IllegalArgumentError struct {
	Name   string
	Reason string
}

func (e *IllegalArgumentError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrIllegalArgument, e.Name, e.Reason)
}

func (e *IllegalArgumentError) Is(target error) bool {
	return target == ErrIllegalArgument
}

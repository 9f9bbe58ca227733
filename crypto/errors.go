package crypto

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidKeyLength  = errors.New("invalid key length")
	ErrInvalidPadding    = errors.New("invalid padding")
	ErrInvalidBlockSize  = errors.New("ciphertext is not a multiple of the block size")
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrRecIDNotFound     = errors.New("recovery id not found")
)

// Error wraps every failure of a cryptographic operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

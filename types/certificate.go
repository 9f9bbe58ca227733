package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/imkey/imkey-go/apdu"
)

var ErrInvalidCertificate = errors.New("invalid secure element certificate")

var (
	TagPublicKeyTemplate = uint8(0x7F)
	TagPublicKey         = uint8(0xB0)
)

// Certificate templates carrying the secure element key, in lookup order.
var sePublicKeyTemplates = [][]byte{
	{TagPublicKeyTemplate, 0x49, 0x47, TagPublicKey, 0x41},
	{TagPublicKeyTemplate, 0x49, 0x46, TagPublicKey, 0x41},
}

type Certificate struct {
	raw   []byte
	sePub []byte
}

// ParseCertificate extracts the secure element public key from the hex
// encoded certificate returned by the bind check command.
func ParseCertificate(certHex string) (*Certificate, error) {
	raw, err := hex.DecodeString(certHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}

	index := -1
	for _, template := range sePublicKeyTemplates {
		if index = bytes.Index(raw, template); index >= 0 {
			break
		}
	}

	if index < 0 {
		return nil, fmt.Errorf("%w: public key template not found", ErrInvalidCertificate)
	}

	pub, err := apdu.FindTag(raw[index+3:], TagPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}

	if _, err := ethcrypto.UnmarshalPubkey(pub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}

	return &Certificate{
		raw:   raw,
		sePub: pub,
	}, nil
}

// ParseSEPublicKey returns the 65 byte uncompressed secure element key.
func ParseSEPublicKey(certHex string) ([]byte, error) {
	cert, err := ParseCertificate(certHex)
	if err != nil {
		return nil, err
	}

	return cert.SEPublicKey(), nil
}

func (c *Certificate) SEPublicKey() []byte {
	return c.sePub
}

func (c *Certificate) Raw() []byte {
	return c.raw
}

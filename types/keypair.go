package types

import (
	"crypto/ecdsa"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidKeyPair = errors.New("invalid key pair")

// KeyPair is the host secp256k1 identity key.
type KeyPair struct {
	priv *ecdsa.PrivateKey
}

func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	return &KeyPair{priv: priv}, nil
}

// NewKeyPair loads a key pair from a 32 byte private key.
func NewKeyPair(privKey []byte) (*KeyPair, error) {
	priv, err := ethcrypto.ToECDSA(privKey)
	if err != nil {
		return nil, ErrInvalidKeyPair
	}

	return &KeyPair{priv: priv}, nil
}

// PubKey returns the 65 byte uncompressed public key.
func (kp *KeyPair) PubKey() []byte {
	return ethcrypto.FromECDSAPub(&kp.priv.PublicKey)
}

// PrivKey returns the 32 byte private key.
func (kp *KeyPair) PrivKey() []byte {
	return ethcrypto.FromECDSA(kp.priv)
}

func (kp *KeyPair) ECDSA() *ecdsa.PrivateKey {
	return kp.priv
}

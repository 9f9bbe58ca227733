package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	VaultEncKeySize = 16
	VaultMacKeySize = 32
)

var vaultKeyInfo = []byte("imkey identity vault v1")

// DeriveVaultKeys derives the identity vault encryption and MAC keys from the
// device identifiers.
func DeriveVaultKeys(seid, sn string) (encKey, macKey []byte, err error) {
	secret := make([]byte, 0, len(seid)+1+len(sn))
	secret = append(secret, seid...)
	secret = append(secret, 0x00)
	secret = append(secret, sn...)

	out := make([]byte, VaultEncKeySize+VaultMacKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, vaultKeyInfo), out); err != nil {
		return nil, nil, &Error{Op: "derive vault keys", Err: err}
	}

	return out[:VaultEncKeySize], out[VaultEncKeySize:], nil
}

func MAC(key []byte, data ...[]byte) []byte {
	h := hmac.New(sha256.New, key)
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

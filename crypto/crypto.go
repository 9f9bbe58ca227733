// Package crypto implements the key agreement, encryption and signing
// primitives of the device binding protocol.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/sha1"
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/crypto"
)

const sessionKeySize = 16

var bindingCodeSalt = []byte("bindingCode")

// GenerateECDHSharedSecret returns the X coordinate of priv*pub, left padded
// to 32 bytes.
func GenerateECDHSharedSecret(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) []byte {
	x, _ := crypto.S256().ScalarMult(pub.X, pub.Y, priv.D.Bytes())
	return x.FillBytes(make([]byte, 32))
}

// DeriveSessionKey returns the first 16 bytes of SHA-1 over the shared secret.
func DeriveSessionKey(sharedSecret []byte) ([]byte, error) {
	if len(sharedSecret) < 32 {
		return nil, &Error{Op: "derive session key", Err: ErrInvalidKeyLength}
	}

	digest := sha1.Sum(sharedSecret[:32])
	return digest[:sessionKeySize], nil
}

// SessionKey runs the ECDH agreement between the host key and the secure
// element key and derives the session key from it.
func SessionKey(priv *ecdsa.PrivateKey, sePubKey []byte) ([]byte, error) {
	pub, err := crypto.UnmarshalPubkey(sePubKey)
	if err != nil {
		return nil, &Error{Op: "session key", Err: ErrInvalidPublicKey}
	}

	return DeriveSessionKey(GenerateECDHSharedSecret(priv, pub))
}

// BindingIV derives the IV used to encrypt the identity proof from the
// binding code.
func BindingIV(code string) []byte {
	salt := sha256.Sum256(bindingCodeSalt)
	hash := sha256.Sum256([]byte(code))

	iv := make([]byte, aes.BlockSize)
	for i := range iv {
		iv[i] = salt[i] ^ hash[i]
	}

	return iv
}

// IdentityProof returns sha256(code || hostPub || sePub) encrypted with the
// session key.
func IdentityProof(code string, hostPub, sePub, sessionKey []byte) ([]byte, error) {
	h := sha256.New()
	h.Write([]byte(code))
	h.Write(hostPub)
	h.Write(sePub)

	return EncryptPKCS7(h.Sum(nil), sessionKey, BindingIV(code))
}

// EncryptPKCS7 encrypts data with AES-CBC after PKCS#7 padding.
func EncryptPKCS7(data, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &Error{Op: "encrypt", Err: ErrInvalidKeyLength}
	}

	if len(iv) != aes.BlockSize {
		return nil, &Error{Op: "encrypt", Err: ErrInvalidKeyLength}
	}

	plaintext := appendPadding(aes.BlockSize, data)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)

	return ciphertext, nil
}

// DecryptPKCS7 reverses EncryptPKCS7.
func DecryptPKCS7(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &Error{Op: "decrypt", Err: ErrInvalidKeyLength}
	}

	if len(iv) != aes.BlockSize {
		return nil, &Error{Op: "decrypt", Err: ErrInvalidKeyLength}
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, &Error{Op: "decrypt", Err: ErrInvalidBlockSize}
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	data, err := removePadding(aes.BlockSize, plaintext)
	if err != nil {
		return nil, &Error{Op: "decrypt", Err: err}
	}

	return data, nil
}

func appendPadding(blockSize int, data []byte) []byte {
	paddingSize := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(paddingSize)}, paddingSize)

	out := make([]byte, 0, len(data)+paddingSize)
	out = append(out, data...)
	return append(out, padding...)
}

func removePadding(blockSize int, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}

	paddingSize := int(data[len(data)-1])
	if paddingSize == 0 || paddingSize > blockSize || paddingSize > len(data) {
		return nil, ErrInvalidPadding
	}

	for _, b := range data[len(data)-paddingSize:] {
		if int(b) != paddingSize {
			return nil, ErrInvalidPadding
		}
	}

	return data[:len(data)-paddingSize], nil
}

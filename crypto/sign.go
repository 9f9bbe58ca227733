package crypto

import (
	"bytes"
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	dcrecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/crypto"
)

// maxRecID bounds the recovery id search. Ids 2 and 3 only occur when the
// nonce point X overflows the curve order.
const maxRecID = 3

func DoubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// Sign returns the DER encoded deterministic ECDSA signature of the double
// SHA-256 of msg.
func Sign(privKey, msg []byte) ([]byte, error) {
	if len(privKey) != 32 {
		return nil, &Error{Op: "sign", Err: ErrInvalidPrivateKey}
	}

	key := secp256k1.PrivKeyFromBytes(privKey)
	if key.Key.IsZero() {
		return nil, &Error{Op: "sign", Err: ErrInvalidPrivateKey}
	}

	return dcrecdsa.Sign(key, DoubleSHA256(msg)).Serialize(), nil
}

// VerifySignature checks a DER signature produced by Sign over msg.
func VerifySignature(pubKey, der, msg []byte) (bool, error) {
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false, &Error{Op: "verify", Err: ErrInvalidPublicKey}
	}

	sig, err := dcrecdsa.ParseDERSignature(der)
	if err != nil {
		return false, &Error{Op: "verify", Err: ErrInvalidSignature}
	}

	return sig.Verify(DoubleSHA256(msg), pub), nil
}

// RetrieveRecID finds the recovery id that makes the 64 byte compact
// signature r||s over hash recover pubKey.
func RetrieveRecID(hash, compactSig, pubKey []byte) (byte, error) {
	if len(hash) != 32 || len(compactSig) != 64 {
		return 0, &Error{Op: "retrieve recid", Err: ErrInvalidSignature}
	}

	sig := make([]byte, 65)
	copy(sig, compactSig)
	for id := byte(0); id < maxRecID; id++ {
		sig[64] = id
		rec, err := crypto.Ecrecover(hash, sig)
		if err != nil {
			continue
		}

		if bytes.Equal(rec, pubKey) {
			return id, nil
		}
	}

	return 0, &Error{Op: "retrieve recid", Err: ErrRecIDNotFound}
}

// CompressPublicKey converts a 65 byte uncompressed key to its 33 byte form.
func CompressPublicKey(pubKey []byte) ([]byte, error) {
	pub, err := crypto.UnmarshalPubkey(pubKey)
	if err != nil {
		return nil, &Error{Op: "compress", Err: ErrInvalidPublicKey}
	}

	return crypto.CompressPubkey(pub), nil
}

package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// AuthCodeModulusHex is the modulus of the trust service key used to wrap
// binding codes before they leave the host.
const AuthCodeModulusHex = "C6627A6F0485B33DDC1CA7E062C64E8841133B9246A41F40D0767BAE44EAB2EF453D008FFB07B8D9FDFCD21882487ECC4DA933C97E494242ADA3CE02C5A05189AA49410E771A66E8100E43CB1AF6CC610B59EE4EBB236FF38C62AD7B1D11DFBD4E054D19E3349391A31F5E89CA721292B7380295745D8968CC5C2D223AC6750BB0ACA27773687E9CD76065E47F42F4AE005459BCE5746BD760646A5BD119BA3469A935F48EB898CBAB72CB394C3FEC9E41635EAE954107A17AC7B8C6321D8F1755AD3915A9D2398DB268A3F642CEE9CBE9F82ECD5AD64EBEDDDE66601DC2B891E2FEDDF72DAF627FA8FA16F7C640DB661BE15DCB4274D9576D98DBEB20C25309"

const AuthCodeExponent = 0x010001

// ParseAuthCodeKey builds the RSA public key from a hex modulus and the
// standard exponent.
func ParseAuthCodeKey(modulusHex string) (*rsa.PublicKey, error) {
	n, err := hex.DecodeString(modulusHex)
	if err != nil || len(n) == 0 {
		return nil, &Error{Op: "parse auth code key", Err: errors.New("invalid modulus")}
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: AuthCodeExponent,
	}, nil
}

// DefaultAuthCodeKey returns the trust service key built from AuthCodeModulusHex.
func DefaultAuthCodeKey() *rsa.PublicKey {
	key, err := ParseAuthCodeKey(AuthCodeModulusHex)
	if err != nil {
		panic(err)
	}
	return key
}

// EncryptAuthCode wraps code with RSA PKCS#1 v1.5 and returns upper-case hex.
func EncryptAuthCode(code string, pub *rsa.PublicKey) (string, error) {
	out, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(code))
	if err != nil {
		return "", &Error{Op: "encrypt auth code", Err: err}
	}

	return strings.ToUpper(hex.EncodeToString(out)), nil
}

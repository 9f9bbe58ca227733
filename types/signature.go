package types

import (
	"github.com/imkey/imkey-go/apdu"
	"github.com/imkey/imkey-go/crypto"
)

var (
	TagSequence = uint8(0x30)
	TagInteger  = uint8(0x02)
)

// Signature is a host signature over a message together with the recovery
// id that binds it to the signing key.
type Signature struct {
	der []byte
	r   []byte
	s   []byte
	v   byte
}

// SignMessage signs msg with kp and resolves the recovery id of the result.
func SignMessage(kp *KeyPair, msg []byte) (*Signature, error) {
	der, err := crypto.Sign(kp.PrivKey(), msg)
	if err != nil {
		return nil, err
	}

	return ParseDERSignature(crypto.DoubleSHA256(msg), der, kp.PubKey())
}

// ParseDERSignature splits der into r and s and finds the recovery id for
// pubKey over hash.
func ParseDERSignature(hash, der, pubKey []byte) (*Signature, error) {
	r, s, err := DERSignatureToRS(der)
	if err != nil {
		return nil, err
	}

	v, err := crypto.RetrieveRecID(hash, append(append([]byte{}, r...), s...), pubKey)
	if err != nil {
		return nil, err
	}

	return &Signature{
		der: der,
		r:   r,
		s:   s,
		v:   v,
	}, nil
}

// DERSignatureToRS returns r and s as 32 byte big-endian integers.
func DERSignatureToRS(tlv []byte) ([]byte, []byte, error) {
	r, err := apdu.FindTagN(tlv, 0, TagSequence, TagInteger)
	if err != nil {
		return nil, nil, err
	}

	s, err := apdu.FindTagN(tlv, 1, TagSequence, TagInteger)
	if err != nil {
		return nil, nil, err
	}

	return fixedSize(r), fixedSize(s), nil
}

func fixedSize(n []byte) []byte {
	if len(n) > 32 {
		return n[len(n)-32:]
	}

	out := make([]byte, 32)
	copy(out[32-len(n):], n)
	return out
}

func (s *Signature) DER() []byte {
	return s.der
}

func (s *Signature) R() []byte {
	return s.r
}

func (s *Signature) S() []byte {
	return s.s
}

func (s *Signature) V() byte {
	return s.v
}

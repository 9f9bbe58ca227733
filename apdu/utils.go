package apdu

import (
	"errors"
	"fmt"
)

// ErrTruncatedTLV is returned when a TLV value is shorter than its declared length.
var ErrTruncatedTLV = errors.New("apdu: truncated TLV value")

// tagLongLength marks a length encoded in the following byte.
const tagLongLength = 0x81

// ErrTagNotFound is returned if a tag is missing from a TLV sequence.
type ErrTagNotFound struct {
	tag uint8
}

func (e *ErrTagNotFound) Error() string {
	return fmt.Sprintf("tag %x not found", e.tag)
}

// FindTag walks the tag path through nested TLV sequences and returns the value
// of the last tag.
func FindTag(raw []byte, tags ...uint8) ([]byte, error) {
	return findTag(raw, 0, tags...)
}

// FindTagN is like FindTag but returns the n-th (zero based) occurrence of the
// last tag in the path.
func FindTagN(raw []byte, n int, tags ...uint8) ([]byte, error) {
	return findTag(raw, n, tags...)
}

func findTag(raw []byte, occurrence int, tags ...uint8) ([]byte, error) {
	if len(tags) == 0 {
		return raw, nil
	}

	target := tags[0]
	for len(raw) > 0 {
		tag, value, rest, err := splitTLV(raw)
		if err != nil {
			return nil, err
		}
		raw = rest

		if tag != target {
			continue
		}

		if len(tags) > 1 {
			return findTag(value, occurrence, tags[1:]...)
		}

		if occurrence == 0 {
			return value, nil
		}
		occurrence--
	}

	return nil, &ErrTagNotFound{target}
}

// splitTLV cuts the first tag-length-value off raw. Lengths are a single byte,
// or 0x81 followed by one length byte.
func splitTLV(raw []byte) (tag uint8, value, rest []byte, err error) {
	if len(raw) < 2 {
		return 0, nil, nil, ErrTruncatedTLV
	}

	tag = raw[0]
	length := int(raw[1])
	offset := 2
	if raw[1] == tagLongLength {
		if len(raw) < 3 {
			return 0, nil, nil, ErrTruncatedTLV
		}
		length = int(raw[2])
		offset = 3
	}

	end := offset + length
	if end > len(raw) {
		return 0, nil, nil, ErrTruncatedTLV
	}

	return tag, raw[offset:end], raw[end:], nil
}

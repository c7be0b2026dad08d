package hashing

import (
	"fmt"

	"github.com/left-curve/dango-sdk-go/pkg/encoding"
)

// Hash256 is a 32 byte digest. It renders as unprefixed uppercase hex, which
// is how the chain prints code hashes and key hashes.
type Hash256 [32]byte

func Sha256Hash(data ...[]byte) Hash256 {
	var h Hash256
	copy(h[:], Sha256(data...))
	return h
}

// ParseHash256 accepts upper or lower case hex, with or without 0x.
func ParseHash256(s string) (Hash256, error) {
	var h Hash256
	b, err := encoding.DecodeHexFixed(s, len(h))
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

func Hash256FromBytes(b []byte) (Hash256, error) {
	var h Hash256
	if len(b) != len(h) {
		return h, fmt.Errorf("hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash256) Bytes() []byte {
	return h[:]
}

func (h Hash256) String() string {
	return encoding.EncodeHexUpper(h[:])
}

func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

func (h Hash256) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash256) UnmarshalText(text []byte) error {
	parsed, err := ParseHash256(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

package address

import (
	"fmt"

	"github.com/left-curve/dango-sdk-go/pkg/encoding"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
)

const Length = 20

// Address is a 20 byte account or contract address.
type Address [Length]byte

// Compute derives the address of a contract instantiated by deployer from
// the given code hash and salt:
//
//	RIPEMD160(SHA256(deployer || codeHash || salt))
//
// It matches the account factory's derivation bit for bit; the order of the
// inputs and of the two hashes is part of the contract.
func Compute(deployer Address, codeHash hashing.Hash256, salt []byte) Address {
	inner := hashing.NewSha256().
		Update(deployer[:], codeHash[:], salt).
		Digest()

	var addr Address
	copy(addr[:], hashing.Ripemd160(inner))
	return addr
}

// IsValidAddress reports whether s is exactly 40 hex characters after an
// optional 0x prefix. It never panics.
func IsValidAddress(s string) bool {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s) != 2*Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHexChar(s[i]) {
			return false
		}
	}
	return true
}

func isHexChar(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// ParseAddress parses a hex address, case-insensitively, prefixed or not.
func ParseAddress(s string) (Address, error) {
	var addr Address
	if !IsValidAddress(s) {
		return addr, txErrors.NewEncodingError("parse address", s, fmt.Errorf("expected 40 hex characters"))
	}
	b, err := encoding.DecodeHex(s)
	if err != nil {
		return addr, err
	}
	copy(addr[:], b)
	return addr, nil
}

// MustParseAddress is for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func FromBytes(b []byte) (Address, error) {
	var addr Address
	if len(b) != Length {
		return addr, txErrors.NewEncodingError("address from bytes", encoding.EncodeHex(b), fmt.Errorf("expected %d bytes, got %d", Length, len(b)))
	}
	copy(addr[:], b)
	return addr, nil
}

func (a Address) Bytes() []byte {
	return a[:]
}

// String is the external form: 0x followed by 40 lowercase hex characters.
func (a Address) String() string {
	return encoding.EncodeHexPrefixed(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

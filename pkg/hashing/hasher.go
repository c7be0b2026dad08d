package hashing

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required by the chain's address derivation
	"golang.org/x/crypto/sha3"
)

// Hasher is an incremental digest. Update may be called any number of times;
// Digest returns the digest of everything written so far without resetting,
// so further updates keep extending the same input.
type Hasher interface {
	Update(data ...[]byte) Hasher
	Digest() []byte
	Reset()
	Size() int
}

type hasher struct {
	h hash.Hash
}

func (w *hasher) Update(data ...[]byte) Hasher {
	for _, d := range data {
		// hash.Hash never returns an error from Write
		_, _ = w.h.Write(d)
	}
	return w
}

func (w *hasher) Digest() []byte {
	return w.h.Sum(nil)
}

func (w *hasher) Reset() {
	w.h.Reset()
}

func (w *hasher) Size() int {
	return w.h.Size()
}

func NewSha256() Hasher {
	return &hasher{h: sha256.New()}
}

// NewKeccak256 is the legacy Keccak used by Ethereum, not NIST SHA3-256.
func NewKeccak256() Hasher {
	return &hasher{h: sha3.NewLegacyKeccak256()}
}

func NewRipemd160() Hasher {
	return &hasher{h: ripemd160.New()}
}

func Sha256(data ...[]byte) []byte {
	return NewSha256().Update(data...).Digest()
}

func Keccak256(data ...[]byte) []byte {
	return NewKeccak256().Update(data...).Digest()
}

func Ripemd160(data ...[]byte) []byte {
	return NewRipemd160().Update(data...).Digest()
}

package signer

import (
	"crypto/elliptic"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

var (
	Secp256k1Order = crypto.S256().Params().N
	P256Order      = elliptic.P256().Params().N
)

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

// NormalizeDERSignature converts an ASN.1 DER ECDSA signature into the 64
// byte r||s form with s in the lower half of the curve order.
func NormalizeDERSignature(der []byte, curveOrder *big.Int) ([]byte, error) {
	var sig asn1EcSig
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DER signature: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("trailing bytes after DER signature")
	}

	r := new(big.Int).SetBytes(sig.R.Bytes)
	s := new(big.Int).SetBytes(sig.S.Bytes)
	if r.Sign() == 0 || s.Sign() == 0 || r.Cmp(curveOrder) >= 0 || s.Cmp(curveOrder) >= 0 {
		return nil, fmt.Errorf("signature scalars out of range")
	}
	return compact(r, normalizeS(s, curveOrder)), nil
}

// NormalizeLowS rewrites a 64 byte r||s signature so that s is low.
func NormalizeLowS(sig []byte, curveOrder *big.Int) ([]byte, error) {
	if len(sig) < 64 {
		return nil, fmt.Errorf("signature must be at least 64 bytes, got %d", len(sig))
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	return compact(r, normalizeS(s, curveOrder)), nil
}

// IsLowS reports whether the s half of a 64 byte r||s signature is at most
// half the curve order.
func IsLowS(sig []byte, curveOrder *big.Int) bool {
	if len(sig) < 64 {
		return false
	}
	s := new(big.Int).SetBytes(sig[32:64])
	return s.Cmp(new(big.Int).Rsh(curveOrder, 1)) <= 0
}

func normalizeS(s, curveOrder *big.Int) *big.Int {
	halfOrder := new(big.Int).Rsh(curveOrder, 1)
	if s.Cmp(halfOrder) > 0 {
		return new(big.Int).Sub(curveOrder, s)
	}
	return s
}

func compact(r, s *big.Int) []byte {
	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out
}

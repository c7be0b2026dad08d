package signer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardCredentialOf(t *testing.T) {
	std := &types.StandardCredential{Signature: types.Secp256k1Signature(make([]byte, 64))}
	got, err := StandardCredentialOf(std)
	require.NoError(t, err)
	assert.Same(t, std, got)

	_, err = StandardCredentialOf(&types.SessionCredential{})
	require.Error(t, err)
	assert.True(t, txErrors.IsUnsupportedCredential(err))

	_, err = StandardCredentialOf(nil)
	assert.True(t, txErrors.IsUnsupportedCredential(err))
}

func TestSignDocHash_Deterministic(t *testing.T) {
	c := &types.UnsignedTxContext{
		Sender:   address.MustParseAddress("0x1111111111111111111111111111111111111111"),
		Username: "alice",
		ChainID:  "dango-1",
		Sequence: 4,
		GasLimit: 100,
	}
	h1, err := SignDocHash(c)
	require.NoError(t, err)
	h2, err := SignDocHash(c)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	c.Sequence = 5
	h3, err := SignDocHash(c)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	_, err = SignDocHash(nil)
	assert.True(t, txErrors.IsValidationError(err))
}

func TestArbitraryHash_KeyOrderIndependent(t *testing.T) {
	h1, err := ArbitraryHash(map[string]int{"a": 1, "b": 2})
	require.NoError(t, err)
	h2, err := ArbitraryHash(struct {
		B int `json:"b"`
		A int `json:"a"`
	}{B: 2, A: 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestNormalizeDERSignature_LowS(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("challenge"))

	for i := 0; i < 16; i++ {
		r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
		require.NoError(t, err)

		// Force the high-S form half of the time.
		if i%2 == 0 {
			s = new(big.Int).Sub(P256Order, s)
		}
		der, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
		require.NoError(t, err)

		sig, err := NormalizeDERSignature(der, P256Order)
		require.NoError(t, err)
		require.Len(t, sig, 64)
		assert.True(t, IsLowS(sig, P256Order))

		vr := new(big.Int).SetBytes(sig[:32])
		vs := new(big.Int).SetBytes(sig[32:])
		assert.True(t, ecdsa.Verify(&key.PublicKey, digest[:], vr, vs))
	}
}

func TestNormalizeDERSignature_Malformed(t *testing.T) {
	_, err := NormalizeDERSignature([]byte{0x30, 0x01}, P256Order)
	assert.Error(t, err)

	der, err := asn1.Marshal(struct{ R, S *big.Int }{big.NewInt(0), big.NewInt(1)})
	require.NoError(t, err)
	_, err = NormalizeDERSignature(der, P256Order)
	assert.Error(t, err)
}

func TestNormalizeLowS(t *testing.T) {
	sig := make([]byte, 64)
	sig[31] = 1
	high := new(big.Int).Sub(Secp256k1Order, big.NewInt(1))
	high.FillBytes(sig[32:])
	assert.False(t, IsLowS(sig, Secp256k1Order))

	low, err := NormalizeLowS(sig, Secp256k1Order)
	require.NoError(t, err)
	assert.True(t, IsLowS(low, Secp256k1Order))
	assert.Equal(t, big.NewInt(1), new(big.Int).SetBytes(low[32:]))

	_, err = NormalizeLowS(sig[:10], Secp256k1Order)
	assert.Error(t, err)
}

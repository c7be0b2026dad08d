package awsKmsSigner

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/logger"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	oidEcPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// fakeKMS holds a local key and answers like KMS: DER public keys and DER
// signatures, with high-S values when highS is set.
type fakeKMS struct {
	key     *ecdsa.PrivateKey
	keySpec kmsTypes.KeySpec
	highS   bool
	signErr error
	calls   int
}

func newFakeKMS(t *testing.T) *fakeKMS {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &fakeKMS{key: key, keySpec: kmsTypes.KeySpecEccSecgP256k1}
}

func (f *fakeKMS) GetPublicKey(_ context.Context, params *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	der, err := asn1.Marshal(asn1EcPublicKey{
		EcPublicKeyInfo: asn1EcPublicKeyInfo{Algorithm: oidEcPublicKey, Parameters: oidSecp256k1},
		PublicKey:       asn1.BitString{Bytes: crypto.FromECDSAPub(&f.key.PublicKey), BitLength: 65 * 8},
	})
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{KeyId: params.KeyId, KeySpec: f.keySpec, PublicKey: der}, nil
}

func (f *fakeKMS) Sign(_ context.Context, params *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.calls++
	if f.signErr != nil {
		return nil, f.signErr
	}
	if params.MessageType != kmsTypes.MessageTypeDigest || params.SigningAlgorithm != kmsTypes.SigningAlgorithmSpecEcdsaSha256 {
		return nil, fmt.Errorf("unexpected signing parameters")
	}
	sig, err := crypto.Sign(params.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.highS {
		s = new(big.Int).Sub(signer.Secp256k1Order, s)
	}
	der, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{KeyId: params.KeyId, Signature: der}, nil
}

func TestNewAWSKMSSigner_KeyHash(t *testing.T) {
	fake := newFakeKMS(t)
	s, err := NewAWSKMSSigner(context.Background(), fake, "alias/dango", logger.NewNopLogger())
	require.NoError(t, err)

	compressed := crypto.CompressPubkey(&fake.key.PublicKey)
	assert.Equal(t, hashing.Sha256Hash(compressed), s.GetKeyHash())
	assert.Equal(t, compressed, s.PublicKey().Bytes)
	assert.Equal(t, "alias/dango", s.KeyId())
}

func TestNewAWSKMSSigner_Validation(t *testing.T) {
	fake := newFakeKMS(t)

	_, err := NewAWSKMSSigner(context.Background(), fake, "key", nil)
	assert.Error(t, err)

	_, err = NewAWSKMSSigner(context.Background(), fake, "", logger.NewNopLogger())
	assert.True(t, txErrors.IsValidationError(err))

	fake.keySpec = kmsTypes.KeySpecEccNistP256
	_, err = NewAWSKMSSigner(context.Background(), fake, "key", logger.NewNopLogger())
	assert.True(t, txErrors.IsValidationError(err))
}

func TestAWSKMSSigner_SignTxVerifies(t *testing.T) {
	for _, highS := range []bool{false, true} {
		t.Run(fmt.Sprintf("highS=%v", highS), func(t *testing.T) {
			fake := newFakeKMS(t)
			fake.highS = highS
			s, err := NewAWSKMSSigner(context.Background(), fake, "key", logger.NewNopLogger())
			require.NoError(t, err)

			c := &types.UnsignedTxContext{
				Sender:   address.MustParseAddress("0x1111111111111111111111111111111111111111"),
				Username: "alice",
				Messages: types.Messages{types.MsgTransfer{
					address.MustParseAddress("0x2222222222222222222222222222222222222222"): types.Coins{"uusdc": "1"},
				}},
				ChainID:  "dango-1",
				Sequence: 3,
				GasLimit: 50_000,
			}
			signed, err := s.SignTx(context.Background(), c)
			require.NoError(t, err)

			std, err := signer.StandardCredentialOf(signed.Credential)
			require.NoError(t, err)
			sig := std.Signature.(types.Secp256k1Signature)
			require.Len(t, sig, 64)
			assert.True(t, signer.IsLowS(sig, signer.Secp256k1Order))

			hash, err := signer.SignDocHash(c)
			require.NoError(t, err)
			assert.True(t, crypto.VerifySignature(crypto.CompressPubkey(&fake.key.PublicKey), hash[:], sig))
		})
	}
}

func TestAWSKMSSigner_SignArbitrary(t *testing.T) {
	fake := newFakeKMS(t)
	s, err := NewAWSKMSSigner(context.Background(), fake, "key", logger.NewNopLogger())
	require.NoError(t, err)

	payload := map[string]string{"b": "2", "a": "1"}
	cred, err := s.SignArbitrary(context.Background(), payload)
	require.NoError(t, err)
	std, err := signer.StandardCredentialOf(cred)
	require.NoError(t, err)

	hash, err := signer.ArbitraryHash(payload)
	require.NoError(t, err)
	assert.True(t, crypto.VerifySignature(crypto.CompressPubkey(&fake.key.PublicKey), hash[:], std.Signature.(types.Secp256k1Signature)))
}

func TestAWSKMSSigner_SignErrorPropagates(t *testing.T) {
	fake := newFakeKMS(t)
	s, err := NewAWSKMSSigner(context.Background(), fake, "key", logger.NewNopLogger())
	require.NoError(t, err)

	fake.signErr = fmt.Errorf("throttled")
	_, err = s.SignHash(context.Background(), hashing.Sha256Hash([]byte("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestAWSKMSSigner_RejectsForeignSignature(t *testing.T) {
	fake := newFakeKMS(t)
	s, err := NewAWSKMSSigner(context.Background(), fake, "key", logger.NewNopLogger())
	require.NoError(t, err)

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	fake.key = other

	_, err = s.SignHash(context.Background(), hashing.Sha256Hash([]byte("x")))
	assert.Error(t, err)
}

func TestParseECDSAPublicKey_Garbage(t *testing.T) {
	_, err := parseECDSAPublicKey([]byte{0x30, 0x01})
	assert.Error(t, err)

	_, err = NewAWSKMSSignerFromConfig(context.Background(), aws.Config{}, "", logger.NewNopLogger())
	assert.True(t, txErrors.IsValidationError(err))
}

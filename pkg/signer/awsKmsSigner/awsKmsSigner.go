// Package awsKmsSigner signs with a secp256k1 key held in AWS KMS.
package awsKmsSigner

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KMSAPI is the part of the KMS client the signer calls.
type KMSAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

var _ KMSAPI = (*kms.Client)(nil)

type AWSKMSSigner struct {
	logger    *zap.Logger
	kmsClient KMSAPI
	keyId     string
	publicKey *ecdsa.PublicKey
	keyHash   hashing.Hash256
}

var _ signer.ISigner = (*AWSKMSSigner)(nil)

func NewAWSKMSSignerFromConfig(ctx context.Context, awsCfg aws.Config, keyId string, logger *zap.Logger) (*AWSKMSSigner, error) {
	return NewAWSKMSSigner(ctx, kms.NewFromConfig(awsCfg), keyId, logger)
}

// NewAWSKMSSigner fetches the public key of keyId once and caches its key
// hash.
func NewAWSKMSSigner(ctx context.Context, client KMSAPI, keyId string, logger *zap.Logger) (*AWSKMSSigner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("kms client cannot be nil")
	}
	if keyId == "" {
		return nil, txErrors.NewValidationError("keyId", "kms key id is required")
	}

	out, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyId)})
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	if out.KeySpec != "" && out.KeySpec != kmsTypes.KeySpecEccSecgP256k1 {
		return nil, txErrors.NewValidationError("keySpec", fmt.Sprintf("key %s is %s, expected %s", keyId, out.KeySpec, kmsTypes.KeySpecEccSecgP256k1))
	}
	pub, err := parseECDSAPublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", keyId)
	}

	s := &AWSKMSSigner{
		logger:    logger,
		kmsClient: client,
		keyId:     keyId,
		publicKey: pub,
		keyHash:   hashing.Sha256Hash(crypto.CompressPubkey(pub)),
	}
	logger.Sugar().Infow("Loaded KMS signing key",
		"keyId", keyId,
		"keyHash", s.keyHash.String(),
	)
	return s, nil
}

func (s *AWSKMSSigner) KeyId() string {
	return s.keyId
}

func (s *AWSKMSSigner) PublicKey() types.Key {
	return types.Key{Type: types.KeyTypeSecp256k1, Bytes: crypto.CompressPubkey(s.publicKey)}
}

func (s *AWSKMSSigner) GetKeyHash() hashing.Hash256 {
	return s.keyHash
}

func (s *AWSKMSSigner) SignTx(ctx context.Context, c *types.UnsignedTxContext) (*signer.SignedTx, error) {
	hash, err := signer.SignDocHash(c)
	if err != nil {
		return nil, err
	}
	sig, err := s.SignHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &signer.SignedTx{
		Credential:    &types.StandardCredential{KeyHash: s.keyHash, Signature: sig},
		SignedContext: c,
	}, nil
}

func (s *AWSKMSSigner) SignArbitrary(ctx context.Context, payload interface{}) (types.Credential, error) {
	hash, err := signer.ArbitraryHash(payload)
	if err != nil {
		return nil, err
	}
	sig, err := s.SignHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &types.StandardCredential{KeyHash: s.keyHash, Signature: sig}, nil
}

// SignHash asks KMS to sign a precomputed digest and returns the low-S
// 64 byte r||s form, checked against the cached public key.
func (s *AWSKMSSigner) SignHash(ctx context.Context, hash hashing.Hash256) (types.Secp256k1Signature, error) {
	out, err := s.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyId),
		Message:          hash[:],
		SigningAlgorithm: kmsTypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmsTypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, fmt.Errorf("kms sign failed for key %s: %w", s.keyId, err)
	}

	sig, err := signer.NormalizeDERSignature(out.Signature, signer.Secp256k1Order)
	if err != nil {
		return nil, err
	}
	if !crypto.VerifySignature(crypto.CompressPubkey(s.publicKey), hash[:], sig) {
		return nil, fmt.Errorf("kms signature does not verify against key %s", s.keyId)
	}
	s.logger.Debug("Signed digest with KMS",
		zap.String("keyId", s.keyId),
		zap.String("hash", hash.String()),
	)
	return types.Secp256k1Signature(sig), nil
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// parseECDSAPublicKey parses the DER SubjectPublicKeyInfo returned by KMS.
func parseECDSAPublicKey(derBytes []byte) (*ecdsa.PublicKey, error) {
	var pub asn1EcPublicKey
	rest, err := asn1.Unmarshal(derBytes, &pub)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("trailing data after ASN.1 public key")
	}
	return crypto.UnmarshalPubkey(pub.PublicKey.Bytes)
}

// Package rawKeySigner signs with a private key held in process memory.
package rawKeySigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/left-curve/dango-sdk-go/pkg/encoding"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type RawKeySigner struct {
	logger    *zap.Logger
	keyType   types.KeyType
	secp256k1 *ecdsa.PrivateKey
	ed25519   cmted25519.PrivKey
	publicKey []byte
	keyHash   hashing.Hash256
}

var _ signer.ISigner = (*RawKeySigner)(nil)

func NewSecp256k1Signer(key *ecdsa.PrivateKey, logger *zap.Logger) (*RawKeySigner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if key == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	pub := crypto.CompressPubkey(&key.PublicKey)
	return &RawKeySigner{
		logger:    logger,
		keyType:   types.KeyTypeSecp256k1,
		secp256k1: key,
		publicKey: pub,
		keyHash:   hashing.Sha256Hash(pub),
	}, nil
}

// NewSecp256k1SignerFromHex accepts a 32 byte key, with or without 0x.
func NewSecp256k1SignerFromHex(hexKey string, logger *zap.Logger) (*RawKeySigner, error) {
	raw, err := encoding.DecodeHexFixed(hexKey, 32)
	if err != nil {
		return nil, err
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid secp256k1 private key")
	}
	return NewSecp256k1Signer(key, logger)
}

func NewEd25519Signer(key cmted25519.PrivKey, logger *zap.Logger) (*RawKeySigner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(key) != cmted25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519 private key must be %d bytes, got %d", cmted25519.PrivateKeySize, len(key))
	}
	pub := key.PubKey().Bytes()
	return &RawKeySigner{
		logger:    logger,
		keyType:   types.KeyTypeEd25519,
		ed25519:   key,
		publicKey: pub,
		keyHash:   hashing.Sha256Hash(pub),
	}, nil
}

// GenerateSecp256k1 creates a signer around a fresh random key.
func GenerateSecp256k1(logger *zap.Logger) (*RawKeySigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate secp256k1 key")
	}
	return NewSecp256k1Signer(key, logger)
}

func GenerateEd25519(logger *zap.Logger) (*RawKeySigner, error) {
	return NewEd25519Signer(cmted25519.GenPrivKey(), logger)
}

func (s *RawKeySigner) KeyType() types.KeyType {
	return s.keyType
}

// PublicKey is the key as registered with the account factory.
func (s *RawKeySigner) PublicKey() types.Key {
	return types.Key{Type: s.keyType, Bytes: append([]byte(nil), s.publicKey...)}
}

// PrivateKeyBytes exposes the raw secret for the keyring.
func (s *RawKeySigner) PrivateKeyBytes() []byte {
	if s.keyType == types.KeyTypeEd25519 {
		return append([]byte(nil), s.ed25519...)
	}
	return crypto.FromECDSA(s.secp256k1)
}

func (s *RawKeySigner) GetKeyHash() hashing.Hash256 {
	return s.keyHash
}

func (s *RawKeySigner) SignTx(ctx context.Context, c *types.UnsignedTxContext) (*signer.SignedTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := signer.SignDocHash(c)
	if err != nil {
		return nil, err
	}
	sig, err := s.SignHash(hash)
	if err != nil {
		return nil, err
	}

	s.logger.Sugar().Debugw("Signed transaction",
		"sender", c.Sender.String(),
		"nonce", c.Sequence,
		"keyHash", s.keyHash.String(),
	)
	return &signer.SignedTx{
		Credential:    &types.StandardCredential{KeyHash: s.keyHash, Signature: sig},
		SignedContext: c,
	}, nil
}

func (s *RawKeySigner) SignArbitrary(ctx context.Context, payload interface{}) (types.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := signer.ArbitraryHash(payload)
	if err != nil {
		return nil, err
	}
	sig, err := s.SignHash(hash)
	if err != nil {
		return nil, err
	}
	return &types.StandardCredential{KeyHash: s.keyHash, Signature: sig}, nil
}

// SignHash signs a 32 byte digest. Secp256k1 signatures are 64 byte r||s
// with the recovery id dropped.
func (s *RawKeySigner) SignHash(hash hashing.Hash256) (types.Signature, error) {
	switch s.keyType {
	case types.KeyTypeSecp256k1:
		sig, err := crypto.Sign(hash[:], s.secp256k1)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to sign hash %s", hash)
		}
		return types.Secp256k1Signature(sig[:64]), nil
	case types.KeyTypeEd25519:
		sig, err := s.ed25519.Sign(hash[:])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to sign hash %s", hash)
		}
		return types.Ed25519Signature(sig), nil
	default:
		return nil, fmt.Errorf("unsupported key type %s", s.keyType)
	}
}

// Verify checks a signature produced by SignHash against this signer's key.
func (s *RawKeySigner) Verify(hash hashing.Hash256, sig types.Signature) bool {
	switch v := sig.(type) {
	case types.Secp256k1Signature:
		return s.keyType == types.KeyTypeSecp256k1 && crypto.VerifySignature(s.publicKey, hash[:], v)
	case types.Ed25519Signature:
		return s.keyType == types.KeyTypeEd25519 && s.ed25519.PubKey().VerifySignature(hash[:], v)
	default:
		return false
	}
}

// Package eip1193Signer signs Dango transactions as EIP-712 typed data with
// an Ethereum wallet.
package eip1193Signer

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/left-curve/dango-sdk-go/pkg/encoding"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/typedData"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	// DomainName is the EIP-712 domain name, usually the dapp's root domain.
	DomainName string

	// HintsFor optionally supplies per-message schemas for a transaction.
	HintsFor func(c *types.UnsignedTxContext) []typedData.MessageHint
}

type Eip1193Signer struct {
	logger   *zap.Logger
	provider Provider
	config   *Config
	account  common.Address
	keyHash  hashing.Hash256
}

var _ signer.ISigner = (*Eip1193Signer)(nil)

// NewEip1193Signer selects the wallet's first account and learns its key
// hash by signing a random challenge.
func NewEip1193Signer(ctx context.Context, provider Provider, cfg *Config, logger *zap.Logger) (*Eip1193Signer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	accounts, err := provider.RequestAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("wallet returned no accounts")
	}

	s := &Eip1193Signer{
		logger:   logger,
		provider: provider,
		config:   cfg,
		account:  accounts[0],
	}

	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return nil, fmt.Errorf("failed to generate challenge: %w", err)
	}
	td, err := typedData.ArbitraryTypedData(map[string]string{"challenge": encoding.EncodeHexPrefixed(challenge)})
	if err != nil {
		return nil, err
	}
	_, keyHash, err := s.signTypedData(ctx, td)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to learn key hash of %s", s.account.Hex())
	}
	s.keyHash = keyHash

	logger.Sugar().Infow("Connected EIP-1193 wallet",
		"account", s.account.Hex(),
		"keyHash", keyHash.String(),
	)
	return s, nil
}

func (s *Eip1193Signer) Account() common.Address {
	return s.account
}

// GetKeyHash is SHA-256 of the wallet's compressed secp256k1 public key.
func (s *Eip1193Signer) GetKeyHash() hashing.Hash256 {
	return s.keyHash
}

func (s *Eip1193Signer) SignTx(ctx context.Context, c *types.UnsignedTxContext) (*signer.SignedTx, error) {
	if c == nil {
		return nil, txErrors.NewValidationError("context", "unsigned tx context is required")
	}
	var hints []typedData.MessageHint
	if s.config.HintsFor != nil {
		hints = s.config.HintsFor(c)
	}
	td, err := typedData.TypedDataFor(ctx, typedData.ParamFromContext(c, s.config.DomainName, hints))
	if err != nil {
		return nil, err
	}
	sig, keyHash, err := s.signTypedData(ctx, td)
	if err != nil {
		return nil, err
	}
	if keyHash != s.keyHash {
		return nil, txErrors.NewValidationError("keyHash", "wallet signed with a different key")
	}
	return &signer.SignedTx{
		Credential:    &types.StandardCredential{KeyHash: keyHash, Signature: sig},
		SignedContext: c,
	}, nil
}

func (s *Eip1193Signer) SignArbitrary(ctx context.Context, payload interface{}) (types.Credential, error) {
	td, err := typedData.ArbitraryTypedData(payload)
	if err != nil {
		return nil, err
	}
	sig, keyHash, err := s.signTypedData(ctx, td)
	if err != nil {
		return nil, err
	}
	return &types.StandardCredential{KeyHash: keyHash, Signature: sig}, nil
}

func (s *Eip1193Signer) signTypedData(ctx context.Context, td *apitypes.TypedData) (types.Eip712Signature, hashing.Hash256, error) {
	hash, err := typedData.Hash(td)
	if err != nil {
		return types.Eip712Signature{}, hashing.Hash256{}, err
	}
	raw, err := typedData.Marshal(td)
	if err != nil {
		return types.Eip712Signature{}, hashing.Hash256{}, err
	}

	sig, err := s.provider.SignTypedDataV4(ctx, s.account, string(raw))
	if err != nil {
		return types.Eip712Signature{}, hashing.Hash256{}, err
	}
	keyHash, err := RecoverKeyHash(hash, sig)
	if err != nil {
		return types.Eip712Signature{}, hashing.Hash256{}, err
	}
	return types.Eip712Signature{TypedData: raw, Sig: append([]byte(nil), sig[:64]...)}, keyHash, nil
}

// RecoverKeyHash recovers the signer of a 65 byte wallet signature over
// hash and returns SHA-256 of its compressed public key. Both 0/1 and 27/28
// recovery ids are accepted.
func RecoverKeyHash(hash hashing.Hash256, sig []byte) (hashing.Hash256, error) {
	if len(sig) != 65 {
		return hashing.Hash256{}, txErrors.NewEncodingError("wallet signature", encoding.EncodeHexPrefixed(sig), fmt.Errorf("expected 65 bytes, got %d", len(sig)))
	}
	normalized := append([]byte(nil), sig...)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(hash[:], normalized)
	if err != nil {
		return hashing.Hash256{}, errors.Wrapf(err, "failed to recover public key")
	}
	return hashing.Sha256Hash(crypto.CompressPubkey(pub)), nil
}

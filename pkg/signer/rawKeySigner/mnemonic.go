package rawKeySigner

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"go.uber.org/zap"
)

// DefaultDerivationPath is the coin type 60 path used by Dango wallets.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// GenerateMnemonic returns a fresh 24 word phrase.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// NewFromMnemonic derives a secp256k1 signer along a BIP-32 path. An empty
// path selects DefaultDerivationPath.
func NewFromMnemonic(mnemonic, path string, logger *zap.Logger) (*RawKeySigner, error) {
	if path == "" {
		path = DefaultDerivationPath
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, errors.Wrapf(err, "invalid mnemonic")
	}
	indexes, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid derivation path %s", path)
	}

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create master key")
	}
	for _, index := range indexes {
		key, err = key.Derive(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child %d of %s", index, path)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to extract private key")
	}
	ecdsaKey, err := crypto.ToECDSA(priv.Serialize())
	if err != nil {
		return nil, errors.Wrapf(err, "invalid derived key")
	}
	return NewSecp256k1Signer(ecdsaKey, logger)
}

// Package salt derives the deterministic salts used when registering an
// account with the account factory.
package salt

import (
	"fmt"

	"github.com/left-curve/dango-sdk-go/pkg/encoding"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
)

const MaxUsernameLength = 255

// Params selects one of the two derivation modes. Exactly one of
// AccountIndex and KeyHash must be set.
type Params struct {
	Username string

	// Index mode.
	AccountIndex *uint8

	// Key-hash mode. PublicKey is the base64 transport form of the key.
	KeyHash   *hashing.Hash256
	KeyType   types.KeyType
	PublicKey string
}

// Encode lays out
//
//	len(username) || username || index
//
// in index mode and
//
//	len(username) || username || keyHash || keyTypeTag || publicKey
//
// in key-hash mode.
func Encode(p Params) ([]byte, error) {
	name, err := encoding.EncodeUTF8(p.Username)
	if err != nil {
		return nil, err
	}
	if len(name) > MaxUsernameLength {
		return nil, txErrors.NewValidationError("username", fmt.Sprintf("must be at most %d bytes, got %d", MaxUsernameLength, len(name)))
	}

	switch {
	case p.AccountIndex != nil && p.KeyHash != nil:
		return nil, txErrors.NewValidationError("salt", "account index and key hash are mutually exclusive")
	case p.AccountIndex == nil && p.KeyHash == nil:
		return nil, txErrors.NewValidationError("salt", "one of account index or key hash is required")
	}

	out := make([]byte, 0, 1+len(name)+1+len(p.KeyHash)+1+33)
	out = append(out, byte(len(name)))
	out = append(out, name...)

	if p.AccountIndex != nil {
		return append(out, *p.AccountIndex), nil
	}

	pubKey, err := encoding.DecodeBase64(p.PublicKey)
	if err != nil {
		return nil, err
	}
	out = append(out, p.KeyHash[:]...)
	out = append(out, byte(p.KeyType))
	out = append(out, pubKey...)
	return out, nil
}

// ForIndex is the salt of the index-th account registered under username.
func ForIndex(username string, index uint8) ([]byte, error) {
	return Encode(Params{Username: username, AccountIndex: &index})
}

// ForKey is the salt binding an account to an existing key.
func ForKey(username string, keyHash hashing.Hash256, keyType types.KeyType, publicKeyBase64 string) ([]byte, error) {
	return Encode(Params{
		Username:  username,
		KeyHash:   &keyHash,
		KeyType:   keyType,
		PublicKey: publicKeyBase64,
	})
}

// Package signer defines the credential backends a transaction pipeline can
// sign with.
package signer

import (
	"context"
	"fmt"

	"github.com/left-curve/dango-sdk-go/pkg/encoding"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
)

// SignedTx is the output of SignTx. SignedContext is the context the
// credential was produced over, returned so callers assemble the Tx from
// exactly what was signed.
type SignedTx struct {
	Credential    types.Credential
	SignedContext *types.UnsignedTxContext
}

// ISigner produces credentials for transactions and off-chain payloads.
type ISigner interface {
	// GetKeyHash returns the hash of the key registered to the account.
	GetKeyHash() hashing.Hash256

	// SignTx signs the canonical hash of the sign doc.
	SignTx(ctx context.Context, c *types.UnsignedTxContext) (*SignedTx, error)

	// SignArbitrary signs an application payload outside of a transaction.
	SignArbitrary(ctx context.Context, payload interface{}) (types.Credential, error)
}

// SignDocHash is SHA-256 of the canonical sign doc of c.
func SignDocHash(c *types.UnsignedTxContext) (hashing.Hash256, error) {
	if c == nil {
		return hashing.Hash256{}, txErrors.NewValidationError("context", "unsigned tx context is required")
	}
	h, err := c.SignDoc().SignHash()
	if err != nil {
		return hashing.Hash256{}, txErrors.NewEncodingError("sign doc", c.Sender.String(), err)
	}
	return h, nil
}

// ArbitraryHash is SHA-256 of the canonical JSON of payload.
func ArbitraryHash(payload interface{}) (hashing.Hash256, error) {
	b, err := encoding.SerializeCanonical(payload)
	if err != nil {
		return hashing.Hash256{}, txErrors.NewEncodingError("arbitrary payload", fmt.Sprintf("%T", payload), err)
	}
	return hashing.Sha256Hash(b), nil
}

// StandardCredentialOf returns c as a standard credential, or an
// UnsupportedCredentialError when it is any other shape.
func StandardCredentialOf(c types.Credential) (*types.StandardCredential, error) {
	switch cred := c.(type) {
	case *types.StandardCredential:
		return cred, nil
	case nil:
		return nil, &txErrors.UnsupportedCredentialError{Kind: "nil", Expected: string(types.CredentialKindStandard)}
	default:
		return nil, &txErrors.UnsupportedCredentialError{Kind: string(c.CredentialKind()), Expected: string(types.CredentialKindStandard)}
	}
}

// Package passkeySigner signs through a WebAuthn authenticator holding a
// secp256r1 passkey.
package passkeySigner

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/left-curve/dango-sdk-go/pkg/encoding"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const clientDataTypeGet = "webauthn.get"

// Assertion is the authenticator's answer to a navigator.credentials.get
// request. Signature is ASN.1 DER.
type Assertion struct {
	CredentialID      []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
}

// Authenticator is the platform bridge that performs the user ceremony.
type Authenticator interface {
	GetAssertion(ctx context.Context, credentialID []byte, challenge []byte) (*Assertion, error)
}

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

type PasskeySigner struct {
	logger        *zap.Logger
	authenticator Authenticator
	credentialID  []byte
	keyHash       hashing.Hash256
}

var _ signer.ISigner = (*PasskeySigner)(nil)

func NewPasskeySigner(authenticator Authenticator, credentialID []byte, logger *zap.Logger) (*PasskeySigner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator cannot be nil")
	}
	if len(credentialID) == 0 {
		return nil, fmt.Errorf("credential id cannot be empty")
	}
	return &PasskeySigner{
		logger:        logger,
		authenticator: authenticator,
		credentialID:  append([]byte(nil), credentialID...),
		keyHash:       hashing.Sha256Hash(credentialID),
	}, nil
}

// GetKeyHash is SHA-256 of the credential id.
func (s *PasskeySigner) GetKeyHash() hashing.Hash256 {
	return s.keyHash
}

func (s *PasskeySigner) SignTx(ctx context.Context, c *types.UnsignedTxContext) (*signer.SignedTx, error) {
	hash, err := signer.SignDocHash(c)
	if err != nil {
		return nil, err
	}
	sig, err := s.sign(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &signer.SignedTx{
		Credential:    &types.StandardCredential{KeyHash: s.keyHash, Signature: sig},
		SignedContext: c,
	}, nil
}

func (s *PasskeySigner) SignArbitrary(ctx context.Context, payload interface{}) (types.Credential, error) {
	hash, err := signer.ArbitraryHash(payload)
	if err != nil {
		return nil, err
	}
	sig, err := s.sign(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &types.StandardCredential{KeyHash: s.keyHash, Signature: sig}, nil
}

func (s *PasskeySigner) sign(ctx context.Context, challenge hashing.Hash256) (types.PasskeySignature, error) {
	assertion, err := s.authenticator.GetAssertion(ctx, s.credentialID, challenge[:])
	if err != nil {
		return types.PasskeySignature{}, errors.Wrapf(err, "authenticator assertion failed")
	}
	if assertion == nil {
		return types.PasskeySignature{}, fmt.Errorf("authenticator returned no assertion")
	}
	if len(assertion.CredentialID) > 0 && !bytes.Equal(assertion.CredentialID, s.credentialID) {
		return types.PasskeySignature{}, txErrors.NewValidationError("credentialId", "assertion was made by a different credential")
	}

	var cd clientData
	if err := json.Unmarshal(assertion.ClientDataJSON, &cd); err != nil {
		return types.PasskeySignature{}, txErrors.NewEncodingError("client data", string(assertion.ClientDataJSON), err)
	}
	if cd.Type != clientDataTypeGet {
		return types.PasskeySignature{}, txErrors.NewValidationError("clientData.type", fmt.Sprintf("expected %s, got %q", clientDataTypeGet, cd.Type))
	}
	if cd.Challenge != encoding.EncodeBase64URL(challenge[:]) {
		return types.PasskeySignature{}, txErrors.NewValidationError("clientData.challenge", "does not match the signing hash")
	}

	sig, err := signer.NormalizeDERSignature(assertion.Signature, signer.P256Order)
	if err != nil {
		return types.PasskeySignature{}, txErrors.NewEncodingError("passkey signature", encoding.EncodeHex(assertion.Signature), err)
	}

	s.logger.Sugar().Debugw("Passkey assertion accepted",
		"keyHash", s.keyHash.String(),
		"origin", cd.Origin,
	)
	return types.PasskeySignature{
		AuthenticatorData: assertion.AuthenticatorData,
		ClientData:        assertion.ClientDataJSON,
		Sig:               sig,
	}, nil
}

// SignedMessage is what the authenticator signs:
// authenticatorData || SHA-256(clientDataJSON).
func SignedMessage(sig types.PasskeySignature) []byte {
	clientHash := sha256.Sum256(sig.ClientData)
	out := make([]byte, 0, len(sig.AuthenticatorData)+len(clientHash))
	out = append(out, sig.AuthenticatorData...)
	return append(out, clientHash[:]...)
}

// Verify checks a passkey signature against a secp256r1 public key.
func Verify(pub *ecdsa.PublicKey, sig types.PasskeySignature) bool {
	if pub == nil || len(sig.Sig) != 64 {
		return false
	}
	digest := sha256.Sum256(SignedMessage(sig))
	r := new(big.Int).SetBytes(sig.Sig[:32])
	sv := new(big.Int).SetBytes(sig.Sig[32:])
	return ecdsa.Verify(pub, digest[:], r, sv)
}

// PublicKeyFromJWK converts a P-256 JWK, as exported by a browser during
// passkey registration, into the compressed secp256r1 key.
func PublicKeyFromJWK(raw []byte) (types.Key, error) {
	key, err := jwk.ParseKey(raw)
	if err != nil {
		return types.Key{}, errors.Wrapf(err, "failed to parse JWK")
	}
	pubKey, err := jwk.PublicKeyOf(key)
	if err != nil {
		return types.Key{}, errors.Wrapf(err, "failed to get public key from JWK")
	}

	var pub ecdsa.PublicKey
	if err := jwk.Export(pubKey, &pub); err != nil {
		return types.Key{}, errors.Wrapf(err, "JWK is not an EC public key")
	}
	if pub.Curve != elliptic.P256() {
		return types.Key{}, fmt.Errorf("JWK curve must be P-256, got %s", pub.Curve.Params().Name)
	}
	return types.Key{
		Type:  types.KeyTypeSecp256r1,
		Bytes: elliptic.MarshalCompressed(elliptic.P256(), pub.X, pub.Y),
	}, nil
}

package types

import (
	"encoding/json"
	"fmt"

	"github.com/left-curve/dango-sdk-go/pkg/hashing"
)

type CredentialKind string

const (
	CredentialKindStandard CredentialKind = "standard"
	CredentialKindSession  CredentialKind = "session"
)

// Credential is the proof of authorization embedded in a Tx. It is either a
// *StandardCredential or a *SessionCredential.
type Credential interface {
	CredentialKind() CredentialKind
	isCredential()
}

// StandardCredential is a signature by a key registered to the account.
type StandardCredential struct {
	KeyHash   hashing.Hash256
	Signature Signature
}

// SessionInfo is what the long-lived key signs when delegating to a session
// key. SessionKey is a 33 byte compressed secp256k1 point.
type SessionInfo struct {
	SessionKey []byte    `json:"session_key"`
	ExpireAt   Timestamp `json:"expire_at"`
}

// SessionCredential is a signature by a session key, together with the
// standard credential that authorized the session.
type SessionCredential struct {
	SessionInfo      SessionInfo        `json:"session_info"`
	SessionSignature []byte             `json:"session_signature"`
	Authorization    StandardCredential `json:"authorization"`
}

func (*StandardCredential) CredentialKind() CredentialKind { return CredentialKindStandard }
func (*SessionCredential) CredentialKind() CredentialKind  { return CredentialKindSession }

func (*StandardCredential) isCredential() {}
func (*SessionCredential) isCredential()  {}

type standardCredentialJSON struct {
	KeyHash   hashing.Hash256 `json:"key_hash"`
	Signature json.RawMessage `json:"signature"`
}

func (c StandardCredential) MarshalJSON() ([]byte, error) {
	sig, err := marshalSignature(c.Signature)
	if err != nil {
		return nil, err
	}
	return json.Marshal(standardCredentialJSON{KeyHash: c.KeyHash, Signature: sig})
}

func (c *StandardCredential) UnmarshalJSON(data []byte) error {
	var raw standardCredentialJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sig, err := unmarshalSignature(raw.Signature)
	if err != nil {
		return err
	}
	c.KeyHash = raw.KeyHash
	c.Signature = sig
	return nil
}

// MarshalCredential renders the externally tagged form used in Tx.
func MarshalCredential(c Credential) ([]byte, error) {
	switch cred := c.(type) {
	case *StandardCredential:
		return json.Marshal(map[CredentialKind]*StandardCredential{CredentialKindStandard: cred})
	case *SessionCredential:
		return json.Marshal(map[CredentialKind]*SessionCredential{CredentialKindSession: cred})
	case nil:
		return nil, fmt.Errorf("cannot marshal nil credential")
	default:
		return nil, fmt.Errorf("unknown credential type %T", c)
	}
}

func UnmarshalCredential(data []byte) (Credential, error) {
	var envelope map[CredentialKind]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode credential envelope: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("credential must have exactly one variant, got %d", len(envelope))
	}
	if body, ok := envelope[CredentialKindStandard]; ok {
		var c StandardCredential
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, err
		}
		return &c, nil
	}
	if body, ok := envelope[CredentialKindSession]; ok {
		var c SessionCredential
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, err
		}
		return &c, nil
	}
	return nil, fmt.Errorf("unknown credential variant")
}

package types

import (
	"encoding/json"
	"fmt"
)

type SignatureKind string

const (
	SignatureKindPasskey   SignatureKind = "passkey"
	SignatureKindSecp256k1 SignatureKind = "secp256k1"
	SignatureKindEip712    SignatureKind = "eip712"
	SignatureKindEd25519   SignatureKind = "ed25519"
)

// Signature is the proof inside a standard credential.
type Signature interface {
	SignatureKind() SignatureKind
	isSignature()
}

// PasskeySignature is a WebAuthn assertion. ClientData is the raw client
// data JSON and Sig the 64 byte low-S r||s over secp256r1.
type PasskeySignature struct {
	AuthenticatorData []byte `json:"authenticator_data"`
	ClientData        []byte `json:"client_data"`
	Sig               []byte `json:"sig"`
}

// Secp256k1Signature is 64 bytes r||s.
type Secp256k1Signature []byte

// Eip712Signature carries the signed typed data document, JSON encoded, next
// to the 64 byte signature.
type Eip712Signature struct {
	TypedData []byte `json:"typed_data"`
	Sig       []byte `json:"sig"`
}

type Ed25519Signature []byte

func (PasskeySignature) SignatureKind() SignatureKind   { return SignatureKindPasskey }
func (Secp256k1Signature) SignatureKind() SignatureKind { return SignatureKindSecp256k1 }
func (Eip712Signature) SignatureKind() SignatureKind    { return SignatureKindEip712 }
func (Ed25519Signature) SignatureKind() SignatureKind   { return SignatureKindEd25519 }

func (PasskeySignature) isSignature()   {}
func (Secp256k1Signature) isSignature() {}
func (Eip712Signature) isSignature()    {}
func (Ed25519Signature) isSignature()   {}

func marshalSignature(s Signature) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot marshal nil signature")
	}
	switch sig := s.(type) {
	case PasskeySignature, Eip712Signature:
		return json.Marshal(map[SignatureKind]Signature{s.SignatureKind(): sig})
	case Secp256k1Signature:
		return json.Marshal(map[SignatureKind][]byte{SignatureKindSecp256k1: sig})
	case Ed25519Signature:
		return json.Marshal(map[SignatureKind][]byte{SignatureKindEd25519: sig})
	default:
		return nil, fmt.Errorf("unknown signature type %T", s)
	}
}

func unmarshalSignature(data []byte) (Signature, error) {
	var envelope map[SignatureKind]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode signature envelope: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("signature must have exactly one variant, got %d", len(envelope))
	}
	for kind, body := range envelope {
		switch kind {
		case SignatureKindPasskey:
			var s PasskeySignature
			if err := json.Unmarshal(body, &s); err != nil {
				return nil, err
			}
			return s, nil
		case SignatureKindEip712:
			var s Eip712Signature
			if err := json.Unmarshal(body, &s); err != nil {
				return nil, err
			}
			return s, nil
		case SignatureKindSecp256k1, SignatureKindEd25519:
			var b []byte
			if err := json.Unmarshal(body, &b); err != nil {
				return nil, err
			}
			if kind == SignatureKindSecp256k1 {
				return Secp256k1Signature(b), nil
			}
			return Ed25519Signature(b), nil
		default:
			return nil, fmt.Errorf("unknown signature kind: %s", kind)
		}
	}
	return nil, fmt.Errorf("empty signature envelope")
}

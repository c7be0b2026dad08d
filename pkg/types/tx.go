package types

import (
	"encoding/json"
	"fmt"

	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/encoding"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
)

// Metadata is the `data` field of a transaction.
type Metadata struct {
	Username string     `json:"username"`
	ChainID  string     `json:"chain_id"`
	Nonce    uint32     `json:"nonce"`
	Expiry   *Timestamp `json:"expiry,omitempty"`
}

// UnsignedTxContext is everything a signer needs to produce a credential.
// It is created for one signing operation and discarded afterwards.
type UnsignedTxContext struct {
	Sender   address.Address
	Username string
	Messages Messages
	ChainID  string
	Sequence uint32
	GasLimit uint64
	Expiry   *Timestamp
}

func (c *UnsignedTxContext) Metadata() Metadata {
	return Metadata{
		Username: c.Username,
		ChainID:  c.ChainID,
		Nonce:    c.Sequence,
		Expiry:   c.Expiry,
	}
}

// SignDoc is the document whose canonical serialization is hashed and
// signed.
type SignDoc struct {
	Sender   address.Address `json:"sender"`
	GasLimit uint64          `json:"gas_limit"`
	Messages Messages        `json:"messages"`
	Data     Metadata        `json:"data"`
}

func (c *UnsignedTxContext) SignDoc() SignDoc {
	return SignDoc{
		Sender:   c.Sender,
		GasLimit: c.GasLimit,
		Messages: c.Messages,
		Data:     c.Metadata(),
	}
}

// SignBytes is the canonical serialization of the sign doc.
func (d SignDoc) SignBytes() ([]byte, error) {
	return encoding.SerializeCanonical(d)
}

// SignHash is SHA-256 of SignBytes.
func (d SignDoc) SignHash() (hashing.Hash256, error) {
	b, err := d.SignBytes()
	if err != nil {
		return hashing.Hash256{}, err
	}
	return hashing.Sha256Hash(b), nil
}

// UnsignedTx is the simulation input.
type UnsignedTx struct {
	Sender address.Address `json:"sender"`
	Msgs   Messages        `json:"msgs"`
	Data   Metadata        `json:"data"`
}

// Tx is the final signed wire object.
type Tx struct {
	Sender     address.Address
	GasLimit   uint64
	Msgs       Messages
	Data       Metadata
	Credential Credential
}

type txJSON struct {
	Sender     address.Address `json:"sender"`
	GasLimit   uint64          `json:"gas_limit"`
	Msgs       Messages        `json:"msgs"`
	Data       Metadata        `json:"data"`
	Credential json.RawMessage `json:"credential"`
}

func (tx Tx) MarshalJSON() ([]byte, error) {
	cred, err := MarshalCredential(tx.Credential)
	if err != nil {
		return nil, err
	}
	return json.Marshal(txJSON{
		Sender:     tx.Sender,
		GasLimit:   tx.GasLimit,
		Msgs:       tx.Msgs,
		Data:       tx.Data,
		Credential: cred,
	})
}

func (tx *Tx) UnmarshalJSON(data []byte) error {
	var raw txJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cred, err := UnmarshalCredential(raw.Credential)
	if err != nil {
		return err
	}
	*tx = Tx{
		Sender:     raw.Sender,
		GasLimit:   raw.GasLimit,
		Msgs:       raw.Msgs,
		Data:       raw.Data,
		Credential: cred,
	}
	return nil
}

// WireBytes is the byte form broadcast to the node.
func (tx *Tx) WireBytes() ([]byte, error) {
	b, err := encoding.SerializeCanonical(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize tx: %w", err)
	}
	return b, nil
}

// TxHash is SHA-256 of the wire bytes, in uppercase hex.
func TxHash(wire []byte) string {
	return hashing.Sha256Hash(wire).String()
}

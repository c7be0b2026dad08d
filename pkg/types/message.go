package types

import (
	"encoding/json"
	"fmt"

	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
)

type MessageKind string

const (
	MessageKindConfigure   MessageKind = "configure"
	MessageKindTransfer    MessageKind = "transfer"
	MessageKindUpload      MessageKind = "upload"
	MessageKindInstantiate MessageKind = "instantiate"
	MessageKindExecute     MessageKind = "execute"
	MessageKindMigrate     MessageKind = "migrate"
)

// MaxSaltLength bounds the salt of an instantiate message.
const MaxSaltLength = 82

// Message is one operation in a transaction. The set of implementations is
// closed; consumers switch on the concrete type.
type Message interface {
	Kind() MessageKind
	isMessage()
}

type MsgConfigure struct {
	NewCfg    json.RawMessage `json:"new_cfg,omitempty"`
	NewAppCfg json.RawMessage `json:"new_app_cfg,omitempty"`
}

// MsgTransfer sends coins to one or more recipients.
type MsgTransfer map[address.Address]Coins

type MsgUpload struct {
	Code []byte `json:"code"`
}

type MsgInstantiate struct {
	CodeHash hashing.Hash256  `json:"code_hash"`
	Msg      json.RawMessage  `json:"msg"`
	Salt     []byte           `json:"salt"`
	Label    string           `json:"label,omitempty"`
	Admin    *address.Address `json:"admin,omitempty"`
	Funds    Coins            `json:"funds"`
}

type MsgExecute struct {
	Contract address.Address `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    Coins           `json:"funds"`
}

type MsgMigrate struct {
	Contract    address.Address `json:"contract"`
	NewCodeHash hashing.Hash256 `json:"new_code_hash"`
	Msg         json.RawMessage `json:"msg"`
}

func (MsgConfigure) Kind() MessageKind   { return MessageKindConfigure }
func (MsgTransfer) Kind() MessageKind    { return MessageKindTransfer }
func (MsgUpload) Kind() MessageKind      { return MessageKindUpload }
func (MsgInstantiate) Kind() MessageKind { return MessageKindInstantiate }
func (MsgExecute) Kind() MessageKind     { return MessageKindExecute }
func (MsgMigrate) Kind() MessageKind     { return MessageKindMigrate }

func (MsgConfigure) isMessage()   {}
func (MsgTransfer) isMessage()    {}
func (MsgUpload) isMessage()      {}
func (MsgInstantiate) isMessage() {}
func (MsgExecute) isMessage()     {}
func (MsgMigrate) isMessage()     {}

// NewExecute marshals an application payload into an execute message.
func NewExecute(contract address.Address, msg interface{}, funds Coins) (MsgExecute, error) {
	raw, err := marshalPayload(msg)
	if err != nil {
		return MsgExecute{}, err
	}
	return MsgExecute{Contract: contract, Msg: raw, Funds: funds}, nil
}

func NewInstantiate(codeHash hashing.Hash256, msg interface{}, salt []byte, label string, admin *address.Address, funds Coins) (MsgInstantiate, error) {
	if len(salt) > MaxSaltLength {
		return MsgInstantiate{}, fmt.Errorf("salt must be at most %d bytes, got %d", MaxSaltLength, len(salt))
	}
	if len(label) > 128 {
		return MsgInstantiate{}, fmt.Errorf("label must be at most 128 characters")
	}
	raw, err := marshalPayload(msg)
	if err != nil {
		return MsgInstantiate{}, err
	}
	return MsgInstantiate{
		CodeHash: codeHash,
		Msg:      raw,
		Salt:     salt,
		Label:    label,
		Admin:    admin,
		Funds:    funds,
	}, nil
}

func NewMigrate(contract address.Address, newCodeHash hashing.Hash256, msg interface{}) (MsgMigrate, error) {
	raw, err := marshalPayload(msg)
	if err != nil {
		return MsgMigrate{}, err
	}
	return MsgMigrate{Contract: contract, NewCodeHash: newCodeHash, Msg: raw}, nil
}

func NewConfigure(newCfg interface{}, newAppCfg interface{}) (MsgConfigure, error) {
	var m MsgConfigure
	if newCfg != nil {
		raw, err := marshalPayload(newCfg)
		if err != nil {
			return m, err
		}
		m.NewCfg = raw
	}
	if newAppCfg != nil {
		raw, err := marshalPayload(newAppCfg)
		if err != nil {
			return m, err
		}
		m.NewAppCfg = raw
	}
	return m, nil
}

func marshalPayload(msg interface{}) (json.RawMessage, error) {
	if raw, ok := msg.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("payload is not valid json")
		}
		return raw, nil
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return raw, nil
}

// MarshalMessage renders the externally tagged form {"<kind>": {...}}.
func MarshalMessage(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("cannot marshal nil message")
	}
	return json.Marshal(map[MessageKind]Message{m.Kind(): m})
}

func UnmarshalMessage(data []byte) (Message, error) {
	var envelope map[MessageKind]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode message envelope: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("message must have exactly one variant, got %d", len(envelope))
	}

	for kind, body := range envelope {
		switch kind {
		case MessageKindConfigure:
			return decodeMessage[MsgConfigure](body)
		case MessageKindTransfer:
			return decodeMessage[MsgTransfer](body)
		case MessageKindUpload:
			return decodeMessage[MsgUpload](body)
		case MessageKindInstantiate:
			return decodeMessage[MsgInstantiate](body)
		case MessageKindExecute:
			return decodeMessage[MsgExecute](body)
		case MessageKindMigrate:
			return decodeMessage[MsgMigrate](body)
		default:
			return nil, fmt.Errorf("unknown message kind: %s", kind)
		}
	}
	return nil, fmt.Errorf("empty message envelope")
}

func decodeMessage[T Message](body json.RawMessage) (Message, error) {
	var m T
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to decode message body: %w", err)
	}
	return m, nil
}

// Messages is an ordered list of messages with the tagged JSON codec.
type Messages []Message

func (ms Messages) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(ms))
	for i, m := range ms {
		raw, err := MarshalMessage(m)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func (ms *Messages) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	decoded := make(Messages, 0, len(raws))
	for i, raw := range raws {
		m, err := UnmarshalMessage(raw)
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		decoded = append(decoded, m)
	}
	*ms = decoded
	return nil
}

// Package typedData composes EIP-712 documents for Dango transactions so
// that wallets speaking eth_signTypedData_v4 can sign them.
package typedData

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
)

const (
	DefaultDomainName   = "Dango"
	ArbitraryDomainName = "DangoArbitraryMessage"
)

// MessageHint lets a caller supply their own schema for one message.
type MessageHint struct {
	// MsgType names the struct type of an execute payload. Its definition
	// must be present in ExtraTypes.
	MsgType string

	// ExtraTypes are merged into the document. Later hints overwrite earlier
	// ones on a name clash.
	ExtraTypes apitypes.Types
}

type TypedDataParam struct {
	Sender     address.Address
	Metadata   types.Metadata
	GasLimit   uint64
	Messages   types.Messages
	DomainName string

	// Hints is indexed like Messages and may be shorter.
	Hints []MessageHint
}

// ParamFromContext builds the composer input for a signing context.
func ParamFromContext(c *types.UnsignedTxContext, domainName string, hints []MessageHint) *TypedDataParam {
	return &TypedDataParam{
		Sender:     c.Sender,
		Metadata:   c.Metadata(),
		GasLimit:   c.GasLimit,
		Messages:   c.Messages,
		DomainName: domainName,
		Hints:      hints,
	}
}

// TypedDataFor composes the full EIP-712 document of a transaction. The
// messages field is an array of TxMessage whose values are the tagged
// messages exactly as they appear in the sign doc.
func TypedDataFor(ctx context.Context, p *TypedDataParam) (*apitypes.TypedData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, txErrors.NewValidationError("typedData", "param is required")
	}

	reg := newRegistry()
	items := make([]interface{}, 0, len(p.Messages))
	envelope := []apitypes.Type{}

	for i, msg := range p.Messages {
		var hint MessageHint
		if i < len(p.Hints) {
			hint = p.Hints[i]
		}
		field, value, err := composeMessage(reg, msg, hint)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		if len(envelope) == 0 {
			envelope = append(envelope, field)
		} else if envelope[0] != field {
			return nil, fmt.Errorf("message %d: %w", i, txErrors.NewValidationError("messages",
				fmt.Sprintf("%s cannot share a transaction with %s", field.Name, envelope[0].Name)))
		}
		items = append(items, value)
	}
	if err := reg.settle(txMessageTypeName, envelope); err != nil {
		return nil, err
	}

	metaFields, metaValue := composeMetadata(p.Metadata)
	if err := reg.settle(metadataTypeName, metaFields); err != nil {
		return nil, err
	}
	if err := reg.settle(primaryTypeName, []apitypes.Type{
		{Name: "metadata", Type: metadataTypeName},
		{Name: "gas_limit", Type: "uint64"},
		{Name: "messages", Type: txMessageTypeName + "[]"},
	}); err != nil {
		return nil, err
	}
	if err := reg.settle(domainTypeName, []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "verifyingContract", Type: "address"},
	}); err != nil {
		return nil, err
	}

	for i, hint := range p.Hints {
		if err := mergeExtraTypes(reg, hint.ExtraTypes); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}

	domainName := p.DomainName
	if domainName == "" {
		domainName = DefaultDomainName
	}

	return &apitypes.TypedData{
		Types:       reg.types,
		PrimaryType: primaryTypeName,
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			VerifyingContract: p.Sender.String(),
		},
		Message: apitypes.TypedDataMessage{
			"metadata":  metaValue,
			"gas_limit": strconv.FormatUint(p.GasLimit, 10),
			"messages":  items,
		},
	}, nil
}

// ArbitraryTypedData wraps an application payload for off-chain signing.
// Types are inferred from the payload.
func ArbitraryTypedData(payload interface{}) (*apitypes.TypedData, error) {
	obj, err := toObject(payload)
	if err != nil {
		return nil, err
	}

	reg := newRegistry()
	fields, value, err := inferObject(reg, "", primaryTypeName, obj)
	if err != nil {
		return nil, err
	}
	if err := reg.settle(primaryTypeName, fields); err != nil {
		return nil, err
	}
	if err := reg.settle(domainTypeName, []apitypes.Type{{Name: "name", Type: "string"}}); err != nil {
		return nil, err
	}

	return &apitypes.TypedData{
		Types:       reg.types,
		PrimaryType: primaryTypeName,
		Domain:      apitypes.TypedDataDomain{Name: ArbitraryDomainName},
		Message:     value,
	}, nil
}

// Hash is the EIP-712 signing hash keccak256(0x1901 || domain || message).
func Hash(td *apitypes.TypedData) (hashing.Hash256, error) {
	digest, _, err := apitypes.TypedDataAndHash(*td)
	if err != nil {
		return hashing.Hash256{}, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return hashing.Hash256FromBytes(digest)
}

// Marshal is the JSON form handed to wallets and embedded in eip712
// signatures.
func Marshal(td *apitypes.TypedData) ([]byte, error) {
	b, err := json.Marshal(td)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}
	return b, nil
}

func Unmarshal(data []byte) (*apitypes.TypedData, error) {
	var td apitypes.TypedData
	if err := json.Unmarshal(data, &td); err != nil {
		return nil, txErrors.NewEncodingError("typed data decode", string(data), err)
	}
	return &td, nil
}

// composeMessage returns the TxMessage field of msg's kind and the tagged
// message value.
func composeMessage(reg *registry, msg types.Message, hint MessageHint) (apitypes.Type, map[string]interface{}, error) {
	if msg == nil {
		return apitypes.Type{}, nil, txErrors.NewValidationError("messages", "nil message")
	}
	raw, err := types.MarshalMessage(msg)
	if err != nil {
		return apitypes.Type{}, nil, err
	}
	var envelope map[string]interface{}
	if err := decodeUseNumber(raw, &envelope); err != nil {
		return apitypes.Type{}, nil, err
	}
	kind := string(msg.Kind())
	body, ok := envelope[kind].(map[string]interface{})
	if !ok {
		return apitypes.Type{}, nil, txErrors.NewValidationError("messages", fmt.Sprintf("%s body is not an object", kind))
	}

	path := strconv.Quote(kind)
	kindName := reg.reserve(path, pascal(kind))

	var (
		fields []apitypes.Type
		value  map[string]interface{}
	)
	if hint.MsgType != "" && msg.Kind() == types.MessageKindExecute {
		fields, value, err = composeExecuteWithSchema(reg, path, kindName, body, hint)
	} else {
		fields, value, err = inferObject(reg, path, kindName, body)
	}
	if err != nil {
		return apitypes.Type{}, nil, err
	}
	if len(fields) == 0 {
		return apitypes.Type{}, nil, txErrors.NewValidationError("messages", fmt.Sprintf("%s body has no fields", kind))
	}
	if err := reg.settle(kindName, fields); err != nil {
		return apitypes.Type{}, nil, err
	}
	return apitypes.Type{Name: kind, Type: kindName}, map[string]interface{}{kind: value}, nil
}

// composeExecuteWithSchema keeps the caller's msg type and infers only
// contract and funds.
func composeExecuteWithSchema(reg *registry, path, kindName string, body map[string]interface{}, hint MessageHint) ([]apitypes.Type, map[string]interface{}, error) {
	if _, ok := hint.ExtraTypes[hint.MsgType]; !ok {
		return nil, nil, txErrors.NewValidationError("msgType", fmt.Sprintf("type %s is not defined in extra types", hint.MsgType))
	}
	rest := make(map[string]interface{}, len(body))
	for k, v := range body {
		if k != "msg" {
			rest[k] = v
		}
	}
	fields, value, err := inferObject(reg, path, kindName, rest)
	if err != nil {
		return nil, nil, err
	}
	fields = append(fields, apitypes.Type{Name: "msg", Type: hint.MsgType})
	sort.Slice(fields, func(a, b int) bool { return fields[a].Name < fields[b].Name })
	value["msg"] = normalize(body["msg"])
	return fields, value, nil
}

func composeMetadata(m types.Metadata) ([]apitypes.Type, map[string]interface{}) {
	fields := []apitypes.Type{
		{Name: "username", Type: "string"},
		{Name: "chain_id", Type: "string"},
		{Name: "nonce", Type: "uint32"},
	}
	value := map[string]interface{}{
		"username": m.Username,
		"chain_id": m.ChainID,
		"nonce":    strconv.FormatUint(uint64(m.Nonce), 10),
	}
	if m.Expiry != nil {
		fields = append(fields, apitypes.Type{Name: "expiry", Type: "string"})
		value["expiry"] = m.Expiry.String()
	}
	return fields, value
}

func mergeExtraTypes(reg *registry, extra apitypes.Types) error {
	for name, fields := range extra {
		if reg.isTaken(name) {
			return txErrors.NewValidationError("extraTypes", fmt.Sprintf("type %s collides with a composed type", name))
		}
		reg.types[name] = fields
	}
	return nil
}

// inferObject derives a struct layout from a decoded JSON object. Keys are
// visited in sorted order so the layout is deterministic. Null fields and
// empty objects carry nothing to hash and are left out of both the layout
// and the value.
func inferObject(reg *registry, path, typeName string, obj map[string]interface{}) ([]apitypes.Type, map[string]interface{}, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]apitypes.Type, 0, len(keys))
	value := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		v := obj[key]
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok && len(nested) == 0 {
			continue
		}
		typ, val, err := inferValue(reg, path+"."+strconv.Quote(key), typeName, key, v)
		if err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", key, err)
		}
		if typ == "" {
			continue
		}
		fields = append(fields, apitypes.Type{Name: key, Type: typ})
		value[key] = val
	}
	return fields, value, nil
}

// inferValue returns the EIP-712 type of v. An object whose fields are all
// pruned yields an empty type.
func inferValue(reg *registry, path, parentName, key string, v interface{}) (string, interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		base := parentName + "Entry"
		if isIdentifier(key) {
			base = pascal(key)
		}
		name := reg.reserve(path, base)
		fields, nested, err := inferObject(reg, path, name, val)
		if err != nil {
			return "", nil, err
		}
		if len(fields) == 0 {
			return "", nil, nil
		}
		if err := reg.settle(name, fields); err != nil {
			return "", nil, err
		}
		return name, nested, nil
	case []interface{}:
		return inferArray(reg, path+"[]", parentName, key, val)
	default:
		return inferPrimitive(val)
	}
}

// inferArray types a homogeneous array as T[]. Objects inside one array
// share a single struct type, so they must share a layout.
func inferArray(reg *registry, path, parentName, key string, items []interface{}) (string, interface{}, error) {
	if len(items) == 0 {
		return "string[]", []interface{}{}, nil
	}
	var elemType string
	out := make([]interface{}, 0, len(items))
	for i, item := range items {
		if item == nil {
			return "", nil, txErrors.NewValidationError(key, fmt.Sprintf("element %d is null", i))
		}
		typ, val, err := inferValue(reg, path, parentName, key, item)
		if err != nil {
			return "", nil, err
		}
		if typ == "" {
			return "", nil, txErrors.NewValidationError(key, fmt.Sprintf("element %d is an empty object", i))
		}
		if elemType != "" && typ != elemType {
			return "", nil, txErrors.NewValidationError(key, fmt.Sprintf("element %d is %s, expected %s", i, typ, elemType))
		}
		elemType = typ
		out = append(out, val)
	}
	return elemType + "[]", out, nil
}

// inferPrimitive maps JSON scalars onto EIP-712 atoms. Values pass through
// unchanged apart from numbers, which become their decimal text.
func inferPrimitive(v interface{}) (string, interface{}, error) {
	switch val := v.(type) {
	case string:
		return "string", val, nil
	case bool:
		return "bool", val, nil
	case json.Number:
		s := val.String()
		if !isInteger(s) {
			return "", nil, txErrors.NewValidationError("number", fmt.Sprintf("%s is not an integer", s))
		}
		if strings.HasPrefix(s, "-") {
			return "int256", s, nil
		}
		return "uint256", s, nil
	default:
		return "", nil, txErrors.NewValidationError("value", fmt.Sprintf("unsupported JSON value %T", v))
	}
}

func isInteger(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// normalize converts json.Number leaves into strings, which the EIP-712
// encoder accepts for every integer width.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case json.Number:
		return val.String()
	default:
		return val
	}
}

func toObject(payload interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, txErrors.NewEncodingError("typed data payload", fmt.Sprintf("%T", payload), err)
	}
	var obj map[string]interface{}
	if err := decodeUseNumber(raw, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, txErrors.NewValidationError("payload", "must be a JSON object")
	}
	return obj, nil
}

func decodeUseNumber(raw []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return txErrors.NewEncodingError("json decode", string(raw), err)
	}
	return nil
}

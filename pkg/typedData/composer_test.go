package typedData

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sender   = address.MustParseAddress("0x1111111111111111111111111111111111111111")
	contract = address.MustParseAddress("0x2222222222222222222222222222222222222222")
)

func execute(t *testing.T, msg interface{}, funds types.Coins) types.Message {
	t.Helper()
	m, err := types.NewExecute(contract, msg, funds)
	require.NoError(t, err)
	return m
}

func param(msgs ...types.Message) *TypedDataParam {
	return &TypedDataParam{
		Sender:   sender,
		Metadata: types.Metadata{Username: "alice", ChainID: "dango-1", Nonce: 3},
		GasLimit: 1_000_000,
		Messages: msgs,
	}
}

func TestTypedDataFor_SingleExecute(t *testing.T) {
	td, err := TypedDataFor(context.Background(), param(
		execute(t, map[string]interface{}{"swap": map[string]string{"pair": "a/b"}}, types.Coins{"uusdc": "100"}),
	))
	require.NoError(t, err)

	assert.Equal(t, "Message", td.PrimaryType)
	assert.Equal(t, DefaultDomainName, td.Domain.Name)
	assert.Equal(t, sender.String(), td.Domain.VerifyingContract)

	assert.Equal(t, []apitypes.Type{
		{Name: "metadata", Type: "Metadata"},
		{Name: "gas_limit", Type: "uint64"},
		{Name: "messages", Type: "TxMessage[]"},
	}, td.Types["Message"])
	assert.Equal(t, []apitypes.Type{{Name: "execute", Type: "Execute"}}, td.Types["TxMessage"])
	assert.Equal(t, []apitypes.Type{
		{Name: "contract", Type: "string"},
		{Name: "funds", Type: "Funds"},
		{Name: "msg", Type: "Msg"},
	}, td.Types["Execute"])
	assert.Equal(t, []apitypes.Type{{Name: "uusdc", Type: "string"}}, td.Types["Funds"])
	assert.Equal(t, []apitypes.Type{{Name: "swap", Type: "Swap"}}, td.Types["Msg"])
	assert.Equal(t, []apitypes.Type{{Name: "pair", Type: "string"}}, td.Types["Swap"])

	assert.Equal(t, "1000000", td.Message["gas_limit"])
	meta := td.Message["metadata"].(map[string]interface{})
	assert.Equal(t, "3", meta["nonce"])

	items := td.Message["messages"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, map[string]interface{}{
		"execute": map[string]interface{}{
			"contract": contract.String(),
			"funds":    map[string]interface{}{"uusdc": "100"},
			"msg":      map[string]interface{}{"swap": map[string]interface{}{"pair": "a/b"}},
		},
	}, items[0])

	_, err = Hash(td)
	require.NoError(t, err)
}

// chainMessage rebuilds the message the way the account contract does on
// verification: straight from the sign doc, ignoring the composed values.
func chainMessage(t *testing.T, c *types.UnsignedTxContext) apitypes.TypedDataMessage {
	t.Helper()
	raw, err := json.Marshal(c.SignDoc())
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))

	data := doc["data"].(map[string]interface{})
	metadata := map[string]interface{}{
		"username": data["username"],
		"chain_id": data["chain_id"],
		"nonce":    data["nonce"],
	}
	if expiry, ok := data["expiry"]; ok {
		metadata["expiry"] = expiry
	}
	return apitypes.TypedDataMessage{
		"gas_limit": doc["gas_limit"],
		"metadata":  metadata,
		"messages":  doc["messages"],
	}
}

func TestTypedDataFor_MatchesSignDocRebuild(t *testing.T) {
	c := &types.UnsignedTxContext{
		Sender:   sender,
		Username: "alice",
		ChainID:  "dango-1",
		Sequence: 7,
		GasLimit: 250_000,
		Expiry:   &types.Timestamp{Seconds: 1700000000},
		Messages: types.Messages{
			execute(t, map[string]interface{}{"swap": map[string]interface{}{"amount": 10, "route": []string{"a", "b"}}}, types.Coins{"uusdc": "5"}),
			execute(t, map[string]interface{}{"swap": map[string]interface{}{"amount": 20, "route": []string{"c"}}}, types.Coins{"uusdc": "9"}),
		},
	}

	td, err := TypedDataFor(context.Background(), ParamFromContext(c, "dango.exchange", nil))
	require.NoError(t, err)
	want, err := Hash(td)
	require.NoError(t, err)

	rebuilt := *td
	rebuilt.Message = chainMessage(t, c)
	got, err := Hash(&rebuilt)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	c.GasLimit++
	rebuilt.Message = chainMessage(t, c)
	tampered, err := Hash(&rebuilt)
	require.NoError(t, err)
	assert.NotEqual(t, want, tampered)
}

func TestTypedDataFor_SharedTypesAcrossMessages(t *testing.T) {
	td, err := TypedDataFor(context.Background(), param(
		execute(t, map[string]interface{}{"swap": map[string]string{"pair": "a/b"}}, nil),
		execute(t, map[string]interface{}{"swap": map[string]string{"pair": "c/d"}}, nil),
	))
	require.NoError(t, err)

	assert.Len(t, td.Message["messages"], 2)
	assert.Len(t, td.Types["TxMessage"], 1)
	for _, name := range []string{"Execute_1", "Msg_1", "Swap_1", "TxMessage0"} {
		assert.NotContains(t, td.Types, name)
	}
	// empty funds carry nothing to hash
	assert.NotContains(t, td.Types, "Funds")

	_, err = Hash(td)
	require.NoError(t, err)
}

func TestTypedDataFor_RejectsUnhashableBatches(t *testing.T) {
	cases := map[string][]types.Message{
		"mixed kinds": {
			execute(t, map[string]interface{}{"a": "b"}, nil),
			types.MsgTransfer{contract: types.Coins{"uusdc": "1"}},
		},
		"layout mismatch": {
			execute(t, map[string]interface{}{"a": "b"}, nil),
			execute(t, map[string]interface{}{"a": 1}, nil),
		},
		"float": {execute(t, json.RawMessage(`{"price":1.5}`), nil)},
		"heterogeneous array": {execute(t, json.RawMessage(`{"xs":[1,"a"]}`), nil)},
		"null element":        {execute(t, json.RawMessage(`{"xs":["a",null]}`), nil)},
		"object layouts in array": {
			execute(t, json.RawMessage(`{"xs":[{"a":"1"},{"b":"2"}]}`), nil),
		},
		"nil message": {nil},
	}
	for name, msgs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := TypedDataFor(context.Background(), param(msgs...))
			require.Error(t, err)
			assert.True(t, txErrors.IsValidationError(err))
		})
	}
}

func TestTypedDataFor_CollisionSuffix(t *testing.T) {
	td, err := TypedDataFor(context.Background(), param(
		execute(t, map[string]interface{}{"msg": map[string]string{"a": "b"}}, nil),
	))
	require.NoError(t, err)

	assert.Equal(t, []apitypes.Type{{Name: "msg", Type: "Msg_1"}}, td.Types["Msg"])
	assert.Equal(t, []apitypes.Type{{Name: "a", Type: "string"}}, td.Types["Msg_1"])
}

func TestTypedDataFor_Transfer(t *testing.T) {
	other := address.MustParseAddress("0x3333333333333333333333333333333333333333")
	transfer := types.MsgTransfer{
		contract: types.Coins{"uatom": "5"},
		other:    types.Coins{"uusdc": "7"},
	}
	td, err := TypedDataFor(context.Background(), param(transfer))
	require.NoError(t, err)

	assert.Equal(t, []apitypes.Type{{Name: "transfer", Type: "Transfer"}}, td.Types["TxMessage"])
	assert.Equal(t, []apitypes.Type{
		{Name: contract.String(), Type: "TransferEntry"},
		{Name: other.String(), Type: "TransferEntry_1"},
	}, td.Types["Transfer"])

	_, err = Hash(td)
	require.NoError(t, err)
}

func TestTypedDataFor_FieldInference(t *testing.T) {
	raw := json.RawMessage(`{"n":5,"neg":-3,"b":true,"s":"x","arr":[1,2],"rows":[{"k":"1"},{"k":"2"}],"grid":[[1],[2,3]],"gone":null,"empty":{},"op":"delete","action":{"insert":{"k":"v"}}}`)
	td, err := TypedDataFor(context.Background(), param(execute(t, raw, nil)))
	require.NoError(t, err)

	assert.Equal(t, []apitypes.Type{
		{Name: "action", Type: "Action"},
		{Name: "arr", Type: "uint256[]"},
		{Name: "b", Type: "bool"},
		{Name: "grid", Type: "uint256[][]"},
		{Name: "n", Type: "uint256"},
		{Name: "neg", Type: "int256"},
		{Name: "op", Type: "string"},
		{Name: "rows", Type: "Rows[]"},
		{Name: "s", Type: "string"},
	}, td.Types["Msg"])
	assert.Equal(t, []apitypes.Type{{Name: "insert", Type: "Insert"}}, td.Types["Action"])
	assert.Equal(t, []apitypes.Type{{Name: "k", Type: "string"}}, td.Types["Rows"])

	item := td.Message["messages"].([]interface{})[0].(map[string]interface{})
	msg := item["execute"].(map[string]interface{})["msg"].(map[string]interface{})
	assert.Equal(t, "5", msg["n"])
	assert.Equal(t, []interface{}{"1", "2"}, msg["arr"])
	assert.NotContains(t, msg, "gone")
	assert.NotContains(t, msg, "empty")

	_, err = Hash(td)
	require.NoError(t, err)
}

func TestTypedDataFor_ExtraTypes(t *testing.T) {
	p := param(execute(t, map[string]interface{}{"amount": 10}, types.Coins{"uusdc": "1"}))
	p.Hints = []MessageHint{{
		MsgType: "SwapMsg",
		ExtraTypes: apitypes.Types{
			"SwapMsg": {{Name: "amount", Type: "uint128"}},
		},
	}}
	td, err := TypedDataFor(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []apitypes.Type{
		{Name: "contract", Type: "string"},
		{Name: "funds", Type: "Funds"},
		{Name: "msg", Type: "SwapMsg"},
	}, td.Types["Execute"])
	assert.NotContains(t, td.Types, "Msg")

	_, err = Hash(td)
	require.NoError(t, err)
}

func TestTypedDataFor_ExtraTypeCollision(t *testing.T) {
	p := param(execute(t, map[string]interface{}{"a": "b"}, nil))
	p.Hints = []MessageHint{{ExtraTypes: apitypes.Types{"Msg": {{Name: "x", Type: "string"}}}}}

	_, err := TypedDataFor(context.Background(), p)
	require.Error(t, err)
	assert.True(t, txErrors.IsValidationError(err))

	p.Hints = []MessageHint{{ExtraTypes: apitypes.Types{"TxMessage": {{Name: "x", Type: "string"}}}}}
	_, err = TypedDataFor(context.Background(), p)
	require.Error(t, err)
	assert.True(t, txErrors.IsValidationError(err))
}

func TestTypedDataFor_UndefinedMsgType(t *testing.T) {
	p := param(execute(t, map[string]interface{}{"a": "b"}, nil))
	p.Hints = []MessageHint{{MsgType: "Missing"}}

	_, err := TypedDataFor(context.Background(), p)
	require.Error(t, err)
	assert.True(t, txErrors.IsValidationError(err))
}

func TestTypedDataFor_ZeroMessages(t *testing.T) {
	first, err := TypedDataFor(context.Background(), param())
	require.NoError(t, err)
	assert.Empty(t, first.Types["TxMessage"])
	assert.Empty(t, first.Message["messages"])

	second, err := TypedDataFor(context.Background(), param())
	require.NoError(t, err)

	h1, err := Hash(first)
	require.NoError(t, err)
	h2, err := Hash(second)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestTypedDataFor_Expiry(t *testing.T) {
	p := param()
	p.Metadata.Expiry = &types.Timestamp{Seconds: 1700000000}
	td, err := TypedDataFor(context.Background(), p)
	require.NoError(t, err)

	assert.Contains(t, td.Types["Metadata"], apitypes.Type{Name: "expiry", Type: "string"})
	assert.Equal(t, "1700000000", td.Message["metadata"].(map[string]interface{})["expiry"])
}

func TestTypedDataFor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TypedDataFor(ctx, param())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMarshal_RoundTripPreservesHash(t *testing.T) {
	td, err := TypedDataFor(context.Background(), param(
		execute(t, map[string]interface{}{"n": 5, "tags": []string{"a", "b"}}, types.Coins{"uusdc": "1"}),
		execute(t, map[string]interface{}{"n": 6, "tags": []string{}}, types.Coins{"uusdc": "2"}),
	))
	require.NoError(t, err)
	want, err := Hash(td)
	require.NoError(t, err)

	raw, err := Marshal(td)
	require.NoError(t, err)
	decoded, err := Unmarshal(raw)
	require.NoError(t, err)

	got, err := Hash(decoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestArbitraryTypedData(t *testing.T) {
	td, err := ArbitraryTypedData(map[string]interface{}{
		"session_key": "AqvW",
		"expire_at":   "1700000000",
	})
	require.NoError(t, err)

	assert.Equal(t, ArbitraryDomainName, td.Domain.Name)
	assert.Empty(t, td.Domain.VerifyingContract)
	assert.Equal(t, []apitypes.Type{{Name: "name", Type: "string"}}, td.Types["EIP712Domain"])
	assert.Equal(t, []apitypes.Type{
		{Name: "expire_at", Type: "string"},
		{Name: "session_key", Type: "string"},
	}, td.Types["Message"])

	_, err = Hash(td)
	require.NoError(t, err)
}

func TestArbitraryTypedData_RejectsNonObject(t *testing.T) {
	_, err := ArbitraryTypedData([]int{1, 2})
	require.Error(t, err)
	assert.True(t, txErrors.IsEncodingError(err))
}

func TestPascal(t *testing.T) {
	assert.Equal(t, "NewCfg", pascal("new_cfg"))
	assert.Equal(t, "Execute", pascal("execute"))
	assert.Equal(t, "CodeHash", pascal("code_hash"))
}

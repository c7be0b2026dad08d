package types

import (
	"encoding/json"
	"fmt"

	"github.com/left-curve/dango-sdk-go/pkg/address"
)

// QueryWasmSmart is the app query that calls a contract's query entry point.
type QueryWasmSmart struct {
	Contract address.Address `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
}

// WasmSmartRequest wraps a smart query in the app query envelope.
func WasmSmartRequest(contract address.Address, msg interface{}) (json.RawMessage, error) {
	raw, err := marshalPayload(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]QueryWasmSmart{
		"wasm_smart": {Contract: contract, Msg: raw},
	})
}

// WasmSmartResponse unwraps the {"wasm_smart": value} envelope of a response.
func WasmSmartResponse(resp json.RawMessage) (json.RawMessage, error) {
	if !json.Valid(resp) {
		return nil, fmt.Errorf("query response is not valid json")
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(resp, &envelope); err == nil {
		if inner, ok := envelope["wasm_smart"]; ok && len(envelope) == 1 {
			return inner, nil
		}
	}
	// some servers return the bare value
	return resp, nil
}

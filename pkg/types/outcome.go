package types

import (
	"encoding/json"
	"time"
)

// BroadcastOutcome is the node's immediate answer to a synchronous
// broadcast, plus the indexed result once confirmed.
type BroadcastOutcome struct {
	Hash      string    `json:"hash"`
	Code      uint32    `json:"code"`
	Codespace string    `json:"codespace,omitempty"`
	Log       string    `json:"log,omitempty"`
	Result    *TxResult `json:"result,omitempty"`
}

// TxResult is an included transaction as reported by the node or indexer.
type TxResult struct {
	Hash      string          `json:"hash"`
	Height    int64           `json:"height"`
	Index     uint32          `json:"index"`
	Code      uint32          `json:"code"`
	Codespace string          `json:"codespace,omitempty"`
	Log       string          `json:"log,omitempty"`
	GasUsed   int64           `json:"gas_used"`
	GasWanted int64           `json:"gas_wanted"`
	Events    json.RawMessage `json:"events,omitempty"`
}

// SimulateOutcome is the result of a dry run. Error is set when the
// simulated execution failed.
type SimulateOutcome struct {
	GasLimit *uint64 `json:"gas_limit,omitempty"`
	GasUsed  uint64  `json:"gas_used"`
	Error    string  `json:"error,omitempty"`
}

type ChainStatus struct {
	ChainID     string    `json:"chain_id"`
	BlockHeight int64     `json:"block_height"`
	BlockTime   time.Time `json:"block_time"`
	BlockHash   string    `json:"block_hash"`
}

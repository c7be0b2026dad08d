package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/transport"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"go.uber.org/zap"
)

// MockTransport is an in-memory chain. Broadcast txs become visible to
// QueryTxByHash after ConfirmAfter polls. Seen nonces per sender are served
// for the account "seen_nonces" query and updated on successful broadcasts.
type MockTransport struct {
	transport.Sealed

	logger *zap.Logger
	mu     sync.Mutex

	ChainID     string
	BlockHeight int64

	SimulateGasUsed uint64
	SimulateError   string

	BroadcastCode      uint32
	BroadcastCodespace string
	BroadcastLog       string

	// ConfirmAfter is how many polls return "not found" before the tx shows
	// up. A negative value means never.
	ConfirmAfter int
	TxCode       uint32
	TxCodespace  string
	TxLog        string

	StatusErr    error
	AppErr       error
	SimulateErr  error
	BroadcastErr error
	QueryTxErr   error

	// AppHandler answers app queries other than seen_nonces.
	AppHandler func(request json.RawMessage) (json.RawMessage, error)

	seenNonces  map[address.Address][]uint32
	broadcasts  [][]byte
	simulations []*types.UnsignedTx
	polls       map[string]int
	calls       []string
	closed      bool
}

var _ transport.ITransport = (*MockTransport)(nil)

func NewMockTransport(logger *zap.Logger) *MockTransport {
	return &MockTransport{
		logger:          logger,
		ChainID:         "dango-test-1",
		BlockHeight:     1,
		SimulateGasUsed: 100_000,
		seenNonces:      map[address.Address][]uint32{},
		polls:           map[string]int{},
	}
}

func (m *MockTransport) Kind() transport.Kind {
	return transport.KindNode
}

// SetSeenNonces replaces the seen nonces reported for sender.
func (m *MockTransport) SetSeenNonces(sender address.Address, nonces ...uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seenNonces[sender] = append([]uint32(nil), nonces...)
}

func (m *MockTransport) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *MockTransport) QueryStatus(ctx context.Context) (*types.ChainStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("status")
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	return &types.ChainStatus{
		ChainID:     m.ChainID,
		BlockHeight: m.BlockHeight,
		BlockTime:   time.Unix(1_700_000_000, 0).UTC(),
	}, nil
}

type seenNoncesQuery struct {
	WasmSmart *struct {
		Contract address.Address `json:"contract"`
		Msg      struct {
			SeenNonces *struct{} `json:"seen_nonces"`
		} `json:"msg"`
	} `json:"wasm_smart"`
}

func (m *MockTransport) QueryApp(ctx context.Context, request json.RawMessage, height int64) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("app")
	if m.AppErr != nil {
		return nil, m.AppErr
	}

	var q seenNoncesQuery
	if err := json.Unmarshal(request, &q); err == nil && q.WasmSmart != nil && q.WasmSmart.Msg.SeenNonces != nil {
		nonces := m.seenNonces[q.WasmSmart.Contract]
		if nonces == nil {
			nonces = []uint32{}
		}
		return json.Marshal(map[string]interface{}{"wasm_smart": nonces})
	}
	if m.AppHandler != nil {
		return m.AppHandler(request)
	}
	return nil, fmt.Errorf("mock transport: unhandled app query %s", string(request))
}

func (m *MockTransport) Simulate(ctx context.Context, tx *types.UnsignedTx) (*types.SimulateOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("simulate")
	if m.SimulateErr != nil {
		return nil, m.SimulateErr
	}
	m.simulations = append(m.simulations, tx)
	return &types.SimulateOutcome{GasUsed: m.SimulateGasUsed, Error: m.SimulateError}, nil
}

func (m *MockTransport) BroadcastTxSync(ctx context.Context, txBytes []byte) (*types.BroadcastOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("broadcast")
	if m.BroadcastErr != nil {
		return nil, m.BroadcastErr
	}
	if m.closed {
		return nil, txErrors.NewTransportError("mock", "broadcast", fmt.Errorf("closed"))
	}

	m.broadcasts = append(m.broadcasts, append([]byte(nil), txBytes...))
	hash := types.TxHash(txBytes)
	if m.BroadcastCode == 0 {
		m.polls[hash] = 0
		var tx types.Tx
		if err := json.Unmarshal(txBytes, &tx); err == nil {
			m.seenNonces[tx.Sender] = append(m.seenNonces[tx.Sender], tx.Data.Nonce)
		}
	}
	m.logger.Sugar().Debugw("Mock broadcast", "hash", hash, "code", m.BroadcastCode)
	return &types.BroadcastOutcome{
		Hash:      hash,
		Code:      m.BroadcastCode,
		Codespace: m.BroadcastCodespace,
		Log:       m.BroadcastLog,
	}, nil
}

func (m *MockTransport) QueryTxByHash(ctx context.Context, hash string) (*types.TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("tx")
	if m.QueryTxErr != nil {
		return nil, m.QueryTxErr
	}

	seen, ok := m.polls[hash]
	if !ok {
		return nil, nil
	}
	m.polls[hash] = seen + 1
	if m.ConfirmAfter < 0 || seen < m.ConfirmAfter {
		return nil, nil
	}
	return &types.TxResult{
		Hash:      hash,
		Height:    m.BlockHeight + 1,
		Code:      m.TxCode,
		Codespace: m.TxCodespace,
		Log:       m.TxLog,
		GasUsed:   int64(m.SimulateGasUsed),
	}, nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Broadcasts returns copies of every broadcast payload in order.
func (m *MockTransport) Broadcasts() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.broadcasts))
	copy(out, m.broadcasts)
	return out
}

// BroadcastTxs decodes every broadcast payload.
func (m *MockTransport) BroadcastTxs() ([]*types.Tx, error) {
	var txs []*types.Tx
	for _, b := range m.Broadcasts() {
		var tx types.Tx
		if err := json.Unmarshal(b, &tx); err != nil {
			return nil, err
		}
		txs = append(txs, &tx)
	}
	return txs, nil
}

func (m *MockTransport) Simulations() []*types.UnsignedTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.UnsignedTx(nil), m.simulations...)
}

// Polls is how many times hash was queried after its broadcast.
func (m *MockTransport) Polls(hash string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls[hash]
}

// Calls lists the transport methods invoked, in order.
func (m *MockTransport) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockTransport) CallCount(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == call {
			n++
		}
	}
	return n
}

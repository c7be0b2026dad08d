// Package cometTransport talks to a Dango node over CometBFT JSON-RPC.
package cometTransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	rpctypes "github.com/cometbft/cometbft/rpc/jsonrpc/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/left-curve/dango-sdk-go/pkg/encoding"
	"github.com/left-curve/dango-sdk-go/pkg/transport"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	transportName = "comet"

	PathApp      = "/app"
	PathSimulate = "/simulate"

	websocketEndpoint = "/websocket"
)

type Config struct {
	URL            string
	RequestTimeout time.Duration
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64
	// Batch enables JSON-RPC batching when set.
	Batch      *transport.BatchConfig
	Retry      transport.RetryConfig
	HTTPClient *http.Client
}

// nodeClient is the slice of the CometBFT client API the transport uses. Both
// the plain HTTP client and its batches satisfy it.
type nodeClient interface {
	rpcclient.ABCIClient
	rpcclient.SignClient
	rpcclient.StatusClient
}

// rpcCall issues one request. Against a batch it only enqueues, and the
// returned result is filled in when the batch is sent.
type rpcCall func(ctx context.Context, c nodeClient) (interface{}, error)

type CometTransport struct {
	transport.Sealed

	logger  *zap.Logger
	config  *Config
	client  *comethttp.HTTP
	limiter *rate.Limiter
	batcher *transport.Batcher
}

var _ transport.ITransport = (*CometTransport)(nil)

func NewCometTransport(cfg *Config, logger *zap.Logger) (*CometTransport, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg == nil || cfg.URL == "" {
		return nil, txErrors.NewValidationError("url", "node rpc url is required")
	}

	var (
		client *comethttp.HTTP
		err    error
	)
	if cfg.HTTPClient != nil {
		client, err = comethttp.NewWithClient(cfg.URL, websocketEndpoint, cfg.HTTPClient)
	} else {
		client, err = comethttp.New(cfg.URL, websocketEndpoint)
	}
	if err != nil {
		return nil, txErrors.NewValidationError("url", fmt.Sprintf("invalid node rpc url: %v", err))
	}

	t := &CometTransport{
		logger:  logger,
		config:  cfg,
		client:  client,
		limiter: transport.NewLimiter(cfg.RateLimit),
	}
	if cfg.Batch != nil {
		b, err := transport.NewBatcher(transportName, *cfg.Batch, t.sendBatch, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create batcher: %w", err)
		}
		t.batcher = b
	}
	return t, nil
}

func (t *CometTransport) Kind() transport.Kind {
	return transport.KindNode
}

func (t *CometTransport) Close() error {
	if t.batcher != nil {
		return t.batcher.Close()
	}
	return nil
}

func (t *CometTransport) QueryStatus(ctx context.Context) (*types.ChainStatus, error) {
	res, err := call(ctx, t, "status", t.config.Retry, func(ctx context.Context, c nodeClient) (*coretypes.ResultStatus, error) {
		return c.Status(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &types.ChainStatus{
		ChainID:     res.NodeInfo.Network,
		BlockHeight: res.SyncInfo.LatestBlockHeight,
		BlockTime:   res.SyncInfo.LatestBlockTime,
		BlockHash:   res.SyncInfo.LatestBlockHash.String(),
	}, nil
}

func (t *CometTransport) QueryApp(ctx context.Context, request json.RawMessage, height int64) (json.RawMessage, error) {
	res, err := t.abciQuery(ctx, PathApp, request, height)
	if err != nil {
		return nil, err
	}
	if res.Response.Code != 0 {
		return nil, fmt.Errorf("query failed: codespace=%q code=%d log=%q", res.Response.Codespace, res.Response.Code, res.Response.Log)
	}
	return json.RawMessage(res.Response.Value), nil
}

// simulateOutcome is the JSON body of a /simulate answer.
type simulateOutcome struct {
	GasLimit *uint64                    `json:"gas_limit"`
	GasUsed  uint64                     `json:"gas_used"`
	Result   map[string]json.RawMessage `json:"result"`
}

func (t *CometTransport) Simulate(ctx context.Context, tx *types.UnsignedTx) (*types.SimulateOutcome, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal unsigned tx: %w", err)
	}
	res, err := t.abciQuery(ctx, PathSimulate, body, 0)
	if err != nil {
		return nil, err
	}
	if res.Response.Code != 0 {
		return &types.SimulateOutcome{Error: res.Response.Log}, nil
	}

	var outcome simulateOutcome
	if err := json.Unmarshal(res.Response.Value, &outcome); err != nil {
		return nil, txErrors.NewEncodingError("decode simulate outcome", string(res.Response.Value), err)
	}
	return &types.SimulateOutcome{
		GasLimit: outcome.GasLimit,
		GasUsed:  outcome.GasUsed,
		Error:    resultError(outcome.Result),
	}, nil
}

// resultError extracts the message of an {"err": ...} result.
func resultError(result map[string]json.RawMessage) string {
	raw, ok := result["err"]
	if !ok {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	return string(raw)
}

func (t *CometTransport) BroadcastTxSync(ctx context.Context, txBytes []byte) (*types.BroadcastOutcome, error) {
	res, err := call(ctx, t, "broadcast_tx_sync", transport.NoRetry, func(ctx context.Context, c nodeClient) (*coretypes.ResultBroadcastTx, error) {
		return c.BroadcastTxSync(ctx, cmttypes.Tx(txBytes))
	})
	if err != nil {
		return nil, err
	}
	return &types.BroadcastOutcome{
		Hash:      res.Hash.String(),
		Code:      res.Code,
		Codespace: res.Codespace,
		Log:       res.Log,
	}, nil
}

func (t *CometTransport) QueryTxByHash(ctx context.Context, hash string) (*types.TxResult, error) {
	hashBytes, err := encoding.DecodeHexFixed(hash, 32)
	if err != nil {
		return nil, err
	}

	res, err := call(ctx, t, "tx", t.config.Retry, func(ctx context.Context, c nodeClient) (*coretypes.ResultTx, error) {
		return c.Tx(ctx, hashBytes, false)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	events, err := json.Marshal(res.TxResult.Events)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal events: %w", err)
	}
	return &types.TxResult{
		Hash:      res.Hash.String(),
		Height:    res.Height,
		Index:     res.Index,
		Code:      res.TxResult.Code,
		Codespace: res.TxResult.Codespace,
		Log:       res.TxResult.Log,
		GasUsed:   res.TxResult.GasUsed,
		GasWanted: res.TxResult.GasWanted,
		Events:    events,
	}, nil
}

func (t *CometTransport) abciQuery(ctx context.Context, path string, data []byte, height int64) (*coretypes.ResultABCIQuery, error) {
	opts := rpcclient.ABCIQueryOptions{Height: height, Prove: false}
	return call(ctx, t, "abci_query", t.config.Retry, func(ctx context.Context, c nodeClient) (*coretypes.ResultABCIQuery, error) {
		return c.ABCIQueryWithOptions(ctx, path, cmtbytes.HexBytes(data), opts)
	})
}

// call runs fn under retry, either directly or through the batcher.
func call[T any](ctx context.Context, t *CometTransport, method string, retry transport.RetryConfig, fn func(context.Context, nodeClient) (*T, error)) (*T, error) {
	var rc rpcCall = func(ctx context.Context, c nodeClient) (interface{}, error) {
		res, err := fn(ctx, c)
		if err != nil {
			return nil, err
		}
		return res, nil
	}

	var out interface{}
	err := transport.Retry(ctx, retry, func(ctx context.Context) error {
		ctx, cancel := transport.WithTimeout(ctx, t.config.RequestTimeout)
		defer cancel()

		var err error
		if t.batcher != nil {
			out, err = t.batcher.Do(ctx, method, rc)
		} else {
			out, err = t.single(ctx, method, rc)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	res, ok := out.(*T)
	if !ok || res == nil {
		return nil, txErrors.NewTransportError(transportName, method, fmt.Errorf("unexpected result %T", out))
	}
	return res, nil
}

func (t *CometTransport) single(ctx context.Context, method string, rc rpcCall) (interface{}, error) {
	if err := transport.Wait(ctx, t.limiter); err != nil {
		return nil, txErrors.NewTransportError(transportName, method, err)
	}
	res, err := rc(ctx, t.client)
	if err != nil {
		return nil, wrapError(method, err)
	}
	return res, nil
}

// sendBatch sends queued calls as one JSON-RPC batch. The client decodes a
// batch all or nothing, so when any member fails the calls are resent one by
// one to give each caller its own outcome.
func (t *CometTransport) sendBatch(ctx context.Context, reqs []transport.BatchRequest) ([]transport.BatchResponse, error) {
	if err := transport.Wait(ctx, t.limiter); err != nil {
		return nil, err
	}

	batch := t.client.NewBatch()
	calls := make([]rpcCall, len(reqs))
	results := make([]interface{}, len(reqs))
	for i, r := range reqs {
		rc, ok := r.Params.(rpcCall)
		if !ok {
			return nil, fmt.Errorf("unexpected batch params %T for %s", r.Params, r.Method)
		}
		res, err := rc(ctx, batch)
		if err != nil {
			return nil, err
		}
		calls[i] = rc
		results[i] = res
	}

	sent, err := batch.Send(ctx)
	if err != nil || len(sent) != len(reqs) {
		t.logger.Debug("Batch failed, resending calls one by one",
			zap.Int("size", len(reqs)),
			zap.Error(err),
		)
		out := make([]transport.BatchResponse, len(reqs))
		for i, r := range reqs {
			res, err := t.single(ctx, r.Method, calls[i])
			out[i] = transport.BatchResponse{ID: r.ID, Result: res, Err: err}
		}
		return out, nil
	}

	out := make([]transport.BatchResponse, len(reqs))
	for i, r := range reqs {
		out[i] = transport.BatchResponse{ID: r.ID, Result: results[i]}
	}
	return out, nil
}

// wrapError marks JSON-RPC errors from a healthy node as permanent. Anything
// else is a network failure and may be retried.
func wrapError(method string, err error) error {
	wrapped := txErrors.NewTransportError(transportName, method, err)
	var rpcErr *rpctypes.RPCError
	if errors.As(err, &rpcErr) {
		return &transport.Permanent{Err: wrapped}
	}
	return wrapped
}

func isNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// Package graphqlTransport reads from and broadcasts through the Dango
// indexer's GraphQL API.
package graphqlTransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/transport"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/machinebox/graphql"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const transportName = "graphql"

const (
	queryStatus = `query {
  queryStatus {
    chainId
    block { blockHeight hash createdAt }
  }
}`
	queryApp = `query QueryApp($request: JSON!, $height: Int) {
  queryApp(request: $request, height: $height)
}`
	querySimulate = `query Simulate($tx: String!) {
  simulate(tx: $tx)
}`
	mutationBroadcast = `mutation BroadcastTxSync($tx: String!) {
  broadcastTxSync(tx: $tx) { hash code codespace log }
}`
	queryTransactions = `query Transactions($hash: String) {
  transactions(hash: $hash) {
    nodes {
      hash
      blockHeight
      transactionIdx
      hasSucceeded
      gasUsed
      gasWanted
      errorMessage
      nestedEvents
    }
  }
}`
)

type Config struct {
	URL            string
	RequestTimeout time.Duration
	RateLimit      float64
	Retry          transport.RetryConfig
	HTTPClient     *http.Client
}

type GraphqlTransport struct {
	transport.Sealed

	logger     *zap.Logger
	config     *Config
	httpClient *http.Client
	client     *graphql.Client
	limiter    *rate.Limiter
}

var _ transport.ITransport = (*GraphqlTransport)(nil)

func NewGraphqlTransport(cfg *Config, logger *zap.Logger) (*GraphqlTransport, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg == nil || cfg.URL == "" {
		return nil, txErrors.NewValidationError("url", "indexer url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	client := graphql.NewClient(cfg.URL, graphql.WithHTTPClient(httpClient))
	client.Log = func(line string) {
		logger.Debug("GraphQL client", zap.String("line", line))
	}
	return &GraphqlTransport{
		logger:     logger,
		config:     cfg,
		httpClient: httpClient,
		client:     client,
		limiter:    transport.NewLimiter(cfg.RateLimit),
	}, nil
}

func (g *GraphqlTransport) Kind() transport.Kind {
	return transport.KindIndexer
}

func (g *GraphqlTransport) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}

type statusData struct {
	QueryStatus struct {
		ChainID string `json:"chain_id"`
		Block   struct {
			BlockHeight int64  `json:"block_height"`
			Hash        string `json:"hash"`
			CreatedAt   string `json:"created_at"`
		} `json:"block"`
	} `json:"query_status"`
}

func (g *GraphqlTransport) QueryStatus(ctx context.Context) (*types.ChainStatus, error) {
	var data statusData
	if err := g.query(ctx, "queryStatus", queryStatus, nil, true, &data); err != nil {
		return nil, err
	}
	status := &types.ChainStatus{
		ChainID:     data.QueryStatus.ChainID,
		BlockHeight: data.QueryStatus.Block.BlockHeight,
		BlockHash:   data.QueryStatus.Block.Hash,
	}
	if createdAt := data.QueryStatus.Block.CreatedAt; createdAt != "" {
		ts, err := parseBlockTime(createdAt)
		if err != nil {
			return nil, txErrors.NewEncodingError("parse block time", createdAt, err)
		}
		status.BlockTime = ts
	}
	return status, nil
}

// parseBlockTime accepts RFC 3339 with or without a zone; the indexer emits
// naive UTC timestamps.
func parseBlockTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
}

func (g *GraphqlTransport) QueryApp(ctx context.Context, request json.RawMessage, height int64) (json.RawMessage, error) {
	vars := map[string]interface{}{"request": request}
	if height > 0 {
		vars["height"] = height
	}
	var data struct {
		QueryApp json.RawMessage `json:"queryApp"`
	}
	if err := g.query(ctx, "queryApp", queryApp, vars, false, &data); err != nil {
		return nil, err
	}
	return data.QueryApp, nil
}

func (g *GraphqlTransport) Simulate(ctx context.Context, tx *types.UnsignedTx) (*types.SimulateOutcome, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal unsigned tx: %w", err)
	}
	var data struct {
		Simulate struct {
			GasLimit *uint64                    `json:"gas_limit"`
			GasUsed  uint64                     `json:"gas_used"`
			Result   map[string]json.RawMessage `json:"result"`
		} `json:"simulate"`
	}
	if err := g.query(ctx, "simulate", querySimulate, map[string]interface{}{"tx": string(body)}, false, &data); err != nil {
		return nil, err
	}
	out := &types.SimulateOutcome{
		GasLimit: data.Simulate.GasLimit,
		GasUsed:  data.Simulate.GasUsed,
	}
	if raw, ok := data.Simulate.Result["err"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			msg = string(raw)
		}
		out.Error = msg
	}
	return out, nil
}

func (g *GraphqlTransport) BroadcastTxSync(ctx context.Context, txBytes []byte) (*types.BroadcastOutcome, error) {
	var data struct {
		BroadcastTxSync struct {
			Hash      string `json:"hash"`
			Code      uint32 `json:"code"`
			Codespace string `json:"codespace"`
			Log       string `json:"log"`
		} `json:"broadcast_tx_sync"`
	}
	vars := map[string]interface{}{"tx": string(txBytes)}
	err := transport.Retry(ctx, transport.NoRetry, func(ctx context.Context) error {
		return g.do(ctx, "broadcastTxSync", mutationBroadcast, vars, true, &data)
	})
	if err != nil {
		return nil, err
	}
	res := data.BroadcastTxSync
	return &types.BroadcastOutcome{
		Hash:      strings.ToUpper(res.Hash),
		Code:      res.Code,
		Codespace: res.Codespace,
		Log:       res.Log,
	}, nil
}

type transactionNode struct {
	Hash           string  `json:"hash"`
	BlockHeight    int64   `json:"block_height"`
	TransactionIdx uint32  `json:"transaction_idx"`
	HasSucceeded   bool    `json:"has_succeeded"`
	GasUsed        int64   `json:"gas_used"`
	GasWanted      int64   `json:"gas_wanted"`
	ErrorMessage   *string `json:"error_message"`
	NestedEvents   *string `json:"nested_events"`
}

func (g *GraphqlTransport) QueryTxByHash(ctx context.Context, hash string) (*types.TxResult, error) {
	var data struct {
		Transactions struct {
			Nodes []transactionNode `json:"nodes"`
		} `json:"transactions"`
	}
	if err := g.query(ctx, "transactions", queryTransactions, map[string]interface{}{"hash": hash}, true, &data); err != nil {
		return nil, err
	}
	if len(data.Transactions.Nodes) == 0 {
		return nil, nil
	}
	node := data.Transactions.Nodes[0]

	res := &types.TxResult{
		Hash:      strings.ToUpper(node.Hash),
		Height:    node.BlockHeight,
		Index:     node.TransactionIdx,
		GasUsed:   node.GasUsed,
		GasWanted: node.GasWanted,
	}
	if !node.HasSucceeded {
		// the indexer reports success as a flag only
		res.Code = 1
	}
	if node.ErrorMessage != nil {
		res.Log = *node.ErrorMessage
	}
	if node.NestedEvents != nil && json.Valid([]byte(*node.NestedEvents)) {
		res.Events = json.RawMessage(*node.NestedEvents)
	}
	return res, nil
}

// query runs an idempotent operation with retries.
func (g *GraphqlTransport) query(ctx context.Context, op, query string, vars map[string]interface{}, snake bool, out interface{}) error {
	return transport.Retry(ctx, g.config.Retry, func(ctx context.Context) error {
		return g.do(ctx, op, query, vars, snake, out)
	})
}

// do posts one operation. When snake is set, response keys are converted to
// snake_case before decoding into out.
func (g *GraphqlTransport) do(ctx context.Context, op, query string, vars map[string]interface{}, snake bool, out interface{}) error {
	ctx, cancel := transport.WithTimeout(ctx, g.config.RequestTimeout)
	defer cancel()

	if err := transport.Wait(ctx, g.limiter); err != nil {
		return txErrors.NewTransportError(transportName, op, err)
	}

	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	// results such as queryApp are arbitrary JSON scalars, so the data object
	// is taken raw and decoded here
	var raw json.RawMessage
	if err := g.client.Run(ctx, req, &raw); err != nil {
		return wrapError(op, err)
	}

	data := raw
	if snake {
		var err error
		if data, err = transport.SnakeKeys(raw); err != nil {
			return &transport.Permanent{Err: txErrors.NewEncodingError("decode "+op+" response", string(raw), err)}
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &transport.Permanent{Err: txErrors.NewEncodingError("decode "+op+" response", string(data), err)}
	}
	g.logger.Debug("GraphQL operation completed", zap.String("operation", op))
	return nil
}

// wrapError keeps network failures and non-200 answers retryable. Anything
// else means the indexer answered, with operation errors or an undecodable
// body, and is final.
func wrapError(op string, err error) error {
	wrapped := txErrors.NewTransportError(transportName, op, err)
	var urlErr *url.Error
	if errors.As(err, &urlErr) || strings.Contains(err.Error(), "non-200 status code") {
		return wrapped
	}
	return &transport.Permanent{Err: wrapped}
}

// Package client exposes high level account actions on top of the
// transaction pipeline.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/pipeline"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"go.uber.org/zap"
)

// Account identifies the sending account. Signer overrides the pipeline's
// signer for this account when set.
type Account struct {
	Address  address.Address
	Username string
	Signer   signer.ISigner
}

// Client sends transactions for a single account.
type Client struct {
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	account  Account
}

func NewClient(p *pipeline.Pipeline, account Account, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if p == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if account.Address.IsZero() {
		return nil, txErrors.NewValidationError("address", "account address is required")
	}
	if account.Username == "" {
		return nil, txErrors.NewValidationError("username", "account username is required")
	}
	return &Client{
		logger:   logger,
		pipeline: p,
		account:  account,
	}, nil
}

func (c *Client) Account() Account {
	return c.account
}

type txOptions struct {
	gasLimit *uint64
	sequence *uint32
	expiry   *types.Timestamp
}

type TxOption func(*txOptions)

func WithGasLimit(limit uint64) TxOption {
	return func(o *txOptions) { o.gasLimit = &limit }
}

func WithSequence(sequence uint32) TxOption {
	return func(o *txOptions) { o.sequence = &sequence }
}

func WithExpiry(expiry types.Timestamp) TxOption {
	return func(o *txOptions) { o.expiry = &expiry }
}

func (c *Client) request(msgs types.Messages, opts []TxOption) *pipeline.Request {
	var o txOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &pipeline.Request{
		Sender:   c.account.Address,
		Username: c.account.Username,
		Messages: msgs,
		GasLimit: o.gasLimit,
		Sequence: o.sequence,
		Expiry:   o.expiry,
		Signer:   c.account.Signer,
	}
}

// SendTx submits msgs and waits for confirmation.
func (c *Client) SendTx(ctx context.Context, msgs types.Messages, opts ...TxOption) (*pipeline.SubmitResult, error) {
	res, err := c.pipeline.Submit(ctx, c.request(msgs, opts))
	if err != nil {
		return res, err
	}
	c.logger.Sugar().Infow("Transaction confirmed",
		"sender", c.account.Address.String(),
		"hash", res.Hash,
		"sequence", res.Context.Sequence,
		"messages", len(msgs),
	)
	return res, nil
}

// Simulate dry-runs msgs and reports the gas limit SendTx would use.
func (c *Client) Simulate(ctx context.Context, msgs types.Messages, opts ...TxOption) (*pipeline.SimulateResult, error) {
	return c.pipeline.Simulate(ctx, c.request(msgs, opts))
}

func (c *Client) Transfer(ctx context.Context, to address.Address, coins types.Coins, opts ...TxOption) (*pipeline.SubmitResult, error) {
	if coins.IsEmpty() {
		return nil, txErrors.NewValidationError("coins", "at least one non-zero coin is required")
	}
	return c.SendTx(ctx, types.Messages{types.MsgTransfer{to: coins}}, opts...)
}

func (c *Client) Execute(ctx context.Context, contract address.Address, msg interface{}, funds types.Coins, opts ...TxOption) (*pipeline.SubmitResult, error) {
	m, err := types.NewExecute(contract, msg, funds)
	if err != nil {
		return nil, txErrors.NewEncodingError("execute msg", contract.String(), err)
	}
	return c.SendTx(ctx, types.Messages{m}, opts...)
}

// StoreCode uploads wasm byte code. The returned hash is the code hash
// instantiations refer to.
func (c *Client) StoreCode(ctx context.Context, code []byte, opts ...TxOption) (hashing.Hash256, *pipeline.SubmitResult, error) {
	if len(code) == 0 {
		return hashing.Hash256{}, nil, txErrors.NewValidationError("code", "code is empty")
	}
	codeHash := hashing.Sha256Hash(code)
	res, err := c.SendTx(ctx, types.Messages{types.MsgUpload{Code: code}}, opts...)
	return codeHash, res, err
}

// InstantiateParams describes a contract instantiation.
type InstantiateParams struct {
	Msg   interface{}
	Salt  []byte
	Label string
	Funds types.Coins
	Admin AdminOption
}

// Instantiate creates a contract from codeHash. The returned address is the
// predicted address of the new contract.
func (c *Client) Instantiate(ctx context.Context, codeHash hashing.Hash256, params InstantiateParams, opts ...TxOption) (address.Address, *pipeline.SubmitResult, error) {
	m, contract, err := c.instantiateMsg(codeHash, params)
	if err != nil {
		return address.Address{}, nil, err
	}
	res, err := c.SendTx(ctx, types.Messages{m}, opts...)
	return contract, res, err
}

// StoreCodeAndInstantiate uploads code and instantiates it in one tx.
func (c *Client) StoreCodeAndInstantiate(ctx context.Context, code []byte, params InstantiateParams, opts ...TxOption) (address.Address, *pipeline.SubmitResult, error) {
	if len(code) == 0 {
		return address.Address{}, nil, txErrors.NewValidationError("code", "code is empty")
	}
	m, contract, err := c.instantiateMsg(hashing.Sha256Hash(code), params)
	if err != nil {
		return address.Address{}, nil, err
	}
	res, err := c.SendTx(ctx, types.Messages{types.MsgUpload{Code: code}, m}, opts...)
	return contract, res, err
}

func (c *Client) instantiateMsg(codeHash hashing.Hash256, params InstantiateParams) (types.MsgInstantiate, address.Address, error) {
	contract := c.ComputeAddress(codeHash, params.Salt)
	admin := params.Admin.Resolve(c.account.Address, codeHash, params.Salt)
	m, err := types.NewInstantiate(codeHash, params.Msg, params.Salt, params.Label, admin, params.Funds)
	if err != nil {
		return types.MsgInstantiate{}, address.Address{}, txErrors.NewValidationError("instantiate", err.Error())
	}
	return m, contract, nil
}

func (c *Client) Migrate(ctx context.Context, contract address.Address, newCodeHash hashing.Hash256, msg interface{}, opts ...TxOption) (*pipeline.SubmitResult, error) {
	m, err := types.NewMigrate(contract, newCodeHash, msg)
	if err != nil {
		return nil, txErrors.NewEncodingError("migrate msg", contract.String(), err)
	}
	return c.SendTx(ctx, types.Messages{m}, opts...)
}

// UpdateConfig sends a configure message. Either config may be nil to leave
// it unchanged, but not both.
func (c *Client) UpdateConfig(ctx context.Context, newCfg, newAppCfg interface{}, opts ...TxOption) (*pipeline.SubmitResult, error) {
	if newCfg == nil && newAppCfg == nil {
		return nil, txErrors.NewValidationError("config", "nothing to update")
	}
	m, err := types.NewConfigure(newCfg, newAppCfg)
	if err != nil {
		return nil, txErrors.NewEncodingError("configure msg", c.account.Address.String(), err)
	}
	return c.SendTx(ctx, types.Messages{m}, opts...)
}

// ComputeAddress predicts the address of a contract this account would
// instantiate from codeHash and salt.
func (c *Client) ComputeAddress(codeHash hashing.Hash256, salt []byte) address.Address {
	return address.Compute(c.account.Address, codeHash, salt)
}

// QueryWasmSmart runs a contract query and decodes the response into out.
func (c *Client) QueryWasmSmart(ctx context.Context, contract address.Address, msg interface{}, height int64, out interface{}) error {
	return QueryWasmSmart(ctx, c.pipeline, contract, msg, height, out)
}

func (c *Client) QueryNextNonce(ctx context.Context) (uint32, error) {
	return pipeline.QueryNextNonce(ctx, c.pipeline.Transport(), c.account.Address)
}

// QueryWasmSmart is the account independent form of Client.QueryWasmSmart.
func QueryWasmSmart(ctx context.Context, p *pipeline.Pipeline, contract address.Address, msg interface{}, height int64, out interface{}) error {
	req, err := types.WasmSmartRequest(contract, msg)
	if err != nil {
		return txErrors.NewEncodingError("wasm smart query", contract.String(), err)
	}
	raw, err := p.Transport().QueryApp(ctx, req, height)
	if err != nil {
		return err
	}
	inner, err := types.WasmSmartResponse(raw)
	if err != nil {
		return txErrors.NewEncodingError("wasm smart response", contract.String(), err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(inner, out); err != nil {
		return fmt.Errorf("failed to decode wasm smart response from %s: %w", contract, err)
	}
	return nil
}

package eip1193Signer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Provider is the subset of an EIP-1193 wallet the signer needs.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	SignTypedDataV4(ctx context.Context, account common.Address, typedData string) ([]byte, error)
}

// RPCProvider speaks to a wallet over Ethereum JSON-RPC.
type RPCProvider struct {
	client *rpc.Client
}

var _ Provider = (*RPCProvider)(nil)

func NewRPCProvider(client *rpc.Client) *RPCProvider {
	return &RPCProvider{client: client}
}

// DialProvider connects to a wallet endpoint (http, ws or ipc).
func DialProvider(ctx context.Context, url string) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet at %s: %w", url, err)
	}
	return NewRPCProvider(client), nil
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, fmt.Errorf("eth_requestAccounts failed: %w", err)
	}
	return accounts, nil
}

func (p *RPCProvider) SignTypedDataV4(ctx context.Context, account common.Address, typedData string) ([]byte, error) {
	var sig hexutil.Bytes
	if err := p.client.CallContext(ctx, &sig, "eth_signTypedData_v4", account, typedData); err != nil {
		return nil, fmt.Errorf("eth_signTypedData_v4 failed: %w", err)
	}
	return sig, nil
}

func (p *RPCProvider) Close() {
	p.client.Close()
}

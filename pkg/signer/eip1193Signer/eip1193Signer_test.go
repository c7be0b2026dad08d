package eip1193Signer

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/logger"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/typedData"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// walletService is an in-process "eth" namespace standing in for a browser
// wallet.
type walletService struct {
	key      *ecdsa.PrivateKey
	lastData string
}

func (w *walletService) RequestAccounts() []common.Address {
	return []common.Address{crypto.PubkeyToAddress(w.key.PublicKey)}
}

//nolint:revive // method name maps to eth_signTypedData_v4
func (w *walletService) SignTypedData_v4(account common.Address, data string) (hexutil.Bytes, error) {
	w.lastData = data
	var td apitypes.TypedData
	if err := json.Unmarshal([]byte(data), &td); err != nil {
		return nil, err
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash, w.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

func newWallet(t *testing.T) (*walletService, *RPCProvider) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	svc := &walletService{key: key}

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", svc))
	client := rpc.DialInProc(server)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return svc, NewRPCProvider(client)
}

func testContext(t *testing.T) *types.UnsignedTxContext {
	msg, err := types.NewExecute(
		address.MustParseAddress("0x2222222222222222222222222222222222222222"),
		map[string]interface{}{"swap": map[string]interface{}{"amount": 10}},
		types.Coins{"uusdc": "5"},
	)
	require.NoError(t, err)
	return &types.UnsignedTxContext{
		Sender:   address.MustParseAddress("0x1111111111111111111111111111111111111111"),
		Username: "alice",
		Messages: types.Messages{msg},
		ChainID:  "dango-1",
		Sequence: 7,
		GasLimit: 100_000,
	}
}

func TestNewEip1193Signer_LearnsKeyHash(t *testing.T) {
	wallet, provider := newWallet(t)
	s, err := NewEip1193Signer(context.Background(), provider, nil, logger.NewNopLogger())
	require.NoError(t, err)

	want := hashing.Sha256Hash(crypto.CompressPubkey(&wallet.key.PublicKey))
	assert.Equal(t, want, s.GetKeyHash())
	assert.Equal(t, crypto.PubkeyToAddress(wallet.key.PublicKey), s.Account())
}

func TestEip1193Signer_SignTx(t *testing.T) {
	wallet, provider := newWallet(t)
	s, err := NewEip1193Signer(context.Background(), provider, &Config{DomainName: "dango.exchange"}, logger.NewNopLogger())
	require.NoError(t, err)

	c := testContext(t)
	signed, err := s.SignTx(context.Background(), c)
	require.NoError(t, err)

	std, err := signer.StandardCredentialOf(signed.Credential)
	require.NoError(t, err)
	assert.Equal(t, s.GetKeyHash(), std.KeyHash)

	sig, ok := std.Signature.(types.Eip712Signature)
	require.True(t, ok)
	assert.Len(t, sig.Sig, 64)
	assert.Equal(t, wallet.lastData, string(sig.TypedData))

	td, err := typedData.Unmarshal(sig.TypedData)
	require.NoError(t, err)
	assert.Equal(t, "dango.exchange", td.Domain.Name)
	assert.Equal(t, c.Sender.String(), td.Domain.VerifyingContract)

	hash, err := typedData.Hash(td)
	require.NoError(t, err)
	assert.True(t, crypto.VerifySignature(crypto.CompressPubkey(&wallet.key.PublicKey), hash[:], sig.Sig))
}

func TestEip1193Signer_SignArbitrary(t *testing.T) {
	wallet, provider := newWallet(t)
	s, err := NewEip1193Signer(context.Background(), provider, nil, logger.NewNopLogger())
	require.NoError(t, err)

	cred, err := s.SignArbitrary(context.Background(), map[string]string{"hello": "world"})
	require.NoError(t, err)

	std, err := signer.StandardCredentialOf(cred)
	require.NoError(t, err)
	sig := std.Signature.(types.Eip712Signature)

	td, err := typedData.Unmarshal(sig.TypedData)
	require.NoError(t, err)
	assert.Equal(t, typedData.ArbitraryDomainName, td.Domain.Name)

	hash, err := typedData.Hash(td)
	require.NoError(t, err)
	assert.True(t, crypto.VerifySignature(crypto.CompressPubkey(&wallet.key.PublicKey), hash[:], sig.Sig))
}

func TestRecoverKeyHash(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hash := hashing.Sha256Hash([]byte("payload"))

	sig, err := crypto.Sign(hash[:], key)
	require.NoError(t, err)
	want := hashing.Sha256Hash(crypto.CompressPubkey(&key.PublicKey))

	got, err := RecoverKeyHash(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	sig[64] += 27
	got, err = RecoverKeyHash(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = RecoverKeyHash(hash, sig[:64])
	assert.Error(t, err)
}

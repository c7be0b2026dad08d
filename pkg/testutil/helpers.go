package testutil

import (
	"testing"

	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/logger"
	"github.com/left-curve/dango-sdk-go/pkg/signer/rawKeySigner"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/stretchr/testify/require"
)

const TestUsername = "alice"

var (
	TestSender    = address.MustParseAddress("0x1111111111111111111111111111111111111111")
	TestRecipient = address.MustParseAddress("0x2222222222222222222222222222222222222222")
	TestContract  = address.MustParseAddress("0x3333333333333333333333333333333333333333")
)

// Hardhat's first development key; never holds real funds.
const TestPrivateKeyHex = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func CreateTestSigner(t *testing.T) *rawKeySigner.RawKeySigner {
	t.Helper()
	s, err := rawKeySigner.NewSecp256k1SignerFromHex(TestPrivateKeyHex, logger.NewNopLogger())
	require.NoError(t, err)
	return s
}

func CreateTestTransfer(t *testing.T, amount string) types.Message {
	t.Helper()
	coins, err := types.NewCoins(map[string]string{"uusdc": amount})
	require.NoError(t, err)
	return types.MsgTransfer{TestRecipient: coins}
}

func CreateTestContext(t *testing.T, sequence uint32, msgs ...types.Message) *types.UnsignedTxContext {
	t.Helper()
	if len(msgs) == 0 {
		msgs = []types.Message{CreateTestTransfer(t, "100")}
	}
	return &types.UnsignedTxContext{
		Sender:   TestSender,
		Username: TestUsername,
		Messages: msgs,
		ChainID:  "dango-test-1",
		Sequence: sequence,
		GasLimit: 1_000_000,
	}
}

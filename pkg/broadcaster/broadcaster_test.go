package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/logger"
	"github.com/left-curve/dango-sdk-go/pkg/testutil"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastConfig = &Config{ConfirmAttempts: 5, ConfirmInterval: time.Millisecond}

func newTestBroadcaster(t *testing.T) (*testutil.MockTransport, *Broadcaster) {
	t.Helper()
	mock := testutil.NewMockTransport(logger.NewNopLogger())
	b, err := NewBroadcaster(mock, fastConfig, logger.NewNopLogger())
	require.NoError(t, err)
	return mock, b
}

func TestBroadcaster_Confirms(t *testing.T) {
	mock, b := newTestBroadcaster(t)
	mock.ConfirmAfter = 2

	out, err := b.BroadcastBytes(context.Background(), []byte("tx"))
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Equal(t, types.TxHash([]byte("tx")), out.Hash)
	assert.Equal(t, 3, mock.Polls(out.Hash))
}

func TestBroadcaster_RejectedWithoutPolling(t *testing.T) {
	mock, b := newTestBroadcaster(t)
	mock.BroadcastCode = 7
	mock.BroadcastCodespace = "auth"
	mock.BroadcastLog = "invalid nonce"

	_, err := b.BroadcastBytes(context.Background(), []byte("tx"))
	var rejected *txErrors.BroadcastRejected
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, uint32(7), rejected.Code)
	assert.Equal(t, "auth", rejected.Codespace)
	assert.Equal(t, "invalid nonce", rejected.Log)
	assert.Equal(t, 0, mock.CallCount("tx"))
}

func TestBroadcaster_TxFailed(t *testing.T) {
	mock, b := newTestBroadcaster(t)
	mock.TxCode = 1
	mock.TxLog = "out of gas"

	_, err := b.BroadcastBytes(context.Background(), []byte("tx"))
	var failed *txErrors.TxFailed
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "out of gas", failed.Log)
	assert.False(t, failed.Simulated)
}

func TestBroadcaster_ConfirmationTimeout(t *testing.T) {
	mock, b := newTestBroadcaster(t)
	mock.ConfirmAfter = -1

	_, err := b.BroadcastBytes(context.Background(), []byte("tx"))
	var timeout *txErrors.ConfirmationTimeout
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, 5, timeout.Attempts)
	assert.Equal(t, 5, mock.CallCount("tx"))
}

func TestBroadcaster_DefaultAttemptsBoundary(t *testing.T) {
	newDefault := func(t *testing.T, confirmAfter int) (*testutil.MockTransport, *Broadcaster) {
		t.Helper()
		mock := testutil.NewMockTransport(logger.NewNopLogger())
		mock.ConfirmAfter = confirmAfter
		b, err := NewBroadcaster(mock, &Config{ConfirmAttempts: DefaultConfirmAttempts, ConfirmInterval: time.Millisecond}, logger.NewNopLogger())
		require.NoError(t, err)
		return mock, b
	}

	t.Run("never found", func(t *testing.T) {
		mock, b := newDefault(t, -1)
		_, err := b.BroadcastBytes(context.Background(), []byte("tx"))
		var timeout *txErrors.ConfirmationTimeout
		require.True(t, errors.As(err, &timeout))
		assert.Equal(t, DefaultConfirmAttempts, timeout.Attempts)
		assert.Equal(t, 30, mock.Polls(types.TxHash([]byte("tx"))))
	})

	t.Run("found on last attempt", func(t *testing.T) {
		mock, b := newDefault(t, DefaultConfirmAttempts-1)
		out, err := b.BroadcastBytes(context.Background(), []byte("tx"))
		require.NoError(t, err)
		require.NotNil(t, out.Result)
		assert.Equal(t, 30, mock.Polls(out.Hash))
	})

	t.Run("found after last attempt", func(t *testing.T) {
		mock, b := newDefault(t, DefaultConfirmAttempts)
		_, err := b.BroadcastBytes(context.Background(), []byte("tx"))
		var timeout *txErrors.ConfirmationTimeout
		require.True(t, errors.As(err, &timeout))
		assert.Equal(t, 30, mock.Polls(types.TxHash([]byte("tx"))))
	})
}

func TestBroadcaster_PollErrorPropagates(t *testing.T) {
	mock, b := newTestBroadcaster(t)
	mock.QueryTxErr = txErrors.NewTransportError("mock", "tx", fmt.Errorf("connection reset"))

	_, err := b.BroadcastBytes(context.Background(), []byte("tx"))
	assert.True(t, txErrors.IsTransportError(err))
	assert.Equal(t, 1, mock.CallCount("tx"))
}

func TestBroadcaster_ContextCancelStopsPolling(t *testing.T) {
	mock := testutil.NewMockTransport(logger.NewNopLogger())
	mock.ConfirmAfter = -1
	b, err := NewBroadcaster(mock, &Config{ConfirmAttempts: 30, ConfirmInterval: time.Hour}, logger.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = b.BroadcastBytes(ctx, []byte("tx"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, mock.CallCount("tx"))
}

func TestBroadcaster_BroadcastTxSyncSerializes(t *testing.T) {
	mock, b := newTestBroadcaster(t)
	s := testutil.CreateTestSigner(t)
	c := testutil.CreateTestContext(t, 0)

	signed, err := s.SignTx(context.Background(), c)
	require.NoError(t, err)
	tx := &types.Tx{Sender: c.Sender, GasLimit: c.GasLimit, Msgs: c.Messages, Data: c.Metadata(), Credential: signed.Credential}

	out, err := b.BroadcastTxSync(context.Background(), tx)
	require.NoError(t, err)

	wire, err := tx.WireBytes()
	require.NoError(t, err)
	assert.Equal(t, types.TxHash(wire), out.Hash)
	assert.Equal(t, [][]byte{wire}, mock.Broadcasts())

	_, err = b.BroadcastTxSync(context.Background(), nil)
	assert.True(t, txErrors.IsValidationError(err))
}

func TestNewBroadcaster_Validation(t *testing.T) {
	mock := testutil.NewMockTransport(logger.NewNopLogger())
	_, err := NewBroadcaster(mock, nil, nil)
	assert.Error(t, err)
	_, err = NewBroadcaster(nil, nil, logger.NewNopLogger())
	assert.Error(t, err)
	_, err = NewBroadcaster(mock, &Config{ConfirmAttempts: 0}, logger.NewNopLogger())
	assert.Error(t, err)

	b, err := NewBroadcaster(mock, nil, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfirmAttempts, b.config.ConfirmAttempts)
	assert.Equal(t, DefaultConfirmInterval, b.config.ConfirmInterval)
}

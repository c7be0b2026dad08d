// Package broadcaster submits signed transactions and polls for their
// inclusion.
package broadcaster

import (
	"context"
	"fmt"
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/transport"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"go.uber.org/zap"
)

const (
	DefaultConfirmAttempts = 30
	DefaultConfirmInterval = 500 * time.Millisecond
)

type Config struct {
	ConfirmAttempts int
	ConfirmInterval time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		ConfirmAttempts: DefaultConfirmAttempts,
		ConfirmInterval: DefaultConfirmInterval,
	}
}

type IBroadcaster interface {
	BroadcastTxSync(ctx context.Context, tx *types.Tx) (*types.BroadcastOutcome, error)
	Submit(ctx context.Context, wire []byte) (*types.BroadcastOutcome, error)
	WaitForTx(ctx context.Context, hash string) (*types.TxResult, error)
}

type Broadcaster struct {
	logger    *zap.Logger
	transport transport.ITransport
	config    *Config
}

var _ IBroadcaster = (*Broadcaster)(nil)

func NewBroadcaster(t transport.ITransport, cfg *Config, logger *zap.Logger) (*Broadcaster, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if t == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ConfirmAttempts < 1 {
		return nil, fmt.Errorf("confirm attempts must be at least 1, got %d", cfg.ConfirmAttempts)
	}
	if cfg.ConfirmInterval < 0 {
		return nil, fmt.Errorf("confirm interval cannot be negative")
	}
	return &Broadcaster{
		logger:    logger,
		transport: t,
		config:    cfg,
	}, nil
}

// BroadcastTxSync submits tx once and waits for it to be included. An
// immediate rejection is returned without polling.
func (b *Broadcaster) BroadcastTxSync(ctx context.Context, tx *types.Tx) (*types.BroadcastOutcome, error) {
	if tx == nil {
		return nil, txErrors.NewValidationError("tx", "tx is required")
	}
	wire, err := tx.WireBytes()
	if err != nil {
		return nil, err
	}
	return b.BroadcastBytes(ctx, wire)
}

// BroadcastBytes is BroadcastTxSync for already serialized txs.
func (b *Broadcaster) BroadcastBytes(ctx context.Context, wire []byte) (*types.BroadcastOutcome, error) {
	outcome, err := b.Submit(ctx, wire)
	if err != nil {
		return nil, err
	}
	result, err := b.WaitForTx(ctx, outcome.Hash)
	if err != nil {
		return nil, err
	}
	outcome.Result = result
	return outcome, nil
}

// Submit broadcasts wire once. A non-zero immediate code is returned as
// BroadcastRejected.
func (b *Broadcaster) Submit(ctx context.Context, wire []byte) (*types.BroadcastOutcome, error) {
	outcome, err := b.transport.BroadcastTxSync(ctx, wire)
	if err != nil {
		return nil, err
	}
	if outcome.Hash == "" {
		outcome.Hash = types.TxHash(wire)
	}
	if outcome.Code != 0 {
		b.logger.Sugar().Warnw("Broadcast rejected",
			"hash", outcome.Hash,
			"codespace", outcome.Codespace,
			"code", outcome.Code,
			"log", outcome.Log,
		)
		return nil, &txErrors.BroadcastRejected{
			Hash:      outcome.Hash,
			Codespace: outcome.Codespace,
			Code:      outcome.Code,
			Log:       outcome.Log,
		}
	}
	b.logger.Sugar().Infow("Broadcast accepted", "hash", outcome.Hash)
	return outcome, nil
}

// WaitForTx polls for hash until it is found or the attempts run out.
func (b *Broadcaster) WaitForTx(ctx context.Context, hash string) (*types.TxResult, error) {
	for attempt := 1; attempt <= b.config.ConfirmAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := b.transport.QueryTxByHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		if result != nil {
			if result.Code != 0 {
				b.logger.Sugar().Warnw("Transaction failed",
					"hash", hash,
					"height", result.Height,
					"code", result.Code,
					"log", result.Log,
				)
				return nil, &txErrors.TxFailed{
					Hash:      hash,
					Height:    result.Height,
					Codespace: result.Codespace,
					Code:      result.Code,
					Log:       result.Log,
				}
			}
			b.logger.Info("Transaction confirmed",
				zap.String("hash", hash),
				zap.Int64("height", result.Height),
				zap.Int("attempts", attempt),
			)
			return result, nil
		}

		if attempt < b.config.ConfirmAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.config.ConfirmInterval):
			}
		}
	}
	return nil, &txErrors.ConfirmationTimeout{Hash: hash, Attempts: b.config.ConfirmAttempts}
}

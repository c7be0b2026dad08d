// Package transport defines the chain access surface used by the pipeline
// and the broadcaster. Implementations live in sub-packages; the interface is
// sealed so only types embedding Sealed satisfy it.
package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/types"
)

type Kind string

const (
	KindNode    Kind = "node"
	KindIndexer Kind = "indexer"
)

// Sealed is embedded by every ITransport implementation.
type Sealed struct{}

func (Sealed) sealed() {}

type ITransport interface {
	Kind() Kind

	QueryStatus(ctx context.Context) (*types.ChainStatus, error)

	// QueryApp runs an app query at height, or at the latest height when
	// height is 0.
	QueryApp(ctx context.Context, request json.RawMessage, height int64) (json.RawMessage, error)

	Simulate(ctx context.Context, tx *types.UnsignedTx) (*types.SimulateOutcome, error)

	BroadcastTxSync(ctx context.Context, txBytes []byte) (*types.BroadcastOutcome, error)

	// QueryTxByHash returns nil and no error when the tx is not known yet.
	QueryTxByHash(ctx context.Context, hash string) (*types.TxResult, error)

	Close() error

	sealed()
}

// WithTimeout derives a per-call deadline. A zero timeout leaves ctx as is.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

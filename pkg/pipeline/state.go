package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/address"
	"go.uber.org/zap"
)

type State string

const (
	StateBuilding    State = "building"
	StateGasResolved State = "gas_resolved"
	StateSigned      State = "signed"
	StateAssembled   State = "assembled"
	StateSubmitted   State = "submitted"
	StateConfirmed   State = "confirmed"
	StateFailed      State = "failed"
	StateTimedOut    State = "timed_out"
)

func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed || s == StateTimedOut
}

// Transition is reported each time a submission changes state. Err is set
// on transitions into StateFailed and StateTimedOut.
type Transition struct {
	From     State
	To       State
	Sender   address.Address
	Sequence uint32
	Hash     string
	Err      error
	At       time.Time
}

type IObserver interface {
	OnTransition(t Transition)
}

type ObserverFunc func(t Transition)

func (f ObserverFunc) OnTransition(t Transition) { f(t) }

// ChannelObserver forwards transitions to a buffered channel. When the
// channel is full the transition is dropped so the pipeline never blocks.
type ChannelObserver struct {
	Channel chan Transition
	logger  *zap.Logger
}

func NewChannelObserver(capacity int, logger *zap.Logger) (*ChannelObserver, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &ChannelObserver{
		Channel: make(chan Transition, capacity),
		logger:  logger,
	}, nil
}

func (o *ChannelObserver) OnTransition(t Transition) {
	select {
	case o.Channel <- t:
	default:
		o.logger.Sugar().Warnf("Transition channel is full, dropping %s -> %s for %s", t.From, t.To, t.Sender)
	}
}

// ListenToChannel calls handleFunc for every transition until ctx is done.
func (o *ChannelObserver) ListenToChannel(ctx context.Context, handleFunc func(Transition)) {
	for {
		select {
		case t := <-o.Channel:
			handleFunc(t)
		case <-ctx.Done():
			o.logger.Sugar().Debug("Transition listener exiting due to context done")
			return
		}
	}
}

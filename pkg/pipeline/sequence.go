package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/transport"
	"github.com/left-curve/dango-sdk-go/pkg/types"
)

// SequenceTracker serializes sequence acquisition per sender and remembers
// the next sequence after each accepted broadcast.
type SequenceTracker struct {
	mu      sync.Mutex
	senders map[address.Address]*senderSequence
}

// senderSequence.next is only touched by the holder of sem.
type senderSequence struct {
	sem  chan struct{}
	next *uint32
}

func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{senders: map[address.Address]*senderSequence{}}
}

// SequenceLease is held while a sender's sequence is in use. Exactly one
// lease per sender exists at a time.
type SequenceLease struct {
	state    *senderSequence
	released bool
}

// Acquire blocks until no other lease for sender is held or ctx is done.
func (t *SequenceTracker) Acquire(ctx context.Context, sender address.Address) (*SequenceLease, error) {
	t.mu.Lock()
	state, ok := t.senders[sender]
	if !ok {
		state = &senderSequence{sem: make(chan struct{}, 1)}
		t.senders[sender] = state
	}
	t.mu.Unlock()

	select {
	case state.sem <- struct{}{}:
		return &SequenceLease{state: state}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cached is the locally known next sequence, if any.
func (l *SequenceLease) Cached() (uint32, bool) {
	if l.state.next == nil {
		return 0, false
	}
	return *l.state.next, true
}

// Advance records that used was accepted by the node.
func (l *SequenceLease) Advance(used uint32) {
	next := used + 1
	if l.state.next == nil || next > *l.state.next {
		l.state.next = &next
	}
}

func (l *SequenceLease) Release() {
	if l.released {
		return
	}
	l.released = true
	<-l.state.sem
}

// Forget drops the cached sequence of sender, e.g. after a nonce rejection.
func (t *SequenceTracker) Forget(sender address.Address) {
	t.mu.Lock()
	state, ok := t.senders[sender]
	t.mu.Unlock()
	if !ok {
		return
	}
	state.sem <- struct{}{}
	state.next = nil
	<-state.sem
}

// QueryNextNonce asks the sender account for its seen nonces and returns the
// newest plus one, or 0 for an account that never sent a tx.
func QueryNextNonce(ctx context.Context, t transport.ITransport, sender address.Address) (uint32, error) {
	req, err := types.WasmSmartRequest(sender, map[string]interface{}{"seen_nonces": map[string]interface{}{}})
	if err != nil {
		return 0, err
	}
	raw, err := t.QueryApp(ctx, req, 0)
	if err != nil {
		return 0, err
	}
	inner, err := types.WasmSmartResponse(raw)
	if err != nil {
		return 0, err
	}
	var nonces []uint32
	if err := json.Unmarshal(inner, &nonces); err != nil {
		return 0, fmt.Errorf("failed to decode seen nonces: %w", err)
	}
	if len(nonces) == 0 {
		return 0, nil
	}
	newest := nonces[0]
	for _, n := range nonces[1:] {
		if n > newest {
			newest = n
		}
	}
	return newest + 1, nil
}

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"go.uber.org/zap"
)

var ErrBatcherClosed = fmt.Errorf("batcher is closed")

type BatchConfig struct {
	// Window is how long the first queued call waits for company.
	Window time.Duration
	// MaxSize flushes the queue as soon as it holds this many calls.
	MaxSize int
	// NewID generates correlation ids. Defaults to random UUIDs.
	NewID func() string
}

// BatchRequest is one queued call. Params is opaque to the batcher and is
// interpreted by the flush function.
type BatchRequest struct {
	ID     string
	Method string
	Params interface{}
}

type BatchResponse struct {
	ID     string
	Result interface{}
	Err    error
}

// BatchFlushFunc sends one batch. Responses may arrive in any order and are
// matched by ID.
type BatchFlushFunc func(ctx context.Context, reqs []BatchRequest) ([]BatchResponse, error)

type pendingCall struct {
	req    BatchRequest
	result chan BatchResponse
}

// Batcher coalesces calls into batches. It owns its queue and its flush
// timer; Close stops the timer and fails every queued call.
type Batcher struct {
	name   string
	logger *zap.Logger
	config BatchConfig
	flush  BatchFlushFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []*pendingCall
	timer   *time.Timer
	gen     uint64
	closed  bool
	wg      sync.WaitGroup
}

func NewBatcher(name string, cfg BatchConfig, flush BatchFlushFunc, logger *zap.Logger) (*Batcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if flush == nil {
		return nil, fmt.Errorf("flush function cannot be nil")
	}
	if cfg.MaxSize < 1 {
		return nil, fmt.Errorf("batch max size must be at least 1, got %d", cfg.MaxSize)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("batch window must be positive, got %s", cfg.Window)
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Batcher{
		name:   name,
		logger: logger,
		config: cfg,
		flush:  flush,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Do queues one call and waits for its response.
func (b *Batcher) Do(ctx context.Context, method string, params interface{}) (interface{}, error) {
	call := &pendingCall{
		req:    BatchRequest{ID: b.config.NewID(), Method: method, Params: params},
		result: make(chan BatchResponse, 1),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, txErrors.NewTransportError(b.name, method, ErrBatcherClosed)
	}
	b.pending = append(b.pending, call)
	if len(b.pending) >= b.config.MaxSize {
		batch := b.takeLocked()
		b.mu.Unlock()
		b.send(batch)
	} else {
		if b.timer == nil {
			b.gen++
			gen := b.gen
			b.timer = time.AfterFunc(b.config.Window, func() { b.onTimer(gen) })
		}
		b.mu.Unlock()
	}

	select {
	case <-ctx.Done():
		return nil, txErrors.NewTransportError(b.name, method, ctx.Err())
	case res := <-call.result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Result, nil
	}
}

// Pending is the number of queued calls not yet sent.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Batcher) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	batch := b.takeLocked()
	b.mu.Unlock()

	b.cancel()
	for _, call := range batch {
		call.result <- BatchResponse{ID: call.req.ID, Err: txErrors.NewTransportError(b.name, call.req.Method, ErrBatcherClosed)}
	}
	b.wg.Wait()
	return nil
}

func (b *Batcher) onTimer(gen uint64) {
	b.mu.Lock()
	// a size flush or Close already took this timer's queue
	if b.closed || b.timer == nil || gen != b.gen {
		b.mu.Unlock()
		return
	}
	batch := b.takeLocked()
	b.mu.Unlock()
	if len(batch) > 0 {
		b.send(batch)
	}
}

// takeLocked empties the queue and stops the timer. Callers hold b.mu.
func (b *Batcher) takeLocked() []*pendingCall {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.pending
	b.pending = nil
	return batch
}

func (b *Batcher) timerActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timer != nil
}

func (b *Batcher) send(batch []*pendingCall) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		reqs := make([]BatchRequest, len(batch))
		for i, call := range batch {
			reqs[i] = call.req
		}
		b.logger.Debug("Flushing batch",
			zap.String("transport", b.name),
			zap.Int("size", len(reqs)),
		)

		responses, err := b.flush(b.ctx, reqs)
		if err != nil {
			for _, call := range batch {
				call.result <- BatchResponse{ID: call.req.ID, Err: txErrors.NewTransportError(b.name, call.req.Method, err)}
			}
			return
		}

		byID := make(map[string]BatchResponse, len(responses))
		for _, res := range responses {
			byID[res.ID] = res
		}
		for _, call := range batch {
			res, ok := byID[call.req.ID]
			if !ok {
				res = BatchResponse{
					ID:  call.req.ID,
					Err: txErrors.NewTransportError(b.name, call.req.Method, fmt.Errorf("no response for id %s", call.req.ID)),
				}
			}
			call.result <- res
		}
	}()
}

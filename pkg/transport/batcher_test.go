package transport

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/logger"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFlush struct {
	mu      sync.Mutex
	batches [][]BatchRequest
}

func (r *recordingFlush) flush(_ context.Context, reqs []BatchRequest) ([]BatchResponse, error) {
	r.mu.Lock()
	r.batches = append(r.batches, reqs)
	r.mu.Unlock()

	// answer in reverse order to exercise id correlation
	out := make([]BatchResponse, 0, len(reqs))
	for i := len(reqs) - 1; i >= 0; i-- {
		out = append(out, BatchResponse{ID: reqs[i].ID, Result: reqs[i].Method})
	}
	return out, nil
}

func (r *recordingFlush) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sizes []int
	for _, b := range r.batches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

func TestBatcher_FlushesAtMaxSize(t *testing.T) {
	rec := &recordingFlush{}
	b, err := NewBatcher("test", BatchConfig{Window: time.Hour, MaxSize: 3}, rec.flush, logger.NewNopLogger())
	require.NoError(t, err)
	defer b.Close()

	var wg sync.WaitGroup
	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := b.Do(context.Background(), fmt.Sprintf("m%d", i), nil)
			if assert.NoError(t, err) {
				results[i], _ = res.(string)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []int{3}, rec.sizes())
	assert.Equal(t, []string{"m0", "m1", "m2"}, results)
	assert.False(t, b.timerActive())
}

func TestBatcher_FlushesOnTimer(t *testing.T) {
	rec := &recordingFlush{}
	b, err := NewBatcher("test", BatchConfig{Window: 20 * time.Millisecond, MaxSize: 100}, rec.flush, logger.NewNopLogger())
	require.NoError(t, err)
	defer b.Close()

	start := time.Now()
	res, err := b.Do(context.Background(), "status", nil)
	require.NoError(t, err)
	assert.Equal(t, "status", res)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, []int{1}, rec.sizes())
}

func TestBatcher_CloseCancelsTimerAndFailsPending(t *testing.T) {
	rec := &recordingFlush{}
	b, err := NewBatcher("test", BatchConfig{Window: time.Hour, MaxSize: 100}, rec.flush, logger.NewNopLogger())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Do(context.Background(), "status", nil)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return b.Pending() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, b.timerActive())

	require.NoError(t, b.Close())
	err = <-errCh
	assert.True(t, txErrors.IsTransportError(err))
	assert.ErrorIs(t, err, ErrBatcherClosed)
	assert.False(t, b.timerActive())
	assert.Empty(t, rec.sizes())

	_, err = b.Do(context.Background(), "status", nil)
	assert.ErrorIs(t, err, ErrBatcherClosed)
	assert.NoError(t, b.Close())
}

func TestBatcher_MissingResponse(t *testing.T) {
	flush := func(_ context.Context, reqs []BatchRequest) ([]BatchResponse, error) {
		return nil, nil
	}
	b, err := NewBatcher("test", BatchConfig{Window: time.Hour, MaxSize: 1}, flush, logger.NewNopLogger())
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Do(context.Background(), "status", nil)
	assert.True(t, txErrors.IsTransportError(err))
}

func TestBatcher_FlushErrorReachesEveryCaller(t *testing.T) {
	flush := func(_ context.Context, reqs []BatchRequest) ([]BatchResponse, error) {
		return nil, fmt.Errorf("connection refused")
	}
	b, err := NewBatcher("test", BatchConfig{Window: time.Hour, MaxSize: 2}, flush, logger.NewNopLogger())
	require.NoError(t, err)
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Do(context.Background(), "status", nil)
			assert.True(t, txErrors.IsTransportError(err))
		}()
	}
	wg.Wait()
}

func TestBatcher_CallerContext(t *testing.T) {
	rec := &recordingFlush{}
	b, err := NewBatcher("test", BatchConfig{Window: time.Hour, MaxSize: 100}, rec.flush, logger.NewNopLogger())
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = b.Do(ctx, "status", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewBatcher_Validation(t *testing.T) {
	rec := &recordingFlush{}
	_, err := NewBatcher("test", BatchConfig{Window: time.Second, MaxSize: 0}, rec.flush, logger.NewNopLogger())
	assert.Error(t, err)
	_, err = NewBatcher("test", BatchConfig{Window: 0, MaxSize: 1}, rec.flush, logger.NewNopLogger())
	assert.Error(t, err)
	_, err = NewBatcher("test", BatchConfig{Window: time.Second, MaxSize: 1}, nil, logger.NewNopLogger())
	assert.Error(t, err)
	_, err = NewBatcher("test", BatchConfig{Window: time.Second, MaxSize: 1}, rec.flush, nil)
	assert.Error(t, err)
}

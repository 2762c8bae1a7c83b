package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_ClampsWorkers(t *testing.T) {
	for _, n := range []int{0, -3} {
		assert.Equal(t, 1, NewPool[int](context.Background(), n).workers)
	}
	assert.Equal(t, 4, NewPool[int](context.Background(), 4).workers)
}

func TestPool_ResultsInSubmissionOrder(t *testing.T) {
	pool := NewPool[int](context.Background(), 3)

	for i := 0; i < 12; i++ {
		i := i
		// later tasks finish first
		delay := time.Duration(12-i) * time.Millisecond
		require.True(t, pool.Go(func(ctx context.Context) int {
			time.Sleep(delay)
			return i
		}))
	}

	results := pool.Wait()
	require.Len(t, results, 12)
	for i, got := range results {
		assert.Equal(t, i, got)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const workers = 4
	pool := NewPool[struct{}](context.Background(), workers)

	var current, peak atomic.Int32
	for i := 0; i < 40; i++ {
		pool.Go(func(ctx context.Context) struct{} {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			return struct{}{}
		})
	}

	assert.Len(t, pool.Wait(), 40)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Positive(t, peak.Load())
}

func TestPool_ErrorsAreResults(t *testing.T) {
	pool := NewPool[error](context.Background(), 2)
	boom := errors.New("boom")

	pool.Go(func(ctx context.Context) error { return boom })
	pool.Go(func(ctx context.Context) error { return nil })

	results := pool.Wait()
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0], boom)
	assert.NoError(t, results[1])
}

func TestPool_GoAfterStop(t *testing.T) {
	pool := NewPool[int](context.Background(), 2)
	pool.Stop()

	assert.False(t, pool.Go(func(ctx context.Context) int { return 1 }))
	assert.Empty(t, pool.Wait())
}

func TestPool_StopCancelsRunningTasks(t *testing.T) {
	pool := NewPool[error](context.Background(), 1)
	started := make(chan struct{})

	pool.Go(func(ctx context.Context) error {
		close(started)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})

	<-started
	pool.Stop()

	done := make(chan []error, 1)
	go func() { done <- pool.Wait() }()

	select {
	case results := <-done:
		require.Len(t, results, 1)
		assert.ErrorIs(t, results[0], context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Stop")
	}
}

func TestPool_ParentCancellationSkipsQueuedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool[int](ctx, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	pool.Go(func(ctx context.Context) int {
		close(started)
		<-release
		return 1
	})
	<-started

	queued := make(chan bool, 1)
	go func() {
		queued <- pool.Go(func(ctx context.Context) int { return 2 })
	}()

	cancel()
	close(release)
	<-queued

	results := pool.Wait()
	assert.Equal(t, []int{1}, results)
}

// Package worker runs per-document processing on a bounded set of goroutines.
package worker

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work. It should return promptly once ctx is done.
type Task[R any] func(ctx context.Context) R

type slot[R any] struct {
	value R
	ran   bool
}

// Pool runs tasks on at most a fixed number of goroutines and hands back
// their results in submission order
type Pool[R any] struct {
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group

	mu    sync.Mutex
	slots []slot[R]
}

// NewPool creates a pool bounded to workers goroutines (at least one)
func NewPool[R any](ctx context.Context, workers int) *Pool[R] {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	group := &errgroup.Group{}
	group.SetLimit(workers)
	return &Pool[R]{
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
		group:   group,
	}
}

// Go schedules task, blocking while every worker is busy.
// It returns false once the pool has been stopped.
func (p *Pool[R]) Go(task Task[R]) bool {
	if p.ctx.Err() != nil {
		return false
	}

	p.mu.Lock()
	idx := len(p.slots)
	p.slots = append(p.slots, slot[R]{})
	p.mu.Unlock()

	p.group.Go(func() error {
		// stopped while queued
		if p.ctx.Err() != nil {
			return nil
		}
		value := task(p.ctx)

		p.mu.Lock()
		p.slots[idx] = slot[R]{value: value, ran: true}
		p.mu.Unlock()
		return nil
	})
	return true
}

// Wait blocks until every scheduled task has finished and returns the
// results of the tasks that ran, in submission order
func (p *Pool[R]) Wait() []R {
	_ = p.group.Wait()
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	results := make([]R, 0, len(p.slots))
	for _, s := range p.slots {
		if s.ran {
			results = append(results, s.value)
		}
	}
	return results
}

// Stop cancels the context handed to running tasks; queued tasks are skipped
func (p *Pool[R]) Stop() {
	p.cancel()
}

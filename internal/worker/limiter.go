package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter paces calls to external collaborators. Every key (an extraction
// task such as "entities" or "person_relations") gets its own token bucket,
// so a slow task never starves the others. A nil Limiter never waits.
type Limiter struct {
	limit   rate.Limit
	burst   int
	buckets sync.Map // key -> *rate.Limiter
}

// NewLimiter allows requestsPerSecond per key with the given burst.
// A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Limiter{limit: limit, burst: max(burst, 1)}
}

// Wait blocks until key may make another call or ctx is done
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	return l.bucket(key).Wait(ctx)
}

// Allow takes a token for key if one is available right now
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	return l.bucket(key).Allow()
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	if b, ok := l.buckets.Load(key); ok {
		return b.(*rate.Limiter)
	}
	b, _ := l.buckets.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	return b.(*rate.Limiter)
}

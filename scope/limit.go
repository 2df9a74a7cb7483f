// Package scope provides structured concurrency primitives for Go.
package scope

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds concurrent tasks within a scope.
type Limiter interface {
	Acquire(ctx context.Context) error
	Release()
}

// semLimiter bounds concurrency with a weighted semaphore sized to 1 per
// slot, giving context-aware Acquire and exactly-once Release semantics
// without a hand-rolled buffered-channel semaphore.
type semLimiter struct {
	sem *semaphore.Weighted
}

func newSemaphoreLimiter(n int) Limiter {
	if n <= 0 {
		return nil
	}
	return &semLimiter{sem: semaphore.NewWeighted(int64(n))}
}

func (l *semLimiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *semLimiter) Release() {
	l.sem.Release(1)
}

func (l *semLimiter) TryAcquire() bool {
	return l.sem.TryAcquire(1)
}

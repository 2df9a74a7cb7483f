package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// leakyBucket models operations-in-flight admission: up to max permits
// are outstanding at once, and one "leaks" back every refill interval
// regardless of whether the caller released it, via Update. Built on
// semaphore.Weighted, the same primitive scope.Limiter uses for
// concurrency caps.
type leakyBucket struct {
	max    int64
	refill time.Duration
	sem    *semaphore.Weighted
	leased atomic.Int64
}

// NewLeakyBucket admits up to max concurrent operations, leaking one
// slot back every refill interval.
func NewLeakyBucket(max int, refill time.Duration) Limiter {
	return &leakyBucket{max: int64(max), refill: refill, sem: semaphore.NewWeighted(int64(max))}
}

func (l *leakyBucket) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.leased.Add(1)
	return nil
}

func (l *leakyBucket) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.leased.Add(1)
	return true
}

// Update leaks one outstanding permit back to the bucket, if any are
// held.
func (l *leakyBucket) Update() {
	for {
		cur := l.leased.Load()
		if cur <= 0 {
			return
		}
		if l.leased.CompareAndSwap(cur, cur-1) {
			l.sem.Release(1)
			return
		}
	}
}

func (l *leakyBucket) NextUpdate() time.Duration { return l.refill }

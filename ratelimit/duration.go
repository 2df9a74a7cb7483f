package ratelimit

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// DurationLimiter extends any admission Limiter with in-flight
// accounting: StartOperation acquires both an admission slot and an
// in-flight permit, returning a closure that releases the in-flight
// permit once the operation ends. This is how a caller enforces "at
// most N operations running at once" on top of "at most N admitted per
// window," which a plain Limiter cannot express on its own.
type DurationLimiter struct {
	admission Limiter
	inflight  *semaphore.Weighted
}

func newDurationLimiter(admission Limiter, maxInFlight int) *DurationLimiter {
	return &DurationLimiter{admission: admission, inflight: semaphore.NewWeighted(int64(maxInFlight))}
}

// NewFixedWindowDuration pairs a FixedWindow admission limiter with
// in-flight accounting.
func NewFixedWindowDuration(max int, window time.Duration, maxInFlight int) *DurationLimiter {
	return newDurationLimiter(NewFixedWindow(max, window), maxInFlight)
}

// NewSlidingWindowDuration pairs a SlidingWindow admission limiter with
// in-flight accounting.
func NewSlidingWindowDuration(max int, window time.Duration, maxInFlight int) *DurationLimiter {
	return newDurationLimiter(NewSlidingWindow(max, window), maxInFlight)
}

// NewLeakyBucketDuration pairs a LeakyBucket admission limiter with
// in-flight accounting.
func NewLeakyBucketDuration(max int, refill time.Duration, maxInFlight int) *DurationLimiter {
	return newDurationLimiter(NewLeakyBucket(max, refill), maxInFlight)
}

// StartOperation blocks until both the admission rate and the in-flight
// cap allow one more operation, then returns an end func that must be
// called exactly once to release the in-flight permit.
func (d *DurationLimiter) StartOperation(ctx context.Context) (end func(), err error) {
	if err := d.admission.Acquire(ctx); err != nil {
		return nil, err
	}
	if err := d.inflight.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		d.inflight.Release(1)
	}, nil
}

// Update delegates to the underlying admission limiter.
func (d *DurationLimiter) Update() { d.admission.Update() }

// NextUpdate delegates to the underlying admission limiter.
func (d *DurationLimiter) NextUpdate() time.Duration { return d.admission.NextUpdate() }

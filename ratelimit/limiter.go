package ratelimit

import (
	"context"
	"time"
)

// Limiter is the common contract for every admission-control algorithm
// in this package: block until admitted, try without blocking, and
// periodically replenish. NextUpdate/Update let a caller drive
// replenishment from its own background fork via RunUpdater rather than
// each Limiter owning a timer of its own.
type Limiter interface {
	Acquire(ctx context.Context) error
	TryAcquire() bool
	Update()
	NextUpdate() time.Duration
}

// RunUpdater sleeps NextUpdate then calls Update, forever, until ctx is
// done. Callers wire this into a scope with
// scope.Go(func(ctx context.Context) error { return ratelimit.RunUpdater(ctx, l) }).
func RunUpdater(ctx context.Context, l Limiter) error {
	for {
		d := l.NextUpdate()
		if d <= 0 {
			d = time.Millisecond
		}
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
			l.Update()
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

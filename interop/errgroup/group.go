// Package errgroup provides an adapter that mimics golang.org/x/sync/errgroup
// semantics using the local scope implementation. It enables incremental
// migration without pulling errgroup into the core library.
package errgroup

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/softwaremill/warp/scope"
)

// Group is an errgroup-like wrapper over scope.Scope (FailFast).
type Group struct {
	s   *scope.Scope
	ctx context.Context
	sem *semaphore.Weighted // nil until SetLimit is called
}

// WithContext creates a Group bound to ctx. Returned context is canceled when
// any function passed to Go returns a non-nil error.
func WithContext(ctx context.Context) (*Group, context.Context) {
	s := scope.New(ctx, scope.FailFast)
	g := &Group{s: s, ctx: s.Context()}
	return g, g.ctx
}

// SetLimit bounds the number of goroutines this group runs at once,
// exactly like golang.org/x/sync/errgroup.Group.SetLimit. It must be
// called before any Go/TryGo that should observe the limit; a negative n
// removes any existing limit.
func (g *Group) SetLimit(n int) {
	if n < 0 {
		g.sem = nil
		return
	}
	g.sem = semaphore.NewWeighted(int64(n))
}

// Go starts a function. It should return a non-nil error to signal failure.
// If SetLimit was called, Go blocks until a slot is free.
func (g *Group) Go(f func() error) {
	if f == nil {
		return
	}
	sem := g.sem
	if sem != nil {
		if err := sem.Acquire(g.ctx, 1); err != nil {
			return
		}
	}
	g.s.Go(func(context.Context) error {
		if sem != nil {
			defer sem.Release(1)
		}
		return f()
	})
}

// TryGo calls Go only if the group's limiter (set via SetLimit) has a
// free slot, returning whether it did. With no limit set it always
// starts f, exactly like golang.org/x/sync/errgroup.Group.TryGo.
func (g *Group) TryGo(f func() error) bool {
	if f == nil {
		return false
	}
	sem := g.sem
	if sem != nil && !sem.TryAcquire(1) {
		return false
	}
	g.s.Go(func(context.Context) error {
		if sem != nil {
			defer sem.Release(1)
		}
		return f()
	})
	return true
}

// Wait blocks until all functions have returned. It returns the first non-nil
// error (FailFast semantics) or nil on success.
func (g *Group) Wait() error {
	return g.s.Wait()
}

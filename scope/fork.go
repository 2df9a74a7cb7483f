package scope

import (
	"context"
	"fmt"
)

func panicError(r any) error {
	return fmt.Errorf("panic: %v", r)
}

// Fork is a handle to a spawned task's eventual result. T is struct{} for
// the error-only flavors (Go, GoUser, GoUnsupervised) and the task's
// value type for GoResult/GoCancellable/GoError/GoUserError.
type Fork[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Join blocks until the fork completes or ctx is done, whichever comes
// first, and returns the fork's result and error.
func (f *Fork[T]) Join(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// JoinEither is Join under another name, kept for parity with the
// throwing-vs-Either distinction in the design: in Go, Join already
// never panics on a fork failure, so there is nothing additional for
// JoinEither to guard against.
func (f *Fork[T]) JoinEither(ctx context.Context) (T, error) {
	return f.Join(ctx)
}

// CancellableFork is a Fork backed by its own nested scope, so it can be
// cancelled independently of the scope that spawned it.
type CancellableFork[T any] struct {
	*Fork[T]
	nested *Scope
}

// Cancel signals the fork's nested scope to end without waiting for the
// carrier goroutine to observe it.
func (c *CancellableFork[T]) Cancel() {
	c.nested.Cancel(ErrCancelled)
}

// CancelNow signals the fork's nested scope to end and blocks until the
// carrier goroutine has fully unwound.
func (c *CancellableFork[T]) CancelNow() {
	c.nested.Cancel(ErrCancelled)
	<-c.Fork.done
}

// GoResult starts an unsupervised fork that produces a value of type T in
// addition to an error, for callers who want a typed result from Join
// without opting into the full error-mode machinery of GoError.
func GoResult[T any](s *Scope, fn func(ctx context.Context) (T, error)) *Fork[T] {
	fk := &Fork[T]{done: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(fk.done)
		if s.lim != nil {
			if err := s.lim.Acquire(s.ctx); err != nil {
				fk.err = err
				return
			}
			defer s.lim.Release()
		}
		fk.result, fk.err = callGuardedResult(s, fn)
	}()
	return fk
}

// GoCancellable starts fn in a dedicated nested scope so the resulting
// fork can be cancelled independently of its parent, at the cost of a
// second carrier goroutine that owns the nested scope's lifecycle. This
// mirrors the design's forkCancellable and its documented trade-off.
func GoCancellable[T any](s *Scope, fn func(ctx context.Context) (T, error)) *CancellableFork[T] {
	nested := s.Child(FailFast)
	fk := &Fork[T]{done: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(fk.done)
		inner := GoResult(nested, fn)
		<-inner.done
		nestedErr := nested.Wait()
		fk.result = inner.result
		if inner.err != nil {
			fk.err = inner.err
		} else {
			fk.err = nestedErr
		}
	}()
	return &CancellableFork[T]{Fork: fk, nested: nested}
}

func callGuardedResult[T any](s *Scope, fn func(ctx context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if s.opts.PanicAsError {
				var zero T
				result = zero
				err = panicError(r)
				return
			}
			panic(r)
		}
	}()
	return fn(s.ctx)
}

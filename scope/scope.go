package scope

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Policy controls how a scope reacts when one of its forks fails.
type Policy int

const (
	// FailFast cancels every sibling task as soon as any fork fails.
	FailFast Policy = iota
	// Supervisor collects the first failure but lets siblings run to
	// completion; Wait still returns that first failure.
	Supervisor
)

// ErrCancelled is recorded as a scope's failure when Cancel is invoked
// without an explicit cause.
var ErrCancelled = errors.New("scope: cancelled")

// ScopeError is what Wait returns when a scope recorded more than one
// failure: the first one recorded is the primary cause (Unwrap returns
// it, so errors.Is/As against it still work), and every failure recorded
// after it is kept as a suppressed cause rather than silently dropped.
type ScopeError struct {
	err        error
	suppressed []error
}

func (e *ScopeError) Error() string       { return e.err.Error() }
func (e *ScopeError) Unwrap() error       { return e.err }
func (e *ScopeError) Suppressed() []error { return e.suppressed }

// Option configures a Scope at construction time.
type Option func(*Options)

// Options holds every knob a Scope construction can be given.
type Options struct {
	PanicAsError   bool
	Observer       Observer
	MaxConcurrency int
	Timeout        time.Duration
}

func defaultOptions() Options { return Options{PanicAsError: true} }

// WithPanicAsError controls whether a recovered panic inside a fork is
// converted into a regular error (true, the default) or re-panicked in
// the carrier goroutine (false). A re-panicked fork is not reported to
// the observer's TaskFinished.
func WithPanicAsError(v bool) Option { return func(o *Options) { o.PanicAsError = v } }

// WithObserver attaches a lifecycle Observer to the scope.
func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// WithMaxConcurrency bounds the number of forks running at once within
// the scope. A Child inherits the same bound (unless overridden) but
// enforces it with its own limiter, so the child's forks do not count
// against the parent's. GoError and GoUserError forks are not bounded.
func WithMaxConcurrency(n int) Option { return func(o *Options) { o.MaxConcurrency = n } }

// WithTimeout cancels the scope automatically after d elapses.
func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

// Observer receives scope and task lifecycle events. All methods must be
// safe for concurrent use; a nil Observer (the default) disables the
// calls entirely rather than requiring a no-op implementation.
type Observer interface {
	ScopeCreated(ctx context.Context)
	ScopeCancelled(ctx context.Context, cause error)
	ScopeJoined(ctx context.Context, wait time.Duration)
	TaskStarted(ctx context.Context)
	TaskFinished(ctx context.Context, dur time.Duration, err error, panicked bool)
}

// Scope owns a group of concurrent forks and guarantees they have all
// terminated before Wait returns.
type Scope struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cancelOnce sync.Once
	policy     Policy
	wg         sync.WaitGroup
	mu         sync.Mutex
	firstErr   error
	suppressed []error
	canceled   bool
	naturalEnd bool

	finMu      sync.Mutex
	finalizers []func()

	opts Options
	obs  Observer
	lim  Limiter
	sup  supervisor
}

// New creates a root scope derived from parent (context.Background() if
// nil) governed by policy.
func New(parent context.Context, policy Policy, optFns ...Option) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Scope{ctx: ctx, cancel: cancel, policy: policy, opts: defaultOptions()}
	for _, fn := range optFns {
		fn(&s.opts)
	}
	s.obs = s.opts.Observer
	if s.opts.MaxConcurrency > 0 {
		s.lim = newSemaphoreLimiter(s.opts.MaxConcurrency)
	}
	s.sup = newDefaultSupervisor(s.onSupervisorEnd)
	if s.opts.Timeout > 0 {
		timer := time.AfterFunc(s.opts.Timeout, func() { s.Cancel(context.DeadlineExceeded) })
		s.Defer(func() { timer.Stop() })
	}
	if s.obs != nil {
		s.obs.ScopeCreated(ctx)
	}
	return s
}

// Context returns the scope's cancellation context. It is Done once the
// scope is cancelled (by Cancel, its timeout, its parent, or a failure
// under FailFast) or ends naturally after its last user fork completes.
// Wait itself does not cancel it, and a failure under Supervisor does
// not either.
func (s *Scope) Context() context.Context { return s.ctx }

// Defer registers a finalizer that runs uninterruptibly, LIFO, after every
// fork started in this scope has terminated and before Wait returns.
func (s *Scope) Defer(fn func()) {
	if fn == nil {
		return
	}
	s.finMu.Lock()
	s.finalizers = append(s.finalizers, fn)
	s.finMu.Unlock()
}

// Go starts a daemon fork: it contributes to scope failure propagation
// but does not by itself block scope end, and is interrupted as soon as
// the scope decides to end for any other reason.
func (s *Scope) Go(fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.runFork(false, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// GoUser starts a user fork: the scope's Wait blocks until it completes,
// and its failure ends the scope exactly like Go's.
func (s *Scope) GoUser(fn func(ctx context.Context) error) *Fork[struct{}] {
	if fn == nil {
		return nil
	}
	return s.runFork(true, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// GoUnsupervised starts a fork whose failure is held in the returned Fork
// until Join is called; it never ends the scope on its own, though it is
// still interrupted when the scope ends for another reason and is still
// awaited by Wait so the scope never leaks a running carrier goroutine.
func (s *Scope) GoUnsupervised(fn func(ctx context.Context) error) *Fork[struct{}] {
	if fn == nil {
		return nil
	}
	return s.runForkUnsupervised(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// TryGo behaves like Go, but declines to start the fork (returning false)
// if the scope has a MaxConcurrency limiter and no slot is currently
// free. With no limiter configured it always starts the fork, mirroring
// golang.org/x/sync/errgroup.Group.TryGo's unlimited-case behavior.
func (s *Scope) TryGo(fn func(ctx context.Context) error) bool {
	if fn == nil {
		return false
	}
	if s.lim == nil {
		s.Go(fn)
		return true
	}
	ta, ok := s.lim.(interface{ TryAcquire() bool })
	if !ok || !ta.TryAcquire() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.lim.Release()
		var start time.Time
		if s.obs != nil {
			start = time.Now()
			s.obs.TaskStarted(s.ctx)
		}
		_, err, panicked := s.callGuarded(func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		})
		if s.obs != nil {
			s.obs.TaskFinished(s.ctx, time.Since(start), err, panicked)
		}
		s.reportFailure(false, err)
	}()
	return true
}

// GoAll forks every fn as a user fork of a fresh child scope and waits
// for all of them, short-circuiting under FailFast or collecting the
// first failure under Supervisor, exactly like GoUser+Wait composed.
func (s *Scope) GoAll(fns ...func(context.Context) error) error {
	child := s.Child(s.policy)
	for _, fn := range fns {
		fn := fn
		child.GoUser(fn)
	}
	return child.Wait()
}

// runFork is the shared daemon/user fork implementation.
func (s *Scope) runFork(isUser bool, fn func(ctx context.Context) (struct{}, error)) *Fork[struct{}] {
	fk := &Fork[struct{}]{done: make(chan struct{})}
	if isUser {
		s.sup.forkStarts()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(fk.done)
		if s.lim != nil {
			if err := s.lim.Acquire(s.ctx); err != nil {
				fk.err = err
				s.reportFailure(isUser, err)
				return
			}
			defer s.lim.Release()
		}

		var start time.Time
		if s.obs != nil {
			start = time.Now()
			s.obs.TaskStarted(s.ctx)
		}

		result, err, panicked := s.callGuarded(fn)
		fk.result, fk.err = result, err

		if s.obs != nil {
			s.obs.TaskFinished(s.ctx, time.Since(start), err, panicked)
		}
		s.reportFailure(isUser, err)
	}()
	return fk
}

// runForkUnsupervised spawns a carrier goroutine tracked by the scope's
// WaitGroup (so the scope never exits with it still running) but whose
// result is only ever observed through Fork.Join.
func (s *Scope) runForkUnsupervised(fn func(ctx context.Context) (struct{}, error)) *Fork[struct{}] {
	fk := &Fork[struct{}]{done: make(chan struct{})}
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
		var start time.Time
		if s.obs != nil {
			start = time.Now()
			s.obs.TaskStarted(s.ctx)
		}
		result, err, panicked := s.callGuarded(fn)
		fk.result, fk.err = result, err
		if s.obs != nil {
			s.obs.TaskFinished(s.ctx, time.Since(start), err, panicked)
		}
	}()
	return fk
}

// callGuarded runs fn with panic recovery, converting a panic into an
// error (and reporting panicked) when PanicAsError is set, and
// re-panicking in this goroutine otherwise, in which case it does not
// return and the caller's observer call is skipped.
func (s *Scope) callGuarded(fn func(ctx context.Context) (struct{}, error)) (result struct{}, err error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			if s.opts.PanicAsError {
				err = fmt.Errorf("panic: %v", r)
				return
			}
			panic(r)
		}
	}()
	result, err = fn(s.ctx)
	return
}

// reportFailure wires a fork's outcome into the supervisor and, for
// daemon-policy failures, into the scope's fail-fast/collect machinery.
func (s *Scope) reportFailure(isUser bool, err error) {
	if isUser {
		s.sup.forkSuccess()
	}
	if err == nil {
		return
	}
	s.fail(err)
}

// recordFailureLocked records err as the scope's failure, first-writer-
// wins; every call after the first attaches err as a suppressed cause
// instead of discarding it. Callers must hold s.mu.
func (s *Scope) recordFailureLocked(err error) {
	if s.firstErr == nil {
		s.firstErr = err
		return
	}
	if err == s.firstErr {
		return
	}
	s.suppressed = append(s.suppressed, err)
}

// Cancel ends the scope explicitly. The first call's cause (or
// ErrCancelled if err is nil) is what Wait ultimately returns; causes
// from later calls are attached as suppressed.
func (s *Scope) Cancel(err error) {
	if err == nil {
		err = ErrCancelled
	}
	s.mu.Lock()
	wasCanceled := s.canceled
	s.canceled = true
	s.recordFailureLocked(err)
	cause := s.firstErr
	s.mu.Unlock()

	s.cancelOnce.Do(s.cancel)
	if !wasCanceled && s.obs != nil {
		s.obs.ScopeCancelled(s.ctx, cause)
	}
}

// onSupervisorEnd is invoked by the supervisor once the scope's body has
// completed and every user fork it started has also completed. Unless
// the scope has already been cancelled, it cancels the context so any
// lingering daemon forks are interrupted, without recording an error
// outcome.
func (s *Scope) onSupervisorEnd() {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	s.naturalEnd = true
	s.mu.Unlock()
	s.cancelOnce.Do(s.cancel)
}

// Wait marks the scope's body complete, blocks until every fork started
// in this scope has terminated, runs finalizers LIFO, and returns the
// first recorded failure (nil on success). If more than one fork failed,
// the result is a *ScopeError wrapping the first failure, with the rest
// reachable via its Suppressed method.
func (s *Scope) Wait() error {
	s.sup.bodyCompleted()

	var start time.Time
	if s.obs != nil {
		start = time.Now()
	}
	s.wg.Wait()
	if s.obs != nil {
		s.obs.ScopeJoined(s.ctx, time.Since(start))
	}

	s.runFinalizers()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstErr == nil || len(s.suppressed) == 0 {
		return s.firstErr
	}
	return &ScopeError{err: s.firstErr, suppressed: append([]error(nil), s.suppressed...)}
}

func (s *Scope) runFinalizers() {
	s.finMu.Lock()
	fins := s.finalizers
	s.finalizers = nil
	s.finMu.Unlock()
	for i := len(fins) - 1; i >= 0; i-- {
		fins[i]()
	}
}

// fail records err as the scope's failure (first-writer-wins, later
// failures attached as suppressed) and, under FailFast, cancels the scope
// immediately. A context.Canceled surfacing from a daemon fork purely as
// a consequence of a clean natural end is dropped rather than reported,
// so well-behaved shutdowns don't leak a spurious "context canceled"
// failure or suppressed entry.
func (s *Scope) fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.naturalEnd && errors.Is(err, context.Canceled) {
		s.mu.Unlock()
		return
	}
	s.recordFailureLocked(err)
	shouldCancel := s.policy == FailFast
	cause := s.firstErr
	s.mu.Unlock()
	if shouldCancel {
		s.Cancel(cause)
	}
}

// Child creates a sub-scope whose context is cancelled whenever s's is,
// in addition to anything that ends the child on its own terms.
func (s *Scope) Child(policy Policy, optFns ...Option) *Scope {
	childOpts := s.opts
	childOpts.Timeout = 0
	for _, fn := range optFns {
		fn(&childOpts)
	}
	ctx, cancel := context.WithCancel(s.ctx)
	cs := &Scope{ctx: ctx, cancel: cancel, policy: policy, opts: childOpts, obs: childOpts.Observer}
	if childOpts.MaxConcurrency > 0 {
		cs.lim = newSemaphoreLimiter(childOpts.MaxConcurrency)
	}
	cs.sup = newDefaultSupervisor(cs.onSupervisorEnd)
	if childOpts.Timeout > 0 {
		timer := time.AfterFunc(childOpts.Timeout, func() { cs.Cancel(context.DeadlineExceeded) })
		cs.Defer(func() { timer.Stop() })
	}
	if cs.obs != nil {
		cs.obs.ScopeCreated(ctx)
	}
	return cs
}

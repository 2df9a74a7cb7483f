package rendezvous

import "sync/atomic"

type continuationState uint32

const (
	contPending continuationState = iota
	contResolved
	contInterrupted
)

// continuation is the park/unpark primitive for a goroutine suspended
// on a cell: a size-1 channel receive blocks the parked goroutine
// exactly the way parking a real thread would, and is the idiomatic Go
// substitute for it. state is CAS-gated so a resume and an interrupt
// racing each other settle on exactly one outcome.
type continuation[T any] struct {
	state   atomic.Uint32
	resultC chan T
}

func newContinuation[T any]() *continuation[T] {
	return &continuation[T]{resultC: make(chan T, 1)}
}

// tryResume delivers v to the parked goroutine, succeeding iff no one
// has already resolved or interrupted this continuation.
func (c *continuation[T]) tryResume(v T) bool {
	if !c.state.CompareAndSwap(uint32(contPending), uint32(contResolved)) {
		return false
	}
	c.resultC <- v
	return true
}

// tryInterrupt marks the continuation interrupted, succeeding iff it
// had not already been resolved.
func (c *continuation[T]) tryInterrupt() bool {
	return c.state.CompareAndSwap(uint32(contPending), uint32(contInterrupted))
}

func (c *continuation[T]) wasInterrupted() bool {
	return continuationState(c.state.Load()) == contInterrupted
}

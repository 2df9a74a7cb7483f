package rendezvous

import (
	"context"
	"errors"
)

// Sink receives the output of a ForkStage: exactly one OnNext per
// emitted value, then exactly one of OnDone or OnError, in that order
// and from a single producer — the contract a flow-style stage is
// expected to uphold.
type Sink[T any] interface {
	OnNext(T)
	OnDone()
	OnError(error)
}

// ForkStage is the one extension point this module exposes to an
// out-of-scope flow library: anything that can run, pumping its output
// into a Sink.
type ForkStage[T any] interface {
	Run(ctx context.Context, sink Sink[T])
}

type channelStage[T any] struct {
	ch *Channel[T]
}

// AsForkStage adapts c into a ForkStage that pumps Receive into the
// given Sink until the channel closes.
func (c *Channel[T]) AsForkStage() ForkStage[T] {
	return &channelStage[T]{ch: c}
}

func (s *channelStage[T]) Run(ctx context.Context, sink Sink[T]) {
	for {
		v, ok, err := s.ch.receive(ctx)
		if !ok {
			if errors.Is(err, ErrClosed) {
				sink.OnDone()
			} else {
				sink.OnError(err)
			}
			return
		}
		sink.OnNext(v)
	}
}

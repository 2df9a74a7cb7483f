package rendezvous

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Send/Receive once the channel has been
// closed via Done (or Error(nil)) and no further values are
// deliverable; after Error(err) with a non-nil err, err is returned
// instead.
var ErrClosed = errors.New("rendezvous: channel closed")

// Options configures a Channel at construction time.
type Options struct {
	Buffer int
}

// Option customizes Options.
type Option func(*Options)

// WithBuffer lets up to n sends get ahead of receives before a sender
// has to wait for a matching receiver. The default, 0, is a true
// rendezvous channel: every send waits for a receive and vice versa.
func WithBuffer(n int) Option {
	return func(o *Options) { o.Buffer = n }
}

// Channel is a lock-free, segmented-array channel pairing senders and
// receivers by claiming monotonically increasing cell indices.
type Channel[T any] struct {
	buffer int64

	sendSeq atomic.Int64
	recvSeq atomic.Int64

	head atomic.Pointer[segment[T]]

	closedC   chan struct{}
	closeOnce sync.Once
	closeErr  atomic.Pointer[error]
}

// NewChannel creates a Channel ready for use.
func NewChannel[T any](optFns ...Option) *Channel[T] {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	c := &Channel[T]{buffer: int64(opts.Buffer), closedC: make(chan struct{})}
	c.head.Store(newSegment[T](0))
	return c
}

func (c *Channel[T]) isClosed() bool {
	select {
	case <-c.closedC:
		return true
	default:
		return false
	}
}

// Done closes the channel with no error: all values already handed
// over (or sitting buffered) are still deliverable, but new sends and
// any receive that would have to wait for one now fail with ErrClosed.
func (c *Channel[T]) Done() { c.Error(nil) }

// Error closes the channel, recording err as the reason observed by
// future Receive/ReceiveOrClosed calls once the channel is drained.
func (c *Channel[T]) Error(err error) {
	c.closeOnce.Do(func() {
		if err != nil {
			c.closeErr.Store(&err)
		}
		close(c.closedC)
	})
}

func (c *Channel[T]) closedErr() error {
	if p := c.closeErr.Load(); p != nil {
		return *p
	}
	return ErrClosed
}

// tryAdvanceHead retires segments that both sendSeq and recvSeq have
// fully passed, so a long-lived channel doesn't pin its whole segment
// chain in memory. It's called opportunistically from every op rather
// than on a background ticker; a racing retire from another goroutine
// just wins and this call becomes a harmless no-op.
func (c *Channel[T]) tryAdvanceHead() {
	minSeq := c.sendSeq.Load()
	if r := c.recvSeq.Load(); r < minSeq {
		minSeq = r
	}
	for {
		h := c.head.Load()
		if (h.id+1)*segmentSize > minSeq {
			return
		}
		next := h.next.Load()
		if next == nil {
			return
		}
		c.head.CompareAndSwap(h, next)
	}
}

// Send hands v to a receiver, waiting for one if necessary (or for
// buffer room, if WithBuffer was configured). It returns ctx.Err() if
// ctx is done before a receiver or buffer slot becomes available, and
// ErrClosed (or the error passed to Error) if the channel is closed.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	if c.isClosed() {
		return c.closedErr()
	}
	c.tryAdvanceHead()
	for {
		i := c.sendSeq.Add(1) - 1
		seg := findSegment(c.head.Load(), i)
		cl := seg.cellAt(i)
		delivered, err, retry := c.sendAtCell(ctx, cl, i, v)
		if retry {
			continue
		}
		if delivered {
			return nil
		}
		return err
	}
}

// TrySend deposits v without blocking, succeeding only if a receiver is
// already waiting or a buffer slot is immediately available.
func (c *Channel[T]) TrySend(v T) bool {
	if c.isClosed() {
		return false
	}
	c.tryAdvanceHead()
	for {
		i := c.sendSeq.Add(1) - 1
		seg := findSegment(c.head.Load(), i)
		cl := seg.cellAt(i)
		delivered, _, retry := c.trySendAtCell(cl, i, v)
		if retry {
			continue
		}
		return delivered
	}
}

// Receive waits for a matching sender (or a buffered value) and returns
// it. It returns ctx.Err() if ctx is done first, and ErrClosed once the
// channel is closed and drained.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	v, ok, err := c.receive(ctx)
	if !ok {
		var zero T
		return zero, err
	}
	return v, nil
}

// ReceiveOrClosed is Receive but distinguishes "closed" from other
// errors via its bool result, matching the spec's *OrClosed family.
func (c *Channel[T]) ReceiveOrClosed(ctx context.Context) (T, bool, error) {
	v, ok, err := c.receive(ctx)
	if ok {
		return v, false, nil
	}
	return v, errors.Is(err, ErrClosed) || err == c.closedErr(), err
}

// TryReceive takes a value without blocking, succeeding only if one is
// already buffered or a sender is already waiting. A failed TryReceive
// still consumes a cell index (claiming is unconditional, by design, so
// two receivers never contend over which one "really" tried first) —
// heavy TryReceive use against a future sender with no buffer room can
// strand that sender waiting for a receive that will never arrive at
// its index.
func (c *Channel[T]) TryReceive() (T, bool) {
	c.tryAdvanceHead()
	for {
		i := c.recvSeq.Add(1) - 1
		seg := findSegment(c.head.Load(), i)
		cl := seg.cellAt(i)
		v, ok, retry := c.tryReceiveAtCell(cl)
		if retry {
			continue
		}
		return v, ok
	}
}

func (c *Channel[T]) receive(ctx context.Context) (T, bool, error) {
	c.tryAdvanceHead()
	for {
		i := c.recvSeq.Add(1) - 1
		seg := findSegment(c.head.Load(), i)
		cl := seg.cellAt(i)
		v, ok, err, retry := c.receiveAtCell(ctx, cl, i)
		if retry {
			continue
		}
		return v, ok, err
	}
}

// sendAtCell runs the sender side of the cell state machine for cell
// index i. Since every index is claimed by exactly one sender, the only
// states it can observe on arrival are empty, a waiting receiver, or a
// tombstone left by a receiver that was cancelled here first.
func (c *Channel[T]) sendAtCell(ctx context.Context, cl *cell[T], i int64, v T) (delivered bool, err error, retry bool) {
	for {
		switch cl.load() {
		case cellEmpty:
			if i < c.recvSeq.Load()+c.buffer {
				cl.payload = v
				if cl.cas(cellEmpty, cellBuffered) {
					return true, nil, false
				}
				continue
			}
			cont := newContinuation[T]()
			cl.payload = v
			cl.sendC = cont
			if !cl.cas(cellEmpty, cellSuspendedSend) {
				continue
			}
			select {
			case <-cont.resultC:
				return true, nil, false
			case <-c.closedC:
				if cont.tryInterrupt() {
					cl.state.Store(uint32(cellInterrupted))
					return false, c.closedErr(), false
				}
				<-cont.resultC
				return true, nil, false
			case <-ctx.Done():
				if cont.tryInterrupt() {
					cl.state.Store(uint32(cellInterrupted))
					return false, ctx.Err(), false
				}
				<-cont.resultC
				return true, nil, false
			}
		case cellSuspendedReceive:
			rc := cl.recvC
			if rc.tryResume(v) {
				cl.state.Store(uint32(cellDone))
				return true, nil, false
			}
			cl.state.Store(uint32(cellBroken))
			return false, nil, true
		case cellInterrupted, cellBroken:
			return false, nil, true
		default:
			return false, nil, true
		}
	}
}

func (c *Channel[T]) trySendAtCell(cl *cell[T], i int64, v T) (delivered bool, err error, retry bool) {
	switch cl.load() {
	case cellEmpty:
		if i < c.recvSeq.Load()+c.buffer {
			cl.payload = v
			if cl.cas(cellEmpty, cellBuffered) {
				return true, nil, false
			}
			return c.trySendAtCell(cl, i, v)
		}
		return false, nil, false
	case cellSuspendedReceive:
		rc := cl.recvC
		if rc.tryResume(v) {
			cl.state.Store(uint32(cellDone))
			return true, nil, false
		}
		cl.state.Store(uint32(cellBroken))
		return false, nil, true
	case cellInterrupted, cellBroken:
		return false, nil, true
	default:
		return false, nil, true
	}
}

// receiveAtCell is sendAtCell's mirror image: the states a fresh
// receiver can observe are empty, a buffered value, a waiting sender,
// or a tombstone left by a sender cancelled here first.
func (c *Channel[T]) receiveAtCell(ctx context.Context, cl *cell[T], i int64) (v T, ok bool, err error, retry bool) {
	for {
		switch cl.load() {
		case cellEmpty:
			if c.isClosed() {
				return v, false, c.closedErr(), false
			}
			cont := newContinuation[T]()
			cl.recvC = cont
			if !cl.cas(cellEmpty, cellSuspendedReceive) {
				continue
			}
			select {
			case rv := <-cont.resultC:
				return rv, true, nil, false
			case <-c.closedC:
				if cont.tryInterrupt() {
					cl.state.Store(uint32(cellInterrupted))
					return v, false, c.closedErr(), false
				}
				rv := <-cont.resultC
				return rv, true, nil, false
			case <-ctx.Done():
				if cont.tryInterrupt() {
					cl.state.Store(uint32(cellInterrupted))
					return v, false, ctx.Err(), false
				}
				rv := <-cont.resultC
				return rv, true, nil, false
			}
		case cellBuffered:
			rv := cl.payload
			if cl.cas(cellBuffered, cellDone) {
				return rv, true, nil, false
			}
			continue
		case cellSuspendedSend:
			sc := cl.sendC
			rv := cl.payload
			if sc.tryResume(rv) {
				cl.state.Store(uint32(cellDone))
				return rv, true, nil, false
			}
			cl.state.Store(uint32(cellBroken))
			return v, false, nil, true
		case cellInterrupted, cellBroken:
			return v, false, nil, true
		default:
			return v, false, nil, true
		}
	}
}

func (c *Channel[T]) tryReceiveAtCell(cl *cell[T]) (v T, ok bool, retry bool) {
	switch cl.load() {
	case cellBuffered:
		rv := cl.payload
		if cl.cas(cellBuffered, cellDone) {
			return rv, true, false
		}
		return c.tryReceiveAtCell(cl)
	case cellSuspendedSend:
		sc := cl.sendC
		rv := cl.payload
		if sc.tryResume(rv) {
			cl.state.Store(uint32(cellDone))
			return rv, true, false
		}
		cl.state.Store(uint32(cellBroken))
		return v, false, true
	case cellInterrupted, cellBroken:
		return v, false, true
	default:
		return v, false, false
	}
}

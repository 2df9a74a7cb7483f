package rendezvous

import "sync/atomic"

type cellState uint32

const (
	cellEmpty cellState = iota
	cellBuffered
	cellSuspendedSend
	cellSuspendedReceive
	cellDone
	cellBroken
	cellInterrupted
)

// cell is one slot in a segment: a CAS-guarded state word plus whatever
// payload or continuation the state implies. Exactly one sender and one
// receiver ever touch a given cell (claimed via the channel's sendSeq /
// recvSeq counters), so contention is always pairwise, never broadcast.
type cell[T any] struct {
	state   atomic.Uint32
	payload T
	sendC   *continuation[T] // set when state == cellSuspendedSend
	recvC   *continuation[T] // set when state == cellSuspendedReceive
}

func (c *cell[T]) load() cellState { return cellState(c.state.Load()) }

func (c *cell[T]) cas(from, to cellState) bool {
	return c.state.CompareAndSwap(uint32(from), uint32(to))
}

// Package rendezvous implements a lock-free channel connecting one
// sender and one receiver per logical slot. With no buffer configured
// (the default) a send and a matching receive hand a value directly
// from one goroutine to the other, never storing it; WithBuffer(n)
// lets up to n sends get ahead of receives before a sender has to wait.
//
// The channel is built from a singly-linked chain of fixed-size
// segments of cells, each cell a small CAS-guarded state machine.
// Senders and receivers claim cells independently via monotonic
// fetch-added sequence counters, so two goroutines never contend on a
// shared index — only on the cell each of them lands on, and then only
// with the one peer that lands on the same cell.
package rendezvous

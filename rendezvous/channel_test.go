package rendezvous

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSendReceiveRendezvous(t *testing.T) {
	t.Parallel()
	ch := NewChannel[int]()
	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ch.Send(ctx, 42); err != nil {
			t.Errorf("unexpected send error: %v", err)
		}
	}()
	v, err := ch.Receive(ctx)
	if err != nil || v != 42 {
		t.Fatalf("expected 42, nil, got %d, %v", v, err)
	}
	<-done
}

func TestFIFOOrdering(t *testing.T) {
	t.Parallel()
	ch := NewChannel[int](WithBuffer(8))
	ctx := context.Background()
	const n = 200
	go func() {
		for i := 0; i < n; i++ {
			_ = ch.Send(ctx, i)
		}
	}()
	for i := 0; i < n; i++ {
		v, err := ch.Receive(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != i {
			t.Fatalf("expected FIFO order, wanted %d got %d", i, v)
		}
	}
}

func TestMultisetPreservedUnderConcurrency(t *testing.T) {
	t.Parallel()
	ch := NewChannel[int](WithBuffer(4))
	ctx := context.Background()
	const producers = 20
	const perProducer = 50
	total := producers * perProducer

	for p := 0; p < producers; p++ {
		go func(base int) {
			for i := 0; i < perProducer; i++ {
				_ = ch.Send(ctx, base*perProducer+i)
			}
		}(p)
	}

	seen := make(map[int]bool, total)
	for i := 0; i < total; i++ {
		v, err := ch.Receive(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[v] {
			t.Fatalf("value %d delivered more than once", v)
		}
		seen[v] = true
	}
	if len(seen) != total {
		t.Fatalf("expected %d distinct values, got %d", total, len(seen))
	}
}

func TestBufferAllowsSendsAheadOfReceives(t *testing.T) {
	t.Parallel()
	ch := NewChannel[int](WithBuffer(3))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := ch.Send(ctx, i); err != nil {
			t.Fatalf("expected buffered send %d to succeed without a receiver, got %v", i, err)
		}
	}
	if ch.TrySend(99) {
		t.Fatalf("expected the 4th send to exceed the buffer and decline")
	}
	for i := 0; i < 3; i++ {
		v, err := ch.Receive(ctx)
		if err != nil || v != i {
			t.Fatalf("expected buffered value %d, got %d, %v", i, v, err)
		}
	}
}

func TestTryReceiveTakesBufferedValueWithoutBlocking(t *testing.T) {
	t.Parallel()
	ch := NewChannel[int](WithBuffer(2))
	_ = ch.Send(context.Background(), 10)

	v, ok := ch.TryReceive()
	if !ok || v != 10 {
		t.Fatalf("expected (10, true), got (%d, %v)", v, ok)
	}
	if _, ok := ch.TryReceive(); ok {
		t.Fatalf("expected TryReceive to decline once nothing is buffered")
	}
}

func TestHeadRetiresPastConsumedSegments(t *testing.T) {
	t.Parallel()
	ch := NewChannel[int](WithBuffer(1))
	ctx := context.Background()
	const n = segmentSize*2 + 10

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			if err := ch.Send(ctx, i); err != nil {
				t.Errorf("unexpected send error: %v", err)
				return
			}
		}
	}()
	for i := 0; i < n; i++ {
		if _, err := ch.Receive(ctx); err != nil {
			t.Fatalf("unexpected receive error: %v", err)
		}
	}
	<-done

	if got := ch.head.Load().id; got == 0 {
		t.Fatalf("expected head to have retired past segment 0 after %d ops, still at id %d", n, got)
	}
}

func TestSendCancelledByContext(t *testing.T) {
	t.Parallel()
	ch := NewChannel[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := ch.Send(ctx, 1)
	if err == nil {
		t.Fatalf("expected Send with no receiver to be cancelled by the context deadline")
	}
}

func TestReceiveCancelledByContext(t *testing.T) {
	t.Parallel()
	ch := NewChannel[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ch.Receive(ctx)
	if err == nil {
		t.Fatalf("expected Receive with no sender to be cancelled by the context deadline")
	}
}

func TestClosedChannelRejectsNewSends(t *testing.T) {
	t.Parallel()
	ch := NewChannel[int]()
	ch.Done()
	if err := ch.Send(context.Background(), 1); err == nil {
		t.Fatalf("expected Send on a closed channel to fail")
	}
}

func TestClosedChannelDrainsThenReportsClosed(t *testing.T) {
	t.Parallel()
	ch := NewChannel[int](WithBuffer(2))
	ctx := context.Background()
	if err := ch.Send(ctx, 1); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	ch.Done()

	v, err := ch.Receive(ctx)
	if err != nil || v != 1 {
		t.Fatalf("expected the buffered value to still drain, got %d, %v", v, err)
	}
	if _, err := ch.Receive(ctx); err == nil {
		t.Fatalf("expected the drained, closed channel to report closed")
	}
}

func TestErrorPropagatesAsCloseReason(t *testing.T) {
	t.Parallel()
	boom := errClosedWithCustomReason{}
	ch := NewChannel[int]()
	ch.Error(boom)
	_, closed, err := ch.ReceiveOrClosed(context.Background())
	if !closed {
		t.Fatalf("expected a closed-with-error channel to report closed")
	}
	if err != boom {
		t.Fatalf("expected the custom close reason to propagate, got %v", err)
	}
}

type errClosedWithCustomReason struct{}

func (errClosedWithCustomReason) Error() string { return "custom close reason" }

func TestAsForkStagePumpsUntilDone(t *testing.T) {
	t.Parallel()
	ch := NewChannel[int](WithBuffer(3))
	for i := 0; i < 3; i++ {
		_ = ch.Send(context.Background(), i)
	}
	ch.Done()

	sink := &collectingSink{}
	ch.AsForkStage().Run(context.Background(), sink)
	if len(sink.values) != 3 {
		t.Fatalf("expected 3 values delivered to the sink, got %d", len(sink.values))
	}
	if !sink.done {
		t.Fatalf("expected OnDone to be called once the channel drained")
	}
}

type collectingSink struct {
	values []int
	done   bool
	err    error
}

func (s *collectingSink) OnNext(v int)   { s.values = append(s.values, v) }
func (s *collectingSink) OnDone()        { s.done = true }
func (s *collectingSink) OnError(e error) { s.err = e }

package scope

import (
	"context"
	"testing"
)

type validationError struct {
	Field string
}

func TestGoErrorEndsScopeWithTypedValue(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), FailFast)
	fk := GoError(s, func(_ context.Context) Either[validationError, int] {
		return Err[validationError, int](validationError{Field: "name"})
	})
	err := s.Wait()
	if err == nil {
		t.Fatal("expected GoError's application error to end the scope")
	}
	ve, ok := AppErrorValue[validationError](err)
	if !ok || ve.Field != "name" {
		t.Fatalf("expected recoverable validationError{name}, got ok=%v ve=%+v", ok, ve)
	}
	res, joinErr := fk.Join(context.Background())
	if joinErr == nil {
		t.Fatal("expected Join to surface the application error")
	}
	if !res.IsError() || res.Error().Field != "name" {
		t.Fatalf("expected Either to still carry the typed error, got %+v", res)
	}
}

func TestGoUserErrorCountsTowardOutstanding(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), FailFast)
	fk := GoUserError(s, func(_ context.Context) Either[string, int] {
		return Ok[string, int](5)
	})
	if err := s.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := fk.Join(context.Background())
	if err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}
	if res.IsError() || res.Value() != 5 {
		t.Fatalf("expected Ok(5), got %+v", res)
	}
}

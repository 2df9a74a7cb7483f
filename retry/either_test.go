package retry

import (
	"context"
	"testing"
)

type validationError struct{ Field string }

func TestDoEitherRetriesOnErrorVariant(t *testing.T) {
	t.Parallel()
	calls := 0
	result := DoEither(context.Background(), Config[Either[validationError, int]]{Schedule: Immediate(3)}, func(ctx context.Context) Either[validationError, int] {
		calls++
		if calls < 3 {
			return Err[validationError, int](validationError{Field: "name"})
		}
		return Ok[validationError, int](calls)
	})
	if result.IsError() {
		t.Fatalf("expected eventual success, got error %+v", result.Error())
	}
	if result.Value() != 3 || calls != 3 {
		t.Fatalf("expected to succeed on the 3rd attempt, got value=%d calls=%d", result.Value(), calls)
	}
}

func TestDoEitherExhaustsAndReturnsLastError(t *testing.T) {
	t.Parallel()
	calls := 0
	result := DoEither(context.Background(), Config[Either[validationError, int]]{Schedule: Immediate(2)}, func(ctx context.Context) Either[validationError, int] {
		calls++
		return Err[validationError, int](validationError{Field: "email"})
	})
	if !result.IsError() {
		t.Fatalf("expected the final Either to still be an error")
	}
	if result.Error().Field != "email" || calls != 3 {
		t.Fatalf("unexpected error value %+v or call count %d", result.Error(), calls)
	}
}

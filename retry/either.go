package retry

import "context"

// Either holds either a successful value or a typed application error,
// for operations that report failure as data rather than a Go error.
// This mirrors scope.Either but is kept local: the two packages are not
// worth coupling over a type this small.
type Either[E, T any] struct {
	err     E
	val     T
	isError bool
}

// Ok wraps a successful value.
func Ok[E, T any](t T) Either[E, T] { return Either[E, T]{val: t} }

// Err wraps an application error value.
func Err[E, T any](e E) Either[E, T] { return Either[E, T]{err: e, isError: true} }

// IsError reports whether this Either holds an error.
func (e Either[E, T]) IsError() bool { return e.isError }

// Error returns the held error value; meaningless if IsError is false.
func (e Either[E, T]) Error() E { return e.err }

// Value returns the held success value; meaningless if IsError is true.
func (e Either[E, T]) Value() T { return e.val }

// DoEither runs op, retrying per cfg, treating a returned Either that
// IsError as a retryable failure and an Either that is not as success —
// unless cfg.ResultPolicy says otherwise. The error seen by
// cfg.ErrorPolicy/AfterAttempt is always nil; inspect the returned
// Either directly to branch on the application error value.
func DoEither[E, T any](ctx context.Context, cfg Config[Either[E, T]], op func(ctx context.Context) Either[E, T]) Either[E, T] {
	userResultPolicy := cfg.ResultPolicy
	cfg.ResultPolicy = func(e Either[E, T]) bool {
		if e.IsError() {
			return false
		}
		if userResultPolicy != nil {
			return userResultPolicy(e)
		}
		return true
	}

	result, _ := Do(ctx, cfg, func(ctx context.Context) (Either[E, T], error) {
		return op(ctx), nil
	})
	return result
}

package retry

import "context"

// Default token-bucket parameters for AdaptiveConfig, matching the
// design's defaults (capacity 500, cost 5, reward 1).
const (
	DefaultBucketCapacity = 500
	DefaultFailureCost    = 5
	DefaultSuccessReward  = 1
)

// AdaptiveConfig couples a Config to a shared TokenBucket so that
// retries stop once the bucket is exhausted, independent of what the
// Schedule alone would allow — this is how a fleet of adaptively-retried
// calls backs off under sustained failure even if each call's individual
// schedule still has budget left.
type AdaptiveConfig[T any] struct {
	Config[T]

	Bucket        *TokenBucket
	FailureCost   int
	SuccessReward int
	// PenalizeNonSuccessValue controls whether a returned value that
	// ResultPolicy rejects (but which is not an error) costs tokens to
	// retry, the same as a worth-retrying error would.
	PenalizeNonSuccessValue bool
}

// DoAdaptive runs op under the schedule engine with AdaptiveConfig's
// token-bucket afterAttempt policy: a worth-retrying error spends
// FailureCost tokens to continue; a successful result refunds
// SuccessReward tokens and stops; a non-success, non-error result either
// spends tokens (PenalizeNonSuccessValue) or continues for free.
func DoAdaptive[T any](ctx context.Context, cfg AdaptiveConfig[T], op func(ctx context.Context) (T, error)) (T, error) {
	bucket := cfg.Bucket
	if bucket == nil {
		bucket = NewTokenBucket(DefaultBucketCapacity)
	}
	failureCost := cfg.FailureCost
	if failureCost == 0 {
		failureCost = DefaultFailureCost
	}
	successReward := cfg.SuccessReward
	if successReward == 0 {
		successReward = DefaultSuccessReward
	}

	inner := cfg.Config
	userAfter := cfg.Config.AfterAttempt
	resultPolicy := cfg.Config.ResultPolicy
	errorPolicy := cfg.Config.ErrorPolicy

	inner.AfterAttempt = func(attempt int, result T, err error) bool {
		if userAfter != nil {
			if !userAfter(attempt, result, err) {
				return false
			}
		}
		if err != nil {
			worthRetrying := true
			if errorPolicy != nil {
				worthRetrying = errorPolicy(err)
			}
			if !worthRetrying {
				return false
			}
			return bucket.TryAcquire(failureCost)
		}
		success := true
		if resultPolicy != nil {
			success = resultPolicy(result)
		}
		if success {
			bucket.Release(successReward)
			return false
		}
		if cfg.PenalizeNonSuccessValue {
			return bucket.TryAcquire(failureCost)
		}
		return true
	}

	return Do(ctx, inner, op)
}

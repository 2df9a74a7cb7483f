// Package ratelimit provides a family of admission-control algorithms
// sharing a single Limiter interface: FixedWindow, SlidingWindow,
// TokenBucket and LeakyBucket. DurationLimiter extends any Limiter with
// in-flight (not just admission-rate) accounting.
package ratelimit

// Package retry drives an operation repeatedly according to a Schedule,
// classifying each attempt's outcome and deciding whether to continue.
// Do implements the plain retry case; DoAdaptive couples the same engine
// to a shared TokenBucket so retries back off under sustained failure
// regardless of what any individual caller's Schedule says, and DoEither
// adapts the engine to operations that report failure as a value (see
// Either) instead of a Go error.
package retry

// Package otel provides no-op observer implementations for scope and
// retry, so both have a wiring point for OpenTelemetry-backed observers
// without depending on the OpenTelemetry SDK directly. The ratelimit
// package has no observer hook.
package otel

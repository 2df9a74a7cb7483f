// Package prom adapts scope.Observer onto real Prometheus instruments,
// with plain counter methods for retry attempts and rate limiter
// admissions and rejections. RegisterWith registers each instrument
// with a prometheus.Registerer.
package prom

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements scope.Observer, backing every event with both a
// Prometheus instrument (for scraping) and a plain atomic counter (for
// GetSnapshot, which callers who don't run a Prometheus registry can use
// directly without pulling in the client library's HTTP handler).
type Metrics struct {
	tasksStarted  prometheus.Counter
	tasksFinished prometheus.Counter
	tasksErrored  prometheus.Counter
	tasksPanicked prometheus.Counter
	activeTasks   prometheus.Gauge
	taskDuration  prometheus.Histogram

	scopesCreated   prometheus.Counter
	scopesCancelled prometheus.Counter
	joins           prometheus.Counter
	joinWait        prometheus.Histogram

	retryAttempts     prometheus.Counter
	ratelimitAdmitted prometheus.Counter
	ratelimitRejected prometheus.Counter

	snapActiveTasks     atomic.Int64
	snapTasksStarted    atomic.Int64
	snapTasksFinished   atomic.Int64
	snapTasksErrored    atomic.Int64
	snapTasksPanicked   atomic.Int64
	snapTaskDurSumNs    atomic.Int64
	snapScopesCreated   atomic.Int64
	snapScopesCancelled atomic.Int64
	snapJoins           atomic.Int64
	snapJoinWaitSumNs   atomic.Int64
}

// NewCollector builds a Metrics instance ready to be registered with a
// prometheus.Registerer via RegisterWith, or used standalone through
// GetSnapshot.
func NewCollector() *Metrics {
	return &Metrics{
		tasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warp_scope_tasks_started_total",
			Help: "Total forks started across all scopes.",
		}),
		tasksFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warp_scope_tasks_finished_total",
			Help: "Total forks finished across all scopes.",
		}),
		tasksErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warp_scope_tasks_errored_total",
			Help: "Total forks that finished with a non-nil error.",
		}),
		tasksPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warp_scope_tasks_panicked_total",
			Help: "Total forks that recovered from a panic.",
		}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "warp_scope_active_tasks",
			Help: "Forks currently running.",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warp_scope_task_duration_seconds",
			Help:    "Fork execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		scopesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warp_scope_created_total",
			Help: "Total scopes created.",
		}),
		scopesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warp_scope_cancelled_total",
			Help: "Total scopes that ended via cancellation.",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warp_scope_joins_total",
			Help: "Total calls to Scope.Wait that returned.",
		}),
		joinWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warp_scope_join_wait_seconds",
			Help:    "Time Scope.Wait spent blocked on its forks.",
			Buckets: prometheus.DefBuckets,
		}),
		retryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warp_retry_attempts_total",
			Help: "Total attempts made by the retry schedule engine.",
		}),
		ratelimitAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warp_ratelimit_admissions_total",
			Help: "Total rate limiter acquisitions that were admitted.",
		}),
		ratelimitRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warp_ratelimit_rejections_total",
			Help: "Total rate limiter acquisitions that were rejected.",
		}),
	}
}

// RegisterWith registers every underlying instrument with reg.
func (m *Metrics) RegisterWith(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.tasksStarted, m.tasksFinished, m.tasksErrored, m.tasksPanicked,
		m.activeTasks, m.taskDuration, m.scopesCreated, m.scopesCancelled,
		m.joins, m.joinWait, m.retryAttempts, m.ratelimitAdmitted, m.ratelimitRejected,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ScopeCreated records scope creation.
func (m *Metrics) ScopeCreated(_ context.Context) {
	m.scopesCreated.Inc()
	m.snapScopesCreated.Add(1)
}

// ScopeCancelled records scope cancellation.
func (m *Metrics) ScopeCancelled(_ context.Context, _ error) {
	m.scopesCancelled.Inc()
	m.snapScopesCancelled.Add(1)
}

// ScopeJoined records a join and accumulates wait time.
func (m *Metrics) ScopeJoined(_ context.Context, wait time.Duration) {
	m.joins.Inc()
	m.joinWait.Observe(wait.Seconds())
	m.snapJoins.Add(1)
	m.snapJoinWaitSumNs.Add(wait.Nanoseconds())
}

// TaskStarted increments active and started counters.
func (m *Metrics) TaskStarted(_ context.Context) {
	m.activeTasks.Inc()
	m.tasksStarted.Inc()
	m.snapActiveTasks.Add(1)
	m.snapTasksStarted.Add(1)
}

// TaskFinished decrements active, increments finished, and tracks error/panic and duration.
func (m *Metrics) TaskFinished(_ context.Context, dur time.Duration, err error, panicked bool) {
	m.activeTasks.Dec()
	m.tasksFinished.Inc()
	m.taskDuration.Observe(dur.Seconds())
	m.snapActiveTasks.Add(-1)
	m.snapTasksFinished.Add(1)
	m.snapTaskDurSumNs.Add(dur.Nanoseconds())
	if err != nil {
		m.tasksErrored.Inc()
		m.snapTasksErrored.Add(1)
	}
	if panicked {
		m.tasksPanicked.Inc()
		m.snapTasksPanicked.Add(1)
	}
}

// RetryAttempted records one attempt made by the retry schedule engine.
func (m *Metrics) RetryAttempted() { m.retryAttempts.Inc() }

// RateLimitAdmitted records one admitted rate limiter acquisition.
func (m *Metrics) RateLimitAdmitted() { m.ratelimitAdmitted.Inc() }

// RateLimitRejected records one rejected rate limiter acquisition.
func (m *Metrics) RateLimitRejected() { m.ratelimitRejected.Inc() }

// Snapshot exposes a copy of current metric values for exporting/inspection
// without requiring a Prometheus registry.
type Snapshot struct {
	ActiveTasks     int64
	TasksStarted    int64
	TasksFinished   int64
	TasksErrored    int64
	TasksPanicked   int64
	TaskDurSumNs    int64
	ScopesCreated   int64
	ScopesCancelled int64
	Joins           int64
	JoinWaitSumNs   int64
}

// GetSnapshot returns the current metrics snapshot.
func (m *Metrics) GetSnapshot() Snapshot {
	return Snapshot{
		ActiveTasks:     m.snapActiveTasks.Load(),
		TasksStarted:    m.snapTasksStarted.Load(),
		TasksFinished:   m.snapTasksFinished.Load(),
		TasksErrored:    m.snapTasksErrored.Load(),
		TasksPanicked:   m.snapTasksPanicked.Load(),
		TaskDurSumNs:    m.snapTaskDurSumNs.Load(),
		ScopesCreated:   m.snapScopesCreated.Load(),
		ScopesCancelled: m.snapScopesCancelled.Load(),
		Joins:           m.snapJoins.Load(),
		JoinWaitSumNs:   m.snapJoinWaitSumNs.Load(),
	}
}

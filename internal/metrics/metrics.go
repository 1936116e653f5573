// Package metrics exposes the service's Prometheus instrumentation: job
// throughput, the worker pool's current load, queue depth, and per-process
// stage duration. None of this is gated by a Non-goal — spec.md excludes
// authN/authZ and multi-host clustering, not observability.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric this service exports, registered against the
// prometheus.Registerer passed to New: the service passes the default
// registry that /metrics serves, and tests pass a private one.
type Registry struct {
	JobsEnqueuedTotal  *prometheus.CounterVec
	JobsCompletedTotal *prometheus.CounterVec
	JobsRunning        prometheus.Gauge
	JobQueueDepth      prometheus.Gauge
	StageDuration      *prometheus.HistogramVec
}

// New creates a Registry and registers every metric against reg.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		JobsEnqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ripple_engine_jobs_enqueued_total",
			Help: "Total number of jobs enqueued, by process name.",
		}, []string{"process"}),
		JobsCompletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ripple_engine_jobs_completed_total",
			Help: "Total number of jobs that reached a terminal state, by process name and outcome.",
		}, []string{"process", "status"}),
		JobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ripple_engine_jobs_running",
			Help: "Number of jobs currently executing in a worker.",
		}),
		JobQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ripple_engine_job_queue_depth",
			Help: "Number of jobs waiting to be claimed by a worker.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ripple_engine_stage_duration_seconds",
			Help:    "Wall-clock duration of a pipeline stage's execution, by process name.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"process"}),
	}

	reg.MustRegister(m.JobsEnqueuedTotal, m.JobsCompletedTotal, m.JobsRunning, m.JobQueueDepth, m.StageDuration)

	return m
}

// ObserveStageDuration records how long a process's stage took to run.
func (m *Registry) ObserveStageDuration(process string, d time.Duration) {
	m.StageDuration.WithLabelValues(process).Observe(d.Seconds())
}

// JobEnqueued increments the enqueue counter for process.
func (m *Registry) JobEnqueued(process string) {
	m.JobsEnqueuedTotal.WithLabelValues(process).Inc()
}

// JobCompleted increments the completion counter for process with the given
// terminal status (e.g. "successful", "failed", "dismissed").
func (m *Registry) JobCompleted(process, status string) {
	m.JobsCompletedTotal.WithLabelValues(process, status).Inc()
}

// JobStarted increments the running-jobs gauge. Call JobFinished when the
// job reaches a terminal state, even on panic recovery.
func (m *Registry) JobStarted() {
	m.JobsRunning.Inc()
}

// JobFinished decrements the running-jobs gauge.
func (m *Registry) JobFinished() {
	m.JobsRunning.Dec()
}

// SetQueueDepth reports the number of jobs currently waiting to be claimed,
// as polled from the job store.
func (m *Registry) SetQueueDepth(depth int) {
	m.JobQueueDepth.Set(float64(depth))
}

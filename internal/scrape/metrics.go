package scrape

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scrape pipeline.
type Metrics struct {
	Registry        *prometheus.Registry
	RunsTotal       *prometheus.CounterVec
	TargetsTotal    *prometheus.CounterVec
	AttemptsTotal   *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	TargetDuration  prometheus.Histogram
	CaptureDuration prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_runs_total",
			Help: "Total orchestrator runs by mode.",
		},
		[]string{"mode"},
	)
	targets := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_targets_total",
			Help: "Total targets processed by terminal status.",
		},
		[]string{"status"},
	)
	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_attempts_total",
			Help: "Total per-target attempts by platform.",
		},
		[]string{"platform"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scrape_retries_total",
			Help: "Total retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_errors_total",
			Help: "Total attempt errors by type.",
		},
		[]string{"error_type"},
	)
	targetDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrape_target_duration_seconds",
			Help:    "Wall time spent on one target including retries.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		},
	)
	captureDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrape_capture_duration_seconds",
			Help:    "Page capture latency.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(runs, targets, attempts, retries, errorsTotal, targetDuration, captureDuration)

	return &Metrics{
		Registry:        registry,
		RunsTotal:       runs,
		TargetsTotal:    targets,
		AttemptsTotal:   attempts,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		TargetDuration:  targetDuration,
		CaptureDuration: captureDuration,
	}
}

// IncRun increments the run counter for a mode label.
func (m *Metrics) IncRun(mode string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(mode).Inc()
}

// IncTarget increments the per-status target counter.
func (m *Metrics) IncTarget(status string) {
	if m == nil {
		return
	}
	m.TargetsTotal.WithLabelValues(status).Inc()
}

// IncAttempt increments the attempt counter for a platform.
func (m *Metrics) IncAttempt(platform string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(platform).Inc()
}

// IncRetry increments the retries counter.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveTarget records the wall time spent on one target.
func (m *Metrics) ObserveTarget(d time.Duration) {
	if m == nil {
		return
	}
	m.TargetDuration.Observe(d.Seconds())
}

// ObserveCapture records one capture latency.
func (m *Metrics) ObserveCapture(d time.Duration) {
	if m == nil {
		return
	}
	m.CaptureDuration.Observe(d.Seconds())
}

package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for update transactions.
type Metrics struct {
	config MetricsConfig

	// Update metrics
	updatesStarted   *prometheus.CounterVec
	updatesCompleted *prometheus.CounterVec
	updateDuration   *prometheus.HistogramVec

	// Stage metrics
	stagesExecuted *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec

	// Error metrics
	errorsByStage *prometheus.CounterVec

	// Store metrics
	refsResolved *prometheus.CounterVec

	// System metrics
	activeUpdates prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		updatesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_started_total",
				Help:      "Total number of update transactions started",
			},
			[]string{"osname"},
		),
		updatesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_completed_total",
				Help:      "Total number of update transactions completed",
			},
			[]string{"status"},
		),
		updateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "update_duration_seconds",
				Help:      "Duration of update transactions in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		stagesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stages_executed_total",
				Help:      "Total number of transaction stages executed",
			},
			[]string{"stage", "status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of transaction stages in seconds",
				Buckets:   buckets,
			},
			[]string{"stage"},
		),

		errorsByStage: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_stage_total",
				Help:      "Total number of errors by failing stage",
			},
			[]string{"stage"},
		),

		refsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refs_resolved_total",
				Help:      "Total number of refs resolved to commits",
			},
			[]string{"remote"},
		),

		activeUpdates: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_updates",
				Help:      "Current number of in-flight update transactions",
			},
		),
	}

	registry.MustRegister(
		m.updatesStarted,
		m.updatesCompleted,
		m.updateDuration,
		m.stagesExecuted,
		m.stageDuration,
		m.errorsByStage,
		m.refsResolved,
		m.activeUpdates,
	)

	return m, nil
}

// RecordUpdateStarted increments the counter for started updates.
func (m *Metrics) RecordUpdateStarted(osname string) {
	if m.updatesStarted == nil {
		return
	}
	m.updatesStarted.WithLabelValues(osname).Inc()
	m.activeUpdates.Inc()
}

// RecordUpdateCompleted records a completed update with its status and duration.
func (m *Metrics) RecordUpdateCompleted(status string, duration time.Duration) {
	if m.updatesCompleted == nil {
		return
	}
	m.updatesCompleted.WithLabelValues(status).Inc()
	m.updateDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeUpdates.Dec()
}

// RecordStage records the execution of a single transaction stage.
func (m *Metrics) RecordStage(stage, status string, duration time.Duration) {
	if m.stagesExecuted == nil {
		return
	}
	m.stagesExecuted.WithLabelValues(stage, status).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordStageError records a stage failure.
func (m *Metrics) RecordStageError(stage string) {
	if m.errorsByStage == nil {
		return
	}
	m.errorsByStage.WithLabelValues(stage).Inc()
}

// RecordRefResolved records a successful ref resolution.
func (m *Metrics) RecordRefResolved(remote string) {
	if m.refsResolved == nil {
		return
	}
	m.refsResolved.WithLabelValues(remote).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}

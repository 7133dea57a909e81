package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the amphora orchestration worker.
type Metrics struct {
	config MetricsConfig

	// Task metrics
	taskExecutions *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	taskReverts    *prometheus.CounterVec

	// Driver metrics
	driverCalls    *prometheus.CounterVec
	driverDuration *prometheus.HistogramVec
	driverErrors   *prometheus.CounterVec

	// Entity metrics
	entitiesMarkedError *prometheus.CounterVec

	// Retry metrics
	retryDecisions *prometheus.CounterVec

	// Connectivity metrics
	connectivityWaitSeconds prometheus.Histogram

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

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Task metrics
		taskExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_executions_total",
				Help:      "Total number of task executions",
			},
			[]string{"task", "result"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Duration of task execution in seconds",
				Buckets:   buckets,
			},
			[]string{"task"},
		),
		taskReverts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_reverts_total",
				Help:      "Total number of task reverts",
			},
			[]string{"task", "cause"},
		),

		// Driver metrics
		driverCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "driver_calls_total",
				Help:      "Total number of amphora driver calls",
			},
			[]string{"driver", "operation"},
		),
		driverDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "driver_call_duration_seconds",
				Help:      "Duration of amphora driver calls in seconds",
				Buckets:   buckets,
			},
			[]string{"driver", "operation"},
		),
		driverErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "driver_errors_total",
				Help:      "Total number of amphora driver errors by class",
			},
			[]string{"driver", "operation", "class"},
		),

		// Entity metrics
		entitiesMarkedError: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_marked_error_total",
				Help:      "Total number of entities transitioned to ERROR",
			},
			[]string{"entity"},
		),

		// Retry metrics
		retryDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_decisions_total",
				Help:      "Total number of flow retry decisions",
			},
			[]string{"decision"},
		),

		// Connectivity metrics
		connectivityWaitSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "connectivity_wait_seconds",
				Help:      "Time spent waiting for amphora connectivity",
				Buckets:   buckets,
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.taskExecutions,
		m.taskDuration,
		m.taskReverts,
		m.driverCalls,
		m.driverDuration,
		m.driverErrors,
		m.entitiesMarkedError,
		m.retryDecisions,
		m.connectivityWaitSeconds,
	)

	return m, nil
}

// Task Metrics

// RecordTaskExecution records a task execution with its result and duration.
func (m *Metrics) RecordTaskExecution(task, result string, duration time.Duration) {
	if m.taskExecutions == nil {
		return
	}
	m.taskExecutions.WithLabelValues(task, result).Inc()
	m.taskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordTaskRevert records a task revert and what triggered it.
func (m *Metrics) RecordTaskRevert(task, cause string) {
	if m.taskReverts == nil {
		return
	}
	m.taskReverts.WithLabelValues(task, cause).Inc()
}

// Driver Metrics

// RecordDriverCall records a driver call with its duration.
func (m *Metrics) RecordDriverCall(driver, operation string, duration time.Duration) {
	if m.driverCalls == nil {
		return
	}
	m.driverCalls.WithLabelValues(driver, operation).Inc()
	m.driverDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
}

// RecordDriverError records a driver error by classification.
func (m *Metrics) RecordDriverError(driver, operation, class string) {
	if m.driverErrors == nil {
		return
	}
	m.driverErrors.WithLabelValues(driver, operation, class).Inc()
}

// Entity Metrics

// RecordEntityMarkedError records an entity transitioning to ERROR.
func (m *Metrics) RecordEntityMarkedError(entity string) {
	if m.entitiesMarkedError == nil {
		return
	}
	m.entitiesMarkedError.WithLabelValues(entity).Inc()
}

// Retry Metrics

// RecordRetryDecision records a flow retry decision (retry, revert_all).
func (m *Metrics) RecordRetryDecision(decision string) {
	if m.retryDecisions == nil {
		return
	}
	m.retryDecisions.WithLabelValues(decision).Inc()
}

// Connectivity Metrics

// RecordConnectivityWait records how long an amphora took to become reachable.
func (m *Metrics) RecordConnectivityWait(duration time.Duration) {
	if m.connectivityWaitSeconds == nil {
		return
	}
	m.connectivityWaitSeconds.Observe(duration.Seconds())
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

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
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

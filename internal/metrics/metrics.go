// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package metrics exposes Prometheus instrumentation for history imports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Import jobs
	ImportJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_import_jobs_total",
			Help: "Import jobs reaching a terminal state",
		},
		[]string{"server_type", "status"},
	)

	ImportJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "history_import_jobs_active",
			Help: "Import jobs currently running",
		},
	)

	ImportJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "history_import_job_duration_seconds",
			Help:    "Wall time of import jobs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"server_type"},
	)

	// Sessions
	ImportSessionsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_import_sessions_fetched_total",
			Help: "History entries fetched from upstream servers",
		},
		[]string{"server_type"},
	)

	ImportSessionsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_import_sessions_stored_total",
			Help: "Normalized sessions inserted (duplicates excluded)",
		},
		[]string{"server_type"},
	)

	ImportSessionsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_import_sessions_skipped_total",
			Help: "History entries skipped during normalization",
		},
		[]string{"server_type", "reason"},
	)

	ImportPersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_import_persist_errors_total",
			Help: "Session store write failures",
		},
		[]string{"server_type"},
	)

	// Database
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// Upstream HTTP
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_upstream_requests_total",
			Help: "HTTP requests to media servers",
		},
		[]string{"server_type", "status"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_api_requests_total",
			Help: "API requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "history_api_request_duration_seconds",
			Help:    "API request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "history_api_active_requests",
			Help: "API requests currently being served",
		},
	)

	// Job store
	JobStoreFailedPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_job_store_failed_purged_total",
			Help: "Failed job records removed by the retention sweep",
		},
	)
)

// RecordJobFinished records a terminal job state and its duration.
func RecordJobFinished(serverType, status string, duration time.Duration) {
	ImportJobsTotal.WithLabelValues(serverType, status).Inc()
	ImportJobDuration.WithLabelValues(serverType).Observe(duration.Seconds())
}

// RecordAPIRequest records one served API request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordUpstreamRequest buckets status codes as 2xx, 4xx, 5xx or error.
func RecordUpstreamRequest(serverType string, statusCode int, err error) {
	UpstreamRequests.WithLabelValues(serverType, statusClass(statusCode, err)).Inc()
}

func statusClass(statusCode int, err error) string {
	switch {
	case err != nil:
		return "error"
	case statusCode >= 500:
		return "5xx"
	case statusCode >= 400:
		return "4xx"
	case statusCode >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

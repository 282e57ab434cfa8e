// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

// Package metrics provides Prometheus instrumentation for the ingest
// pipeline, DuckDB persistence, and the live feed fan-out.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics

	IngestRecordsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bantay_ingest_records_accepted_total",
			Help: "Total webhook records accepted after normalization",
		},
		[]string{"kind"}, // "position", "event"
	)

	IngestRecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bantay_ingest_records_skipped_total",
			Help: "Total webhook records skipped during normalization",
		},
		[]string{"kind", "reason"}, // reason: "no_device", "unknown_device", "bad_shape"
	)

	IngestBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bantay_ingest_batch_size",
			Help:    "Number of records per webhook batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"kind"},
	)

	// Database metrics

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bantay_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bantay_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	DBBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bantay_duckdb_breaker_state",
			Help: "Circuit breaker state for store writes (0=closed, 1=half-open, 2=open)",
		},
	)

	// Feed metrics

	FeedSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bantay_feed_sessions_active",
			Help: "Current number of connected feed sessions",
		},
	)

	FeedSessionsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bantay_feed_sessions_dropped_total",
			Help: "Total feed sessions dropped for slow consumption",
		},
	)

	FeedMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bantay_feed_messages_sent_total",
			Help: "Total feed messages enqueued to sessions",
		},
		[]string{"type"}, // "snapshot", "batch"
	)

	FeedBroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bantay_feed_broadcast_duration_seconds",
			Help:    "Time to filter and enqueue one batch across all sessions",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	// HTTP metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bantay_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bantay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveDBQuery records a database query duration and any error.
func ObserveDBQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(method, path string, status int, start time.Time) {
	code := strconv.Itoa(status)
	HTTPRequestDuration.WithLabelValues(method, path, code).Observe(time.Since(start).Seconds())
	HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
}

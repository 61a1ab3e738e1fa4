// Package metrics holds the server's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method, and route pattern.
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cineshelf_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	// RequestDuration measures HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cineshelf_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)

	// RequestInProgress counts HTTP requests currently being processed.
	RequestInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cineshelf_http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method"},
	)

	// RateLimiterRejections counts requests rejected by the per-IP limiter.
	RateLimiterRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cineshelf_rate_limiter_rejections_total",
			Help: "Total number of requests rejected by rate limiter",
		},
	)

	// SnapshotOperations counts snapshot repository operations by outcome.
	SnapshotOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cineshelf_snapshot_operations_total",
			Help: "Snapshot puts and gets by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// SnapshotBytes observes the size of stored snapshots.
	SnapshotBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cineshelf_snapshot_bytes",
			Help:    "Size of received snapshot documents in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	// DatabaseOperationDuration measures database operation duration.
	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cineshelf_db_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)
)

// Snapshot outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// RecordDBOperation records the duration of a database operation.
func RecordDBOperation(operation, table string, startTime time.Time) {
	DatabaseOperationDuration.WithLabelValues(operation, table).Observe(time.Since(startTime).Seconds())
}

// RecordSnapshot counts one snapshot operation.
func RecordSnapshot(operation, outcome string) {
	SnapshotOperations.WithLabelValues(operation, outcome).Inc()
}

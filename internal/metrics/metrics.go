// Package metrics defines Prometheus metrics for gcstore client operations.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// Client operation metrics (RED: Rate, Errors, Duration).
var (
	// OperationsTotal counts API requests by operation and HTTP status.
	// Requests that never produced a response are labeled status "0".
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcstore_operations_total",
			Help: "GCS API requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	// OperationDuration observes request latency in seconds by operation.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gcstore_operation_duration_seconds",
			Help:    "GCS API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// BytesUploadedTotal counts object payload bytes sent.
	BytesUploadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gcstore_bytes_uploaded_total",
			Help: "Total object bytes uploaded",
		},
	)

	// BytesDownloadedTotal counts object payload bytes received.
	BytesDownloadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gcstore_bytes_downloaded_total",
			Help: "Total object bytes downloaded",
		},
	)
)

// Register registers all collectors with the default registry. It must be
// called explicitly (typically from main) so registration can be made
// conditional on configuration. Safe to call multiple times; subsequent calls
// are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OperationsTotal,
			OperationDuration,
			BytesUploadedTotal,
			BytesDownloadedTotal,
		)
	})
}

// ClientRecorder adapts the collectors above to the gcstore.Recorder
// interface. The zero value is ready to use.
type ClientRecorder struct{}

// Observe records one completed API request.
func (ClientRecorder) Observe(op string, status int, elapsed time.Duration) {
	OperationsTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
	OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// AddBytes records object payload bytes moved.
func (ClientRecorder) AddBytes(uploaded, downloaded int64) {
	if uploaded > 0 {
		BytesUploadedTotal.Add(float64(uploaded))
	}
	if downloaded > 0 {
		BytesDownloadedTotal.Add(float64(downloaded))
	}
}

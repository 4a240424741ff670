// Package metrics provides Prometheus metrics for the sync engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the sync engine.
type Metrics struct {
	// Transfer session metrics
	TransfersStarted   *prometheus.CounterVec
	TransfersCompleted *prometheus.CounterVec
	TransfersFailed    *prometheus.CounterVec
	TransfersAborted   *prometheus.CounterVec

	// Part metrics
	PartsCompleted *prometheus.CounterVec
	PartDuration   *prometheus.HistogramVec
	PartBytes      *prometheus.HistogramVec
	InFlightParts  prometheus.Gauge

	// Volume metrics
	BytesTransferred *prometheus.CounterVec

	// Retry metrics
	RetryAttempts *prometheus.CounterVec

	// Dataset metrics
	SamplesSynced      *prometheus.CounterVec
	AnnotationsEncoded prometheus.Counter
	AnnotationsDecoded prometheus.Counter
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "datasync"
	}

	m := &Metrics{
		TransfersStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_started_total",
				Help:      "Total number of transfer sessions started",
			},
			[]string{"direction"},
		),
		TransfersCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_completed_total",
				Help:      "Total number of transfer sessions completed",
			},
			[]string{"direction"},
		),
		TransfersFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_failed_total",
				Help:      "Total number of transfer sessions that failed",
			},
			[]string{"direction"},
		),
		TransfersAborted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_aborted_total",
				Help:      "Total number of multipart uploads aborted",
			},
			[]string{"direction"},
		),
		PartsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parts_completed_total",
				Help:      "Total number of parts transferred",
			},
			[]string{"direction"},
		),
		PartDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "part_duration_seconds",
				Help:      "Time to transfer a single part",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~160s
			},
			[]string{"direction"},
		),
		PartBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "part_bytes",
				Help:      "Size of transferred parts in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 14), // 1KB to ~256GB
			},
			[]string{"direction"},
		),
		InFlightParts: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "in_flight_parts",
				Help:      "Number of parts currently being transferred",
			},
		),
		BytesTransferred: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_transferred_total",
				Help:      "Total number of payload bytes moved",
			},
			[]string{"direction"},
		),
		RetryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"scope"},
		),
		SamplesSynced: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_synced_total",
				Help:      "Total number of dataset samples synchronized",
			},
			[]string{"direction"},
		),
		AnnotationsEncoded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "annotations_encoded_total",
				Help:      "Total number of annotations encoded to columnar rows",
			},
		),
		AnnotationsDecoded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "annotations_decoded_total",
				Help:      "Total number of columnar rows decoded to annotations",
			},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// IncTransfersStarted increments the transfers started counter.
func (m *Metrics) IncTransfersStarted(direction string) {
	m.TransfersStarted.WithLabelValues(direction).Inc()
}

// IncTransfersCompleted increments the transfers completed counter.
func (m *Metrics) IncTransfersCompleted(direction string) {
	m.TransfersCompleted.WithLabelValues(direction).Inc()
}

// IncTransfersFailed increments the transfers failed counter.
func (m *Metrics) IncTransfersFailed(direction string) {
	m.TransfersFailed.WithLabelValues(direction).Inc()
}

// IncTransfersAborted increments the transfers aborted counter.
func (m *Metrics) IncTransfersAborted(direction string) {
	m.TransfersAborted.WithLabelValues(direction).Inc()
}

// IncPartsCompleted increments the parts completed counter.
func (m *Metrics) IncPartsCompleted(direction string) {
	m.PartsCompleted.WithLabelValues(direction).Inc()
}

// ObservePartDuration records the time spent on a single part.
func (m *Metrics) ObservePartDuration(direction string, seconds float64) {
	m.PartDuration.WithLabelValues(direction).Observe(seconds)
}

// ObservePartBytes records the size of a transferred part.
func (m *Metrics) ObservePartBytes(direction string, bytes float64) {
	m.PartBytes.WithLabelValues(direction).Observe(bytes)
}

// SetInFlightParts sets the number of in-flight parts.
func (m *Metrics) SetInFlightParts(count float64) {
	m.InFlightParts.Set(count)
}

// AddBytesTransferred adds to the bytes transferred counter.
func (m *Metrics) AddBytesTransferred(direction string, bytes float64) {
	m.BytesTransferred.WithLabelValues(direction).Add(bytes)
}

// IncRetryAttempts increments the retry attempts counter.
func (m *Metrics) IncRetryAttempts(scope string) {
	m.RetryAttempts.WithLabelValues(scope).Inc()
}

// AddSamplesSynced adds to the samples synced counter.
func (m *Metrics) AddSamplesSynced(direction string, count float64) {
	m.SamplesSynced.WithLabelValues(direction).Add(count)
}

// Package metrics provides Prometheus metrics for the loader.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ginjaninja78/facturas-loader/internal/types"
)

// Status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

var (
	// Parsing metrics
	FacturasParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facturas_parsed_total",
			Help: "Total number of invoice chunks parsed, by outcome",
		},
		[]string{"status"},
	)

	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facturas_parse_errors_total",
			Help: "Total number of parse errors by kind",
		},
		[]string{"kind"},
	)

	// Validation metrics
	ValidationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facturas_validation_errors_total",
			Help: "Total number of validation errors by kind",
		},
		[]string{"kind"},
	)

	// File metrics
	FilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facturas_files_processed_total",
			Help: "Total number of ticket files processed, by outcome",
		},
		[]string{"status"},
	)

	FileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "facturas_file_processing_seconds",
			Help:    "Time taken to load one ticket file",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facturas_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "facturas_http_request_duration_seconds",
			Help:    "Request latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordTicket counts the parse outcome of every slot in t.
func RecordTicket(t types.Ticket) {
	for _, slot := range t.Facturas {
		if slot.OK() {
			FacturasParsed.WithLabelValues(StatusOK).Inc()
			continue
		}
		FacturasParsed.WithLabelValues(StatusFailed).Inc()
		ParseErrors.WithLabelValues(slot.Err.Kind.String()).Inc()
	}
}

// RecordValidation counts validation errors by kind.
func RecordValidation(errs []*types.ValidationError) {
	for _, err := range errs {
		ValidationErrors.WithLabelValues(err.Kind.String()).Inc()
	}
}

// RecordFile records the outcome and duration of one file load.
func RecordFile(success bool, duration time.Duration) {
	status := StatusOK
	if !success {
		status = StatusFailed
	}
	FilesProcessed.WithLabelValues(status).Inc()
	FileDuration.Observe(duration.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

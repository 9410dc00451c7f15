// Package metrics provides Prometheus metrics for the HTTP server and
// the invoice pipeline. All metrics are registered with the default
// registry during package initialization and exposed on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (clients seen recently)",
		},
	)

	InvoicesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoices_processed_total",
			Help: "Invoices processed, by final status",
		},
		[]string{"status"},
	)

	InvoiceLinesClassifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_lines_classified_total",
			Help: "Invoice lines normalized, by outcome kind",
		},
		[]string{"kind"},
	)

	InvoiceLineErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invoice_line_errors_total",
			Help: "Invoice lines skipped during processing",
		},
	)

	InvoiceProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "invoice_processing_duration_seconds",
			Help:    "End-to-end invoice processing latency (OCR + LLM + core)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(InvoicesProcessedTotal)
	prometheus.MustRegister(InvoiceLinesClassifiedTotal)
	prometheus.MustRegister(InvoiceLineErrorsTotal)
	prometheus.MustRegister(InvoiceProcessingDuration)
}

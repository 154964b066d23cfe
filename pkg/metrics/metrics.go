// Package metrics defines the Prometheus collectors used by the LawSpark
// service and exposes a scrape handler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing,
// which keeps services usable from the CLI and from tests.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	EmbeddedChunksTotal *prometheus.CounterVec
	EmbeddingJobsTotal  *prometheus.CounterVec
	SearchLatency       prometheus.Histogram
	SearchResultsCount  prometheus.Histogram
	RemoteErrorsTotal   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawspark_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lawspark_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		EmbeddedChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawspark_embedded_chunks_total",
				Help: "Chunks processed by the embedding writer, by outcome (stored, failed).",
			},
			[]string{"status"},
		),
		EmbeddingJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawspark_embedding_jobs_total",
				Help: "Embedding jobs by final status.",
			},
			[]string{"status"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lawspark_search_latency_seconds",
				Help:    "Similarity search latency (embed + match) in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lawspark_search_results_count",
				Help:    "Number of chunks returned per similarity search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50},
			},
		),
		RemoteErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawspark_remote_errors_total",
				Help: "Failed calls to remote services by service and status code.",
			},
			[]string{"service", "status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EmbeddedChunksTotal,
		m.EmbeddingJobsTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.RemoteErrorsTotal,
	)

	return m
}

func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) ChunksEmbedded(stored, failed int) {
	if m == nil {
		return
	}
	m.EmbeddedChunksTotal.WithLabelValues("stored").Add(float64(stored))
	m.EmbeddedChunksTotal.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.EmbeddingJobsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSearch(d time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchLatency.Observe(d.Seconds())
	m.SearchResultsCount.Observe(float64(results))
}

// RemoteError counts a failed remote call. statusCode 0 means transport failure.
func (m *Metrics) RemoteError(service string, statusCode int) {
	if m == nil {
		return
	}
	m.RemoteErrorsTotal.WithLabelValues(service, strconv.Itoa(statusCode)).Inc()
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

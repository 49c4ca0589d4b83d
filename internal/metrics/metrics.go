// Package metrics exposes Prometheus collectors for the crawl and rank pipelines.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      prometheus.Histogram
	activeWorkers              prometheus.Gauge
	rankRunsTotal              *prometheus.CounterVec
	rankIterations             prometheus.Gauge
	graphNodes                 prometheus.Gauge
	graphEdges                 prometheus.Gauge
	graphLinksDroppedTotal     prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linkrank_rate_limit_delay_seconds",
				Help:    "Histogram of per-worker request spacing waits.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "linkrank_active_workers",
				Help: "Number of fetch workers currently draining the queue.",
			},
		)

		rankRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkrank_rank_runs_total",
				Help: "Total PageRank runs, labeled by termination reason.",
			},
			[]string{"termination"},
		)

		rankIterations = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "linkrank_rank_iterations",
				Help: "Iterations used by the most recent PageRank run.",
			},
		)

		graphNodes = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "linkrank_graph_nodes",
				Help: "Node count of the most recently built link graph.",
			},
		)

		graphEdges = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "linkrank_graph_edges",
				Help: "Edge count (with multiplicity) of the most recently built link graph.",
			},
		)

		graphLinksDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "linkrank_graph_links_dropped_total",
				Help: "Extracted links that did not resolve to a corpus document.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a request spacing wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	rateLimitDelaySeconds.Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveGraph records the shape of a freshly built link graph.
func ObserveGraph(nodes, edges, dropped int) {
	Init()
	graphNodes.Set(float64(nodes))
	graphEdges.Set(float64(edges))
	graphLinksDroppedTotal.Add(float64(dropped))
}

// ObserveRank records a finished PageRank run.
func ObserveRank(termination string, iterations int) {
	Init()
	rankRunsTotal.WithLabelValues(termination).Inc()
	rankIterations.Set(float64(iterations))
}

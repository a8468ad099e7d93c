// Package metrics exposes Prometheus collectors for the crawl planner.
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
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchDurationSeconds       prometheus.Histogram
	fetchRetryWaitSeconds      prometheus.Histogram
	bucketsTotal               *prometheus.CounterVec
	urlsDiscoveredTotal        prometheus.Counter
	urlsAllowedTotal           prometheus.Counter
	pagesClassifiedTotal       *prometheus.CounterVec
	cacheLookupsTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_fetch_attempts_total",
				Help: "Total number of fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "planner_fetch_duration_seconds",
				Help:    "Histogram of successful fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		fetchRetryWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "planner_fetch_retry_wait_seconds",
				Help:    "Histogram of backoff waits preceding retry attempts.",
				Buckets: []float64{1, 2, 4, 8, 10},
			},
		)

		bucketsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_sitemap_buckets_total",
				Help: "Total number of sitemap shards resolved, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		urlsDiscoveredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "planner_urls_discovered_total",
				Help: "Total number of URLs discovered in sitemap shards.",
			},
		)

		urlsAllowedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "planner_urls_allowed_total",
				Help: "Total number of discovered URLs permitted by robots policy.",
			},
		)

		pagesClassifiedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_pages_classified_total",
				Help: "Total number of pages classified, labeled by render mode.",
			},
			[]string{"mode"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_cache_lookups_total",
				Help: "Total number of range cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

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
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt counts one fetch attempt and, on success, records its
// duration.
func ObserveFetchAttempt(outcome string, duration time.Duration) {
	fetchAttemptsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		fetchDurationSeconds.Observe(duration.Seconds())
	}
}

// ObserveRetryWait records the backoff wait preceding a retry attempt.
func ObserveRetryWait(wait time.Duration) {
	fetchRetryWaitSeconds.Observe(wait.Seconds())
}

// ObserveBucket counts one resolved sitemap shard by outcome.
func ObserveBucket(outcome string) {
	bucketsTotal.WithLabelValues(outcome).Inc()
}

// AddDiscovered adds to the discovered URL counter.
func AddDiscovered(n int) {
	if n > 0 {
		urlsDiscoveredTotal.Add(float64(n))
	}
}

// AddAllowed adds to the robots-allowed URL counter.
func AddAllowed(n int) {
	if n > 0 {
		urlsAllowedTotal.Add(float64(n))
	}
}

// ObserveClassification counts one classified page by render mode.
func ObserveClassification(mode string) {
	pagesClassifiedTotal.WithLabelValues(mode).Inc()
}

// ObserveCacheLookup counts one range cache lookup by result.
func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

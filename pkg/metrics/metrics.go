// Package metrics defines the Prometheus collectors used by the search,
// indexer and ingestion services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchCandidates     prometheus.Histogram
	SearchResultsCount   prometheus.Histogram
	CacheLookupsTotal    *prometheus.CounterVec
	ResultSavesTotal     *prometheus.CounterVec
	IndexBuildsTotal     *prometheus.CounterVec
	IndexBuildDuration   prometheus.Histogram
	IndexDocuments       prometheus.Gauge
	IndexReloadsTotal    *prometheus.CounterVec
	DocsIngestedTotal    *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
	RateLimitedTotal     prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() for both arguments.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by mode and outcome (hit, zero_result).",
			},
			[]string{"mode", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Engine search latency in seconds by mode.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"mode"},
		),
		SearchCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_candidates_count",
				Help:    "Number of retrieved candidates per search.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_cache_lookups_total",
				Help: "Search cache lookups by status (hit, miss).",
			},
			[]string{"status"},
		),
		ResultSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_result_saves_total",
				Help: "Saved result files by outcome (written, failed, dropped).",
			},
			[]string{"outcome"},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_builds_total",
				Help: "Index builds by status.",
			},
			[]string{"status"},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_build_duration_seconds",
				Help:    "Index build duration in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Documents in the most recent build or loaded snapshot.",
			},
		),
		IndexReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_reloads_total",
				Help: "Searcher index reloads by status.",
			},
			[]string{"status"},
		),
		DocsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_ingested_total",
				Help: "Documents accepted by the ingestion service by operation (insert, update).",
			},
			[]string{"operation"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the rate limiter.",
			},
		),
		gatherer: gatherer,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchCandidates,
		m.SearchResultsCount,
		m.CacheLookupsTotal,
		m.ResultSavesTotal,
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.IndexDocuments,
		m.IndexReloadsTotal,
		m.DocsIngestedTotal,
		m.CircuitBreakerState,
		m.RateLimitedTotal,
	)

	return m
}

// ObserveSearch records one engine search.
func (m *Metrics) ObserveSearch(mode string, duration time.Duration, candidates, returned int) {
	outcome := "hit"
	if returned == 0 {
		outcome = "zero_result"
	}
	m.SearchQueriesTotal.WithLabelValues(mode, outcome).Inc()
	m.SearchLatency.WithLabelValues(mode).Observe(duration.Seconds())
	m.SearchCandidates.Observe(float64(candidates))
	m.SearchResultsCount.Observe(float64(returned))
}

// ObserveBuild records one index build.
func (m *Metrics) ObserveBuild(duration time.Duration, documents int, err error) {
	if err != nil {
		m.IndexBuildsTotal.WithLabelValues("error").Inc()
		return
	}
	m.IndexBuildsTotal.WithLabelValues("success").Inc()
	m.IndexBuildDuration.Observe(duration.Seconds())
	m.IndexDocuments.Set(float64(documents))
}

// ObserveSave records a result save outcome.
func (m *Metrics) ObserveSave(outcome string) {
	m.ResultSavesTotal.WithLabelValues(outcome).Inc()
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(status).Inc()
}

// ObserveReload records a searcher index reload.
func (m *Metrics) ObserveReload(documents int, err error) {
	if err != nil {
		m.IndexReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.IndexReloadsTotal.WithLabelValues("success").Inc()
	m.IndexDocuments.Set(float64(documents))
}

// ObserveIngest counts a stored document.
func (m *Metrics) ObserveIngest(operation string) {
	m.DocsIngestedTotal.WithLabelValues(operation).Inc()
}

// ObserveBreaker exports a circuit breaker's state.
func (m *Metrics) ObserveBreaker(cb *resilience.CircuitBreaker) {
	m.CircuitBreakerState.WithLabelValues(cb.Name()).Set(float64(cb.State()))
}

// ObserveBreakerTransition is a CircuitBreaker.OnChange hook.
func (m *Metrics) ObserveBreakerTransition(t resilience.Transition) {
	m.CircuitBreakerState.WithLabelValues(t.Name).Set(float64(t.To))
}

// Handler returns the scrape handler for the registry these metrics were
// registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Handler returns the Prometheus scrape HTTP handler for the default
// registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

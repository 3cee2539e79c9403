// Package monitoring provides Prometheus metrics and structured logging for
// the reputation engine.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors, registered on a private
// registry so the exposition contains only what we emit.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	scoringLatency  prometheus.Histogram
	anomalyRuns     prometheus.Counter
	anomaliesFound  prometheus.Counter
	eventsIngested  prometheus.Counter
	eventsDuplicate prometheus.Counter

	upstreamCalls  *prometheus.CounterVec
	mergeDegraded  prometheus.Counter
	mergeCompleted prometheus.Counter

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	rateLimitBlocked     *prometheus.CounterVec
	rateLimitFallback    prometheus.Counter
	rateLimitRedisErrors prometheus.Counter
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	const namespace = "dotrep"

	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path, and status.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		scoringLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_duration_seconds",
			Help:      "Time spent computing a reputation score.",
			Buckets:   prometheus.DefBuckets,
		}),
		anomalyRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomaly_runs_total",
			Help:      "Anomaly detection runs.",
		}),
		anomaliesFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_flagged_total",
			Help:      "Actor-weeks flagged as anomalous.",
		}),
		eventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Contribution events stored.",
		}),
		eventsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_duplicate_total",
			Help:      "Contribution events ignored as duplicates.",
		}),
		upstreamCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Upstream source calls by source and outcome.",
		}, []string{"source", "outcome"}),
		mergeDegraded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_degraded_total",
			Help:      "Multi-chain merges completed with one source missing.",
		}),
		mergeCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_completed_total",
			Help:      "Multi-chain merges completed.",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Response cache hits.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Response cache misses.",
		}),
		rateLimitBlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_blocked_total",
			Help:      "Requests rejected by the rate limiter, by scope.",
		}, []string{"scope"}),
		rateLimitFallback: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_fallback_total",
			Help:      "Rate limit checks served by the in-memory fallback.",
		}),
		rateLimitRedisErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_redis_errors_total",
			Help:      "Redis errors during rate limit checks.",
		}),
	}
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTPRequest(method, path, status string, seconds float64) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

func (m *Metrics) ObserveScoring(seconds float64) { m.scoringLatency.Observe(seconds) }

func (m *Metrics) IncrementAnomalyRun(flagged int) {
	m.anomalyRuns.Inc()
	m.anomaliesFound.Add(float64(flagged))
}

func (m *Metrics) AddEventsIngested(stored, duplicates int) {
	m.eventsIngested.Add(float64(stored))
	m.eventsDuplicate.Add(float64(duplicates))
}

func (m *Metrics) IncrementUpstreamCall(source string, success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.upstreamCalls.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) IncrementMerge(degraded bool) {
	m.mergeCompleted.Inc()
	if degraded {
		m.mergeDegraded.Inc()
	}
}

func (m *Metrics) IncrementCacheHit()  { m.cacheHits.Inc() }
func (m *Metrics) IncrementCacheMiss() { m.cacheMisses.Inc() }

func (m *Metrics) IncrementRateLimitBlocked(scope string) {
	m.rateLimitBlocked.WithLabelValues(scope).Inc()
}

func (m *Metrics) IncrementRateLimitFallback()   { m.rateLimitFallback.Inc() }
func (m *Metrics) IncrementRateLimitRedisError() { m.rateLimitRedisErrors.Inc() }

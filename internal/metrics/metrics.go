// Package metrics exposes Prometheus counters for cache, transport and
// fetch activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters on a dedicated registry. It satisfies the
// cache, transport, service and warmer observer interfaces.
type Metrics struct {
	registry      *prometheus.Registry
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	cacheShared   prometheus.Counter
	retries       prometheus.Counter
	fetchFailures *prometheus.CounterVec
	warmCycles    prometheus.Counter
}

// New creates the counters and registers them.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weather_cache_hits_total",
			Help: "Total cache hits observed.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weather_cache_misses_total",
			Help: "Total cache misses that reached the provider.",
		}),
		cacheShared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weather_cache_collapsed_total",
			Help: "Total callers that shared another caller's in-flight fetch.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weather_transport_retries_total",
			Help: "Total provider request retries.",
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_fetch_failures_total",
			Help: "Total contained per-location fetch failures by component.",
		}, []string{"component"}),
		warmCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weather_warm_cycles_total",
			Help: "Total completed cache warm cycles.",
		}),
	}

	m.registry.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.cacheShared,
		m.retries,
		m.fetchFailures,
		m.warmCycles,
	)
	return m
}

func (m *Metrics) CacheHit()       { m.cacheHits.Inc() }
func (m *Metrics) CacheMiss()      { m.cacheMisses.Inc() }
func (m *Metrics) CacheCollapsed() { m.cacheShared.Inc() }
func (m *Metrics) TransportRetry() { m.retries.Inc() }
func (m *Metrics) WarmCycle()      { m.warmCycles.Inc() }

func (m *Metrics) FetchFailed(component string) {
	m.fetchFailures.WithLabelValues(component).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the scraper service. A nil
// *Metrics is valid and records nothing, so callers never need to guard.
type Metrics struct {
	providerSearchDuration *prometheus.HistogramVec
	providerResults        *prometheus.CounterVec
	providerTimeouts       *prometheus.CounterVec
	dedupDrops             prometheus.Counter
	cacheHits              prometheus.Counter
	cacheMisses            prometheus.Counter
}

// NewMetrics creates and registers the service metrics on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		providerSearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "giftfinder_provider_search_duration_seconds",
				Help:    "Duration of provider search calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		providerResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "giftfinder_provider_results_total",
				Help: "Total products returned per provider",
			},
			[]string{"provider"},
		),
		providerTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "giftfinder_provider_timeouts_total",
				Help: "Total provider calls cut off by the hard timeout",
			},
			[]string{"provider"},
		),
		dedupDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "giftfinder_dedup_dropped_total",
				Help: "Total products dropped as duplicates during aggregation",
			},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "giftfinder_scrape_cache_hits_total",
				Help: "Total scrape cache hits",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "giftfinder_scrape_cache_misses_total",
				Help: "Total scrape cache misses",
			},
		),
	}

	reg.MustRegister(
		m.providerSearchDuration,
		m.providerResults,
		m.providerTimeouts,
		m.dedupDrops,
		m.cacheHits,
		m.cacheMisses,
	)
	return m
}

// ObserveProviderSearch records one completed provider search.
func (m *Metrics) ObserveProviderSearch(provider string, elapsed time.Duration, products int) {
	if m == nil {
		return
	}
	m.providerSearchDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	m.providerResults.WithLabelValues(provider).Add(float64(products))
}

// IncProviderTimeout records a provider call cut off by the hard timeout.
func (m *Metrics) IncProviderTimeout(provider string) {
	if m == nil {
		return
	}
	m.providerTimeouts.WithLabelValues(provider).Inc()
}

// AddDedupDrops records products discarded as duplicates.
func (m *Metrics) AddDedupDrops(n int) {
	if m == nil {
		return
	}
	m.dedupDrops.Add(float64(n))
}

// IncCacheHit records a scrape cache hit.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// IncCacheMiss records a scrape cache miss.
func (m *Metrics) IncCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

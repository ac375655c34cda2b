package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "suptia"

// Metrics exposes Prometheus collectors for recommendation and tier
// activity.
type Metrics struct {
	recommendDuration prometheus.Histogram
	productsScored    prometheus.Counter
	tierBatchDuration prometheus.Histogram
	tierCacheHits     prometheus.Counter
	tierCacheMisses   prometheus.Counter
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global registry. The
// collectors are created once so repeated servers in tests do not panic on
// duplicate registration.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew registers the collectors on reg and panics on any error other
// than an identical collector already being registered.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		recommendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommend_duration_seconds",
			Help:      "Time spent scoring and ranking one recommendation request.",
			Buckets:   prometheus.DefBuckets,
		}),
		productsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_scored_total",
			Help:      "Products scored across all recommendation requests.",
		}),
		tierBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tier_batch_duration_seconds",
			Help:      "Time spent rating the whole catalog.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		tierCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_cache_hits_total",
			Help:      "Tier reads served from the batch cache.",
		}),
		tierCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_cache_misses_total",
			Help:      "Tier reads that recomputed the catalog batch.",
		}),
	}
	m.recommendDuration = register(reg, m.recommendDuration).(prometheus.Histogram)
	m.productsScored = register(reg, m.productsScored).(prometheus.Counter)
	m.tierBatchDuration = register(reg, m.tierBatchDuration).(prometheus.Histogram)
	m.tierCacheHits = register(reg, m.tierCacheHits).(prometheus.Counter)
	m.tierCacheMisses = register(reg, m.tierCacheMisses).(prometheus.Counter)
	return m
}

func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector
		}
		panic(err)
	}
	return c
}

// ObserveRecommend records one recommendation request.
func (m *Metrics) ObserveRecommend(seconds float64, scored int) {
	if m == nil {
		return
	}
	m.recommendDuration.Observe(seconds)
	m.productsScored.Add(float64(scored))
}

// ObserveTierBatch records one catalog-wide tier computation.
func (m *Metrics) ObserveTierBatch(seconds float64) {
	if m == nil {
		return
	}
	m.tierBatchDuration.Observe(seconds)
}

// ObserveTierCache counts a cache lookup.
func (m *Metrics) ObserveTierCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.tierCacheHits.Inc()
		return
	}
	m.tierCacheMisses.Inc()
}

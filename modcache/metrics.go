package modcache

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors the cache's counters to prometheus so the deploy
// pipeline can watch for cache thrash (rising evictions) and swap churn.
type Metrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Evictions prometheus.Counter
	HotSwaps  prometheus.Counter
}

// NewMetrics builds and registers the cache counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modrun_cache_hits_total",
			Help: "Number of module cache lookups that found an entry.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modrun_cache_misses_total",
			Help: "Number of module cache lookups that found nothing.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modrun_cache_evictions_total",
			Help: "Number of modules evicted from the cache.",
		}),
		HotSwaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modrun_cache_hot_swaps_total",
			Help: "Number of completed module hot-swaps.",
		}),
	}
	reg.MustRegister(m.Hits, m.Misses, m.Evictions, m.HotSwaps)
	return m
}

package metrics

import (
	"mercator-hq/storagerpc/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Lookup result label values.
const (
	LookupHit  = "hit"
	LookupMiss = "miss"
)

// CacheMetrics tracks the policy cache.
//
// Metrics:
//   - <ns>_<sub>_cache_entries: Current number of cached namespaces
//   - <ns>_<sub>_cache_lookups_total: Lookups by result (hit, miss)
type CacheMetrics struct {
	entries      prometheus.Gauge
	lookupsTotal *prometheus.CounterVec
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_entries",
				Help:      "Current number of namespaces in the policy cache",
			},
		),

		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_lookups_total",
				Help:      "Total number of policy cache lookups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(cm.entries, cm.lookupsTotal)

	return cm
}

// RecordLookup counts a hit or a miss.
func (cm *CacheMetrics) RecordLookup(hit bool) {
	result := LookupMiss
	if hit {
		result = LookupHit
	}
	cm.lookupsTotal.WithLabelValues(result).Inc()
}

// SetEntries sets the cached namespace count.
func (cm *CacheMetrics) SetEntries(n int) {
	cm.entries.Set(float64(n))
}

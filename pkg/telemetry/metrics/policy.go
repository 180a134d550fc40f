package metrics

import (
	"time"

	"mercator-hq/storagerpc/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics tracks policy file loads.
type PolicyMetrics struct {
	loadsTotal   *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
}

// NewPolicyMetrics creates and registers policy load metrics with the
// provided registry.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		loadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "loads_total",
				Help:      "Total number of policy load attempts by result",
			},
			[]string{"namespace", "result"},
		),

		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "load_duration_seconds",
				Help:      "Duration of policy loads in seconds",
				// Policy files are small; loads should finish well under 100ms.
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~200ms
			},
			[]string{"namespace"},
		),
	}

	registry.MustRegister(pm.loadsTotal, pm.loadDuration)

	return pm
}

// RecordLoad records a load attempt and its duration.
func (pm *PolicyMetrics) RecordLoad(namespace, result string, duration time.Duration) {
	pm.loadsTotal.WithLabelValues(namespace, result).Inc()
	pm.loadDuration.WithLabelValues(namespace).Observe(duration.Seconds())
}

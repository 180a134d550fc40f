package metrics

import (
	"time"

	"mercator-hq/storagerpc/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// SerializerMetrics tracks serialize and deserialize calls.
type SerializerMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewSerializerMetrics creates and registers serializer metrics with the
// provided registry.
func NewSerializerMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SerializerMetrics {
	sm := &SerializerMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "serializer_operations_total",
				Help:      "Total number of serializer operations by op and result",
			},
			[]string{"op", "result"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "serializer_operation_duration_seconds",
				Help:      "Duration of serializer operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
			[]string{"op"},
		),
	}

	registry.MustRegister(sm.operationsTotal, sm.operationDuration)

	return sm
}

// RecordOperation records one operation.
func (sm *SerializerMetrics) RecordOperation(op, result string, duration time.Duration) {
	sm.operationsTotal.WithLabelValues(op, result).Inc()
	sm.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

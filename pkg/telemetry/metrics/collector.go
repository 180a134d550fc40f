package metrics

import (
	"sync"
	"time"

	"mercator-hq/storagerpc/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxNamespaces bounds the namespace label.
const DefaultMaxNamespaces = 1000

// overflowNamespace replaces namespaces past the cardinality limit.
const overflowNamespace = "other"

// Collector owns the Prometheus metrics for the policy cache, the policy
// loader and the serializer. It is safe for concurrent use.
//
// When the config has Enabled=false every Record method is a no-op, but the
// metrics are still registered so the handler serves an empty exposition.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	policyMetrics     *PolicyMetrics
	cacheMetrics      *CacheMetrics
	serializerMetrics *SerializerMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics with registry.
// If registry is nil a fresh registry is created. cfg is copied; empty
// namespace and subsystem fall back to the package defaults.
//
// Example:
//
//	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	var c config.MetricsConfig
	if cfg != nil {
		c = *cfg
	}
	if c.Namespace == "" {
		c.Namespace = config.DefaultMetricsNamespace
	}
	if c.Subsystem == "" {
		c.Subsystem = config.DefaultMetricsSubsystem
	}

	return &Collector{
		config:             c,
		registry:           registry,
		policyMetrics:      NewPolicyMetrics(&c, registry),
		cacheMetrics:       NewCacheMetrics(&c, registry),
		serializerMetrics:  NewSerializerMetrics(&c, registry),
		cardinalityLimiter: NewCardinalityLimiter(DefaultMaxNamespaces),
	}
}

// Enabled reports whether recording is active.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// RecordPolicyLoad records one load attempt for namespace. result is one of
// the manager.LoadResult* values.
func (c *Collector) RecordPolicyLoad(namespace, result string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	if !c.cardinalityLimiter.Allow(namespace) {
		namespace = overflowNamespace
	}

	c.policyMetrics.RecordLoad(namespace, result, duration)
}

// RecordPolicyLookup records a cache lookup that did or did not find a
// namespace-specific policy.
func (c *Collector) RecordPolicyLookup(hit bool) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordLookup(hit)
}

// SetPolicyCacheEntries updates the number of cached namespaces.
func (c *Collector) SetPolicyCacheEntries(n int) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.SetEntries(n)
}

// RecordSerializerOperation records one serialize or deserialize call.
func (c *Collector) RecordSerializerOperation(op, result string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.serializerMetrics.RecordOperation(op, result, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label. Values already seen
// are always allowed; new values are allowed until the limit is reached.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[value]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}

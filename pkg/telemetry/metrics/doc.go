// Package metrics provides Prometheus metrics for policy loading and
// serialization.
//
// # Metrics
//
// With the default namespace "storagerpc" and subsystem "policy":
//
//   - storagerpc_policy_loads_total{namespace,result}: policy load attempts
//   - storagerpc_policy_load_duration_seconds{namespace}: load latency
//   - storagerpc_policy_cache_entries: namespaces currently cached
//   - storagerpc_policy_cache_lookups_total{result}: hit/miss on lookup
//   - storagerpc_policy_serializer_operations_total{op,result}
//   - storagerpc_policy_serializer_operation_duration_seconds{op}
//
// # Usage
//
// A Collector satisfies both manager.Metrics and serializer.Metrics:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	cache := manager.NewPolicyCache(manager.WithCacheMetrics(collector))
//	s := serializer.New(cache, serializer.WithMetrics(collector))
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Cardinality
//
// The namespace label is bounded. Once the limit of distinct namespaces is
// reached, further namespaces are reported as "other".
package metrics

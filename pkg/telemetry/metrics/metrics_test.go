package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/storagerpc/pkg/config"
	"mercator-hq/storagerpc/pkg/policy/manager"
	"mercator-hq/storagerpc/pkg/rpc/policy"
	"mercator-hq/storagerpc/pkg/serializer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:   true,
		Namespace: "test",
		Subsystem: "policy",
	}
}

// Compile-time checks that the collector plugs into both consumers.
var (
	_ manager.Metrics    = (*Collector)(nil)
	_ serializer.Metrics = (*Collector)(nil)
)

func TestCollector_NewCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
	if !collector.Enabled() {
		t.Error("Enabled() = false")
	}
}

func TestCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	collector := NewCollector(cfg, nil)

	collector.SetPolicyCacheEntries(3)

	if cfg.Namespace != "" {
		t.Error("NewCollector mutated the caller's config")
	}
	if collector.Registry() == nil {
		t.Fatal("Registry() = nil")
	}

	expected := `
# HELP storagerpc_policy_cache_entries Current number of namespaces in the policy cache
# TYPE storagerpc_policy_cache_entries gauge
storagerpc_policy_cache_entries 3
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "storagerpc_policy_cache_entries"); err != nil {
		t.Error(err)
	}
}

func TestCollector_RecordPolicyLoad(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordPolicyLoad("app1", manager.LoadResultSuccess, 2*time.Millisecond)
	collector.RecordPolicyLoad("app1", manager.LoadResultSuccess, time.Millisecond)
	collector.RecordPolicyLoad("app2", manager.LoadResultMissing, time.Millisecond)

	loads := collector.policyMetrics.loadsTotal
	if got := testutil.ToFloat64(loads.WithLabelValues("app1", manager.LoadResultSuccess)); got != 2 {
		t.Errorf("app1 success loads = %v, want 2", got)
	}
	if got := testutil.ToFloat64(loads.WithLabelValues("app2", manager.LoadResultMissing)); got != 1 {
		t.Errorf("app2 missing loads = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(collector.policyMetrics.loadDuration); got != 2 {
		t.Errorf("load duration series = %d, want 2", got)
	}
}

func TestCollector_RecordPolicyLookup(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordPolicyLookup(true)
	collector.RecordPolicyLookup(false)
	collector.RecordPolicyLookup(false)

	lookups := collector.cacheMetrics.lookupsTotal
	if got := testutil.ToFloat64(lookups.WithLabelValues(LookupHit)); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(lookups.WithLabelValues(LookupMiss)); got != 2 {
		t.Errorf("misses = %v, want 2", got)
	}
}

func TestCollector_RecordSerializerOperation(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordSerializerOperation(serializer.OpSerialize, serializer.ResultSuccess, time.Microsecond)
	collector.RecordSerializerOperation(serializer.OpDeserialize, serializer.ResultError, time.Microsecond)

	ops := collector.serializerMetrics.operationsTotal
	if got := testutil.ToFloat64(ops.WithLabelValues(serializer.OpSerialize, serializer.ResultSuccess)); got != 1 {
		t.Errorf("serialize successes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues(serializer.OpDeserialize, serializer.ResultError)); got != 1 {
		t.Errorf("deserialize errors = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, nil)

	collector.RecordPolicyLoad("app1", manager.LoadResultSuccess, time.Millisecond)
	collector.RecordPolicyLookup(true)
	collector.SetPolicyCacheEntries(5)
	collector.RecordSerializerOperation(serializer.OpSerialize, serializer.ResultSuccess, time.Millisecond)

	if got := testutil.CollectAndCount(collector.policyMetrics.loadsTotal); got != 0 {
		t.Errorf("load series = %d, want 0", got)
	}
	if got := testutil.ToFloat64(collector.cacheMetrics.entries); got != 0 {
		t.Errorf("cache entries = %v, want 0", got)
	}
	if got := testutil.CollectAndCount(collector.serializerMetrics.operationsTotal); got != 0 {
		t.Errorf("serializer series = %d, want 0", got)
	}
}

func TestCollector_NamespaceCardinality(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.cardinalityLimiter = NewCardinalityLimiter(2)

	for i := 0; i < 5; i++ {
		collector.RecordPolicyLoad(fmt.Sprintf("ns%d", i), manager.LoadResultSuccess, time.Millisecond)
	}

	loads := collector.policyMetrics.loadsTotal
	if got := testutil.ToFloat64(loads.WithLabelValues(overflowNamespace, manager.LoadResultSuccess)); got != 3 {
		t.Errorf("overflow loads = %v, want 3", got)
	}
	if got := testutil.CollectAndCount(loads); got != 3 {
		t.Errorf("load series = %d, want 3", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("Allow() rejected a value under the limit")
	}
	if cl.Allow("c") {
		t.Error("Allow() accepted a value past the limit")
	}
	if !cl.Allow("a") {
		t.Error("Allow() rejected a known value")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}
}

func TestCollector_WiredIntoCacheAndSerializer(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	cache := manager.NewPolicyCache(manager.WithCacheMetrics(collector))

	p, err := policy.ParseBytes([]byte("string, true, true\n"))
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}
	cache.Put("app1", p, true)

	s := serializer.New(cache, serializer.WithMetrics(collector))
	if _, err := serializer.Serialize(s, "hello", "app1"); err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	if got := testutil.ToFloat64(collector.cacheMetrics.entries); got != 1 {
		t.Errorf("cache entries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.cacheMetrics.lookupsTotal.WithLabelValues(LookupHit)); got < 1 {
		t.Errorf("cache hits = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(collector.serializerMetrics.operationsTotal.WithLabelValues(serializer.OpSerialize, serializer.ResultSuccess)); got != 1 {
		t.Errorf("serialize successes = %v, want 1", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.RecordPolicyLoad("app1", manager.LoadResultSuccess, time.Millisecond)

	srv := httptest.NewServer(collector.NewServer("", "/metrics").Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !strings.Contains(string(body), "test_policy_loads_total") {
		t.Errorf("exposition missing test_policy_loads_total:\n%s", body)
	}
}

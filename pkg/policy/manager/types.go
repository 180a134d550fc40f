package manager

import (
	"context"
	"time"

	"mercator-hq/storagerpc/pkg/rpc/policy"
)

// PolicyManager coordinates loading, reloading and watching serialization
// policies for the configured modules.
type PolicyManager interface {
	// LoadPolicies loads every configured module. Missing or malformed
	// resources are logged and skipped.
	LoadPolicies()

	// LoadPoliciesStrict loads every configured module and reports all
	// failures together. Successfully loaded modules stay registered.
	LoadPoliciesStrict() error

	// ReloadPolicies reloads every configured module, keeping each
	// namespace's default status.
	ReloadPolicies() error

	// GetPolicy returns the policy registered for namespace.
	GetPolicy(namespace string) (policy.Policy, bool)

	// GetPolicyVersion returns the cache version.
	GetPolicyVersion() string

	// Watch reloads modules as their policy files change. It blocks until
	// ctx is cancelled.
	Watch(ctx context.Context) error

	// Close stops background work.
	Close() error
}

// Load outcomes reported to Metrics.
const (
	LoadResultSuccess    = "success"
	LoadResultMissing    = "missing"
	LoadResultParseError = "parse_error"
	LoadResultIOError    = "io_error"
	LoadResultSkipped    = "skipped"
)

// Metrics receives cache and loader measurements. Implementations must be
// safe for concurrent use and must not call back into the cache.
type Metrics interface {
	// RecordPolicyLookup records a cache lookup.
	RecordPolicyLookup(hit bool)

	// SetPolicyCacheEntries records the number of registered namespaces.
	SetPolicyCacheEntries(n int)

	// RecordPolicyLoad records one load attempt.
	RecordPolicyLoad(namespace, result string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordPolicyLookup(bool)                        {}
func (noopMetrics) SetPolicyCacheEntries(int)                      {}
func (noopMetrics) RecordPolicyLoad(string, string, time.Duration) {}

// CacheStats is a point-in-time summary of a PolicyCache.
type CacheStats struct {
	// Namespaces is the number of registered namespaces (excluding the default slot)
	Namespaces int

	// HasDefault reports whether the default slot is filled
	HasDefault bool

	// Version changes on every write
	Version string

	// UpdatedAt is the time of the last write
	UpdatedAt time.Time
}

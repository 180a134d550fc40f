package manager

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"mercator-hq/storagerpc/pkg/rpc/policy"
)

// DefaultNamespace is the reserved cache key holding the default policy.
// Blank namespaces resolve to it.
const DefaultNamespace = "DEFAULT_POLICY_MODULE"

// NormalizeNamespace trims s and maps a blank result to DefaultNamespace.
func NormalizeNamespace(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultNamespace
	}
	return s
}

// PolicyCache maps namespaces to serialization policies plus one default
// slot. All operations are short critical sections under a single
// RWMutex; no I/O or parsing ever happens while it is held.
//
// The first policy put into an empty cache also becomes the default,
// whatever markDefault says. A deployment with a single module therefore
// never needs an explicit default.
type PolicyCache struct {
	mu         sync.RWMutex
	policies   map[string]policy.Policy
	generation uint64
	version    string
	updatedAt  time.Time
	metrics    Metrics
}

// CacheOption configures a PolicyCache.
type CacheOption func(*PolicyCache)

// WithCacheMetrics reports lookups and size to m.
func WithCacheMetrics(m Metrics) CacheOption {
	return func(c *PolicyCache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewPolicyCache creates an empty cache.
func NewPolicyCache(opts ...CacheOption) *PolicyCache {
	c := &PolicyCache{
		policies:  make(map[string]policy.Policy),
		updatedAt: time.Now(),
		metrics:   noopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.version = c.computeVersion()
	return c
}

// RegisterDefault copies the policy of namespace into the default slot.
// It is a no-op on an empty cache or for a namespace without a policy, and
// reports whether the default slot now holds the namespace's policy.
func (c *PolicyCache) RegisterDefault(namespace string) bool {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.policies) == 0 {
		return false
	}
	p, ok := c.policies[ns]
	if !ok {
		return false
	}
	if cur, ok := c.policies[DefaultNamespace]; ok && samePolicy(cur, p) {
		return true
	}
	c.policies[DefaultNamespace] = p
	c.touch()
	return true
}

// Put registers p under namespace, replacing any previous policy. The
// default slot is overwritten too when markDefault is set or the cache was
// empty before the call. Nil policies and blank or reserved namespaces are
// ignored; use RegisterDefault to move the default slot.
//
// Put reports whether p became the default.
func (c *PolicyCache) Put(namespace string, p policy.Policy, markDefault bool) bool {
	ns := NormalizeNamespace(namespace)
	if p == nil || ns == DefaultNamespace {
		return false
	}

	c.mu.Lock()
	wasEmpty := len(c.policies) == 0
	c.policies[ns] = p
	becameDefault := markDefault || wasEmpty
	if becameDefault {
		c.policies[DefaultNamespace] = p
	}
	c.touch()
	n := c.countLocked()
	c.mu.Unlock()

	c.metrics.SetPolicyCacheEntries(n)
	return becameDefault
}

// Get returns the policy for namespace after normalization.
func (c *PolicyCache) Get(namespace string) (policy.Policy, bool) {
	ns := NormalizeNamespace(namespace)

	c.mu.RLock()
	p, ok := c.policies[ns]
	c.mu.RUnlock()

	c.metrics.RecordPolicyLookup(ok)
	return p, ok
}

// Has reports whether namespace has a policy, after normalization.
func (c *PolicyCache) Has(namespace string) bool {
	ns := NormalizeNamespace(namespace)

	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.policies[ns]
	return ok
}

// IsDefault reports whether namespace's policy is the very instance held in
// the default slot.
func (c *PolicyCache) IsDefault(namespace string) bool {
	ns := NormalizeNamespace(namespace)

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.policies[ns]
	if !ok {
		return false
	}
	d, ok := c.policies[DefaultNamespace]
	return ok && samePolicy(p, d)
}

// Default returns the default policy.
func (c *PolicyCache) Default() (policy.Policy, bool) {
	return c.Get(DefaultNamespace)
}

// Namespaces returns the registered namespaces in sorted order, excluding
// the default slot.
func (c *PolicyCache) Namespaces() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.policies))
	for name := range c.policies {
		if name != DefaultNamespace {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// DefaultNamespaces returns the sorted namespaces whose policy is the
// current default.
func (c *PolicyCache) DefaultNamespaces() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.policies[DefaultNamespace]
	if !ok {
		return nil
	}
	var names []string
	for name, p := range c.policies {
		if name != DefaultNamespace && samePolicy(p, d) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered namespaces, excluding the default
// slot.
func (c *PolicyCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.countLocked()
}

// Version returns an identifier that changes on every write.
func (c *PolicyCache) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.version
}

// Stats returns a snapshot of the cache state.
func (c *PolicyCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, hasDefault := c.policies[DefaultNamespace]
	return CacheStats{
		Namespaces: c.countLocked(),
		HasDefault: hasDefault,
		Version:    c.version,
		UpdatedAt:  c.updatedAt,
	}
}

func (c *PolicyCache) countLocked() int {
	n := len(c.policies)
	if _, ok := c.policies[DefaultNamespace]; ok {
		n--
	}
	return n
}

// touch must be called with mu held for writing.
func (c *PolicyCache) touch() {
	c.generation++
	c.updatedAt = time.Now()
	c.version = c.computeVersion()
}

// computeVersion hashes the sorted namespaces and the write generation.
func (c *PolicyCache) computeVersion() string {
	names := make([]string, 0, len(c.policies))
	for name := range c.policies {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	var gen [8]byte
	binary.BigEndian.PutUint64(gen[:], c.generation)
	h.Write(gen[:])

	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// samePolicy compares policy identity. Pointer-shaped policies compare by
// address; other comparable values by ==.
func samePolicy(a, b policy.Policy) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}

package serializer

import (
	"errors"
	"log/slog"
	"reflect"
	"time"

	"mercator-hq/storagerpc/pkg/config"
	"mercator-hq/storagerpc/pkg/policy/manager"
	"mercator-hq/storagerpc/pkg/rpc/codec"
	"mercator-hq/storagerpc/pkg/rpc/policy"
)

// ErrNoPolicy is the cause of a SerializationError raised when neither the
// namespace, the default slot nor a fallback provides a policy.
var ErrNoPolicy = errors.New("no serialization policy available")

// Operation names reported to Metrics.
const (
	OpSerialize   = "serialize"
	OpDeserialize = "deserialize"
)

// Operation results reported to Metrics.
const (
	ResultSuccess = "success"
	ResultNull    = "null"
	ResultError   = "error"
)

// PolicySource looks up policies by namespace. *manager.PolicyCache
// implements it.
type PolicySource interface {
	Get(namespace string) (policy.Policy, bool)
}

// Metrics receives serializer measurements.
type Metrics interface {
	RecordSerializerOperation(op, result string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordSerializerOperation(string, string, time.Duration) {}

// Serializer encodes and decodes values under the policy of a namespace.
// It is safe for concurrent use.
type Serializer struct {
	source   PolicySource
	codec    codec.Codec
	fallback policy.Policy
	logger   *slog.Logger
	metrics  Metrics
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithCodec replaces the wire codec.
func WithCodec(c codec.Codec) Option {
	return func(s *Serializer) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithFallbackPolicy sets the policy used when a namespace has no policy
// and no default is registered. Nil disables the fallback.
func WithFallbackPolicy(p policy.Policy) Option {
	return func(s *Serializer) {
		s.fallback = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Serializer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics reports operations to m.
func WithMetrics(m Metrics) Option {
	return func(s *Serializer) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a Serializer over source. By default it uses codec.New() and
// falls back to policy.Legacy().
func New(source PolicySource, opts ...Option) *Serializer {
	s := &Serializer{
		source:   source,
		codec:    codec.New(),
		fallback: policy.Legacy(),
		logger:   slog.Default(),
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "serializer")
	return s
}

// NewFromConfig creates a Serializer configured by cfg. A "none" fallback
// disables the legacy policy and MaxDepth bounds the codec. opts are applied
// after the config.
func NewFromConfig(source PolicySource, cfg *config.SerializerConfig, opts ...Option) *Serializer {
	var base []Option
	if cfg != nil {
		if cfg.Fallback == config.FallbackNone {
			base = append(base, WithFallbackPolicy(nil))
		}
		if cfg.MaxDepth > 0 {
			base = append(base, WithCodec(codec.New(codec.WithMaxDepth(cfg.MaxDepth))))
		}
	}
	return New(source, append(base, opts...)...)
}

// Resolution names where ResolvePolicy found a policy.
type Resolution string

const (
	ResolvedNamespace Resolution = "namespace"
	ResolvedDefault   Resolution = "default"
	ResolvedFallback  Resolution = "fallback"
	ResolvedNone      Resolution = "none"
)

// ResolvePolicy returns the policy for namespace, else the fallback. A
// blank namespace resolves to the default policy; a namespace that was
// never loaded gets the fallback, not the default. It returns nil only when
// neither is available.
func (s *Serializer) ResolvePolicy(namespace string) policy.Policy {
	p, _ := s.Resolve(namespace)
	return p
}

// Resolve is ResolvePolicy that also reports which step supplied the policy.
func (s *Serializer) Resolve(namespace string) (policy.Policy, Resolution) {
	ns := manager.NormalizeNamespace(namespace)

	if s.source != nil {
		if p, ok := s.source.Get(ns); ok {
			if ns == manager.DefaultNamespace {
				return p, ResolvedDefault
			}
			return p, ResolvedNamespace
		}
	}

	if s.fallback == nil {
		return nil, ResolvedNone
	}
	s.logger.Debug("No policy registered, using fallback", "namespace", ns)
	return s.fallback, ResolvedFallback
}

// SerializeType encodes v as type t under namespace's policy. A nil t or a
// nil v (including typed nil pointers, maps, slices, funcs and channels)
// yields "" without invoking the codec. Codec failures are returned
// unchanged.
func (s *Serializer) SerializeType(t reflect.Type, v any, namespace string) (string, error) {
	start := time.Now()
	if t == nil || isNil(v) {
		s.metrics.RecordSerializerOperation(OpSerialize, ResultNull, time.Since(start))
		return "", nil
	}

	p := s.ResolvePolicy(namespace)
	if p == nil {
		s.metrics.RecordSerializerOperation(OpSerialize, ResultError, time.Since(start))
		return "", noPolicyError("encode", t, namespace)
	}

	out, err := s.codec.Encode(t, v, p)
	s.record(OpSerialize, err, start)
	if err != nil {
		return "", err
	}
	return out, nil
}

// DeserializeType decodes encoded as type t under namespace's policy. A nil
// t or an empty encoded string yields nil without invoking the codec.
// Codec failures are returned unchanged.
func (s *Serializer) DeserializeType(t reflect.Type, encoded string, namespace string) (any, error) {
	start := time.Now()
	if t == nil || encoded == "" {
		s.metrics.RecordSerializerOperation(OpDeserialize, ResultNull, time.Since(start))
		return nil, nil
	}

	p := s.ResolvePolicy(namespace)
	if p == nil {
		s.metrics.RecordSerializerOperation(OpDeserialize, ResultError, time.Since(start))
		return nil, noPolicyError("decode", t, namespace)
	}

	out, err := s.codec.Decode(t, encoded, p)
	s.record(OpDeserialize, err, start)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Serialize encodes v under namespace's policy using T as the declared type.
func Serialize[T any](s *Serializer, v T, namespace string) (string, error) {
	return s.SerializeType(reflect.TypeOf((*T)(nil)).Elem(), v, namespace)
}

// Deserialize decodes encoded as a T under namespace's policy. An empty
// encoded string yields the zero T.
func Deserialize[T any](s *Serializer, encoded string, namespace string) (T, error) {
	var zero T
	out, err := s.DeserializeType(reflect.TypeOf((*T)(nil)).Elem(), encoded, namespace)
	if err != nil || out == nil {
		return zero, err
	}
	v, ok := out.(T)
	if !ok {
		return zero, &codec.SerializationError{
			Op:       "decode",
			TypeName: policy.TypeName(reflect.TypeOf((*T)(nil)).Elem()),
			Message:  "codec returned " + reflect.TypeOf(out).String(),
		}
	}
	return v, nil
}

func (s *Serializer) record(op string, err error, start time.Time) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	s.metrics.RecordSerializerOperation(op, result, time.Since(start))
}

func noPolicyError(op string, t reflect.Type, namespace string) error {
	return &codec.SerializationError{
		Op:       op,
		TypeName: policy.TypeName(t),
		Message:  "no policy for namespace " + manager.NormalizeNamespace(namespace),
		Cause:    ErrNoPolicy,
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

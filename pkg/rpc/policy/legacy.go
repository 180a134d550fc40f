package policy

import (
	"reflect"
	"time"
)

// LegacyPolicy is the platform fallback policy. It is used when the
// requested namespace holds no policy.
type LegacyPolicy struct{}

var legacy = &LegacyPolicy{}

// Legacy returns the process-wide fallback policy. Every call returns the
// same instance.
func Legacy() *LegacyPolicy {
	return legacy
}

var (
	timeType  = reflect.TypeOf((*time.Time)(nil)).Elem()
	bytesType = reflect.TypeOf((*[]byte)(nil)).Elem()
)

// ValidateSerialize implements Policy.
func (l *LegacyPolicy) ValidateSerialize(t reflect.Type) error {
	return l.validate(t, DirectionSerialize)
}

// ValidateDeserialize implements Policy.
func (l *LegacyPolicy) ValidateDeserialize(t reflect.Type) error {
	return l.validate(t, DirectionDeserialize)
}

func (l *LegacyPolicy) validate(t reflect.Type, dir Direction) error {
	if t == nil {
		return &TypeError{Direction: dir, Reason: "nil type"}
	}
	if IsPrimitive(t) || IsContainer(t) || t == timeType || t == bytesType {
		return nil
	}
	if t.Implements(serializableType) || reflect.PointerTo(t).Implements(serializableType) {
		return nil
	}
	return &TypeError{
		TypeName:  TypeName(t),
		Direction: dir,
		Reason:    "type does not implement policy.Serializable and no serialization policy is loaded",
	}
}

// ClientFields implements Policy. The legacy policy never restricts fields.
func (l *LegacyPolicy) ClientFields(reflect.Type) ([]string, bool) {
	return nil, false
}

var (
	_ Policy = (*LegacyPolicy)(nil)
	_ Policy = (*FilePolicy)(nil)
)

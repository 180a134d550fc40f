package codec

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"mercator-hq/storagerpc/pkg/rpc/policy"
)

// TypeRegistry maps policy type names to Go types for decoding
// interface-typed values. Registration does not grant permission: decoded
// types must still pass the policy.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewTypeRegistry creates an empty registry.
// Builtin scalars, time.Time and []byte are pre-registered so that they can
// be carried by interface-typed fields.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{
		types: make(map[string]reflect.Type),
	}
	for _, t := range builtinTypes {
		r.types[policy.TypeName(t)] = t
	}
	return r
}

var builtinTypes = []reflect.Type{
	reflect.TypeOf((*bool)(nil)).Elem(),
	reflect.TypeOf((*string)(nil)).Elem(),
	reflect.TypeOf((*int)(nil)).Elem(),
	reflect.TypeOf((*int8)(nil)).Elem(),
	reflect.TypeOf((*int16)(nil)).Elem(),
	reflect.TypeOf((*int32)(nil)).Elem(),
	reflect.TypeOf((*int64)(nil)).Elem(),
	reflect.TypeOf((*uint)(nil)).Elem(),
	reflect.TypeOf((*uint8)(nil)).Elem(),
	reflect.TypeOf((*uint16)(nil)).Elem(),
	reflect.TypeOf((*uint32)(nil)).Elem(),
	reflect.TypeOf((*uint64)(nil)).Elem(),
	reflect.TypeOf((*float32)(nil)).Elem(),
	reflect.TypeOf((*float64)(nil)).Elem(),
	reflect.TypeOf((*[]byte)(nil)).Elem(),
	reflect.TypeOf((*time.Time)(nil)).Elem(),
}

// Register records the types of the given sample values.
func (r *TypeRegistry) Register(samples ...any) error {
	for _, s := range samples {
		if s == nil {
			return fmt.Errorf("codec: cannot register nil sample")
		}
		if err := r.RegisterType(reflect.TypeOf(s)); err != nil {
			return err
		}
	}
	return nil
}

// RegisterType records t under its policy type name. Registering the same
// type twice is a no-op; registering a different type under a taken name is
// an error.
func (r *TypeRegistry) RegisterType(t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("codec: cannot register nil type")
	}
	if t.Kind() == reflect.Interface {
		return fmt.Errorf("codec: cannot register interface type %v", t)
	}

	name := policy.TypeName(t)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.types[name]; ok && existing != t {
		return fmt.Errorf("codec: type name %q already registered for %v", name, existing)
	}
	r.types[name] = t
	return nil
}

// Lookup returns the type registered under name.
func (r *TypeRegistry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	return t, ok
}

// Names returns the sorted registered type names.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

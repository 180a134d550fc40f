package policy

import (
	"fmt"
	"reflect"
)

// Policy decides which Go types may be encoded or decoded and which of
// their fields take part. Implementations must be immutable.
type Policy interface {
	// ValidateSerialize returns a *TypeError if values of t may not be encoded.
	ValidateSerialize(t reflect.Type) error

	// ValidateDeserialize returns a *TypeError if values of t may not be decoded.
	ValidateDeserialize(t reflect.Type) error

	// ClientFields returns the field names of t that are exchanged with the
	// client. The boolean is false when the policy places no restriction.
	ClientFields(t reflect.Type) ([]string, bool)
}

// Namer lets a type choose its own policy type name instead of the
// package-qualified Go name.
type Namer interface {
	StorageTypeName() string
}

// Serializable marks types the Legacy policy accepts without a policy file.
type Serializable interface {
	IsStorageSerializable()
}

var (
	namerType        = reflect.TypeOf((*Namer)(nil)).Elem()
	serializableType = reflect.TypeOf((*Serializable)(nil)).Elem()
)

// TypeName returns the name under which t appears in policy files and on
// the wire. Named types use their package-qualified name unless they
// implement Namer; composite types are spelled out from their element names
// (e.g. "*example.com/notes.Note", "[]string").
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}

	if name, ok := namerName(t); ok {
		return name
	}

	if t.PkgPath() != "" && t.Name() != "" {
		return t.PkgPath() + "." + t.Name()
	}

	if IsPrimitive(t) {
		return t.Kind().String()
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + TypeName(t.Elem())
	case reflect.Slice:
		return "[]" + TypeName(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), TypeName(t.Elem()))
	case reflect.Map:
		return "map[" + TypeName(t.Key()) + "]" + TypeName(t.Elem())
	}

	return t.String()
}

// namerName resolves a Namer implemented by a non-pointer type t, with either
// a value or pointer receiver, using the zero value.
func namerName(t reflect.Type) (string, bool) {
	if t.Kind() == reflect.Interface || t.Kind() == reflect.Pointer {
		return "", false
	}
	switch {
	case t.Implements(namerType):
		return reflect.Zero(t).Interface().(Namer).StorageTypeName(), true
	case reflect.PointerTo(t).Implements(namerType):
		return reflect.New(t).Interface().(Namer).StorageTypeName(), true
	}
	return "", false
}

// IsPrimitive reports whether t is an unnamed scalar that every policy permits.
func IsPrimitive(t reflect.Type) bool {
	if t.PkgPath() != "" {
		return false
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// IsContainer reports whether t only wraps other types. Policies never judge
// containers themselves; the codec checks their element types.
func IsContainer(t reflect.Type) bool {
	if t.Name() != "" {
		return false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// Direction of a policy check.
type Direction string

const (
	DirectionSerialize   Direction = "serialize"
	DirectionDeserialize Direction = "deserialize"
)

// TypeError reports a type rejected by a policy.
type TypeError struct {
	// TypeName is the policy name of the rejected type
	TypeName string

	// Direction is the operation that was refused
	Direction Direction

	// Reason explains why the type was refused
	Reason string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type %q is not permitted to %s: %s", e.TypeName, e.Direction, e.Reason)
}

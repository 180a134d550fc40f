package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/tidwall/gjson"

	"mercator-hq/storagerpc/pkg/rpc/policy"
)

// WireVersion is the envelope version written by Encode and required by Decode.
const WireVersion = 1

// DefaultMaxDepth bounds the nesting depth of encoded and decoded values.
const DefaultMaxDepth = 64

// Codec encodes and decodes values of a given type under a policy.
type Codec interface {
	// Encode returns the wire form of v, which must be assignable to t.
	Encode(t reflect.Type, v any, p policy.Policy) (string, error)

	// Decode parses s into a new value of type t.
	Decode(t reflect.Type, s string, p policy.Policy) (any, error)
}

// RPCCodec is the policy-enforcing JSON envelope codec.
type RPCCodec struct {
	registry *TypeRegistry
	maxDepth int
}

// Option configures an RPCCodec.
type Option func(*RPCCodec)

// WithRegistry sets the registry used to resolve interface-typed values.
func WithRegistry(r *TypeRegistry) Option {
	return func(c *RPCCodec) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithMaxDepth sets the maximum nesting depth.
func WithMaxDepth(depth int) Option {
	return func(c *RPCCodec) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// New creates a codec.
func New(opts ...Option) *RPCCodec {
	c := &RPCCodec{
		registry: NewTypeRegistry(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the codec's type registry.
func (c *RPCCodec) Registry() *TypeRegistry {
	return c.registry
}

type envelope struct {
	Version int    `json:"v"`
	Type    string `json:"t"`
	Payload any    `json:"p"`
}

// Encode implements Codec.
func (c *RPCCodec) Encode(t reflect.Type, v any, p policy.Policy) (string, error) {
	if t == nil {
		return "", &SerializationError{Op: "encode", Message: "nil type"}
	}
	name := policy.TypeName(t)
	if p == nil {
		return "", &SerializationError{Op: "encode", TypeName: name, Message: "nil policy"}
	}

	val := reflect.New(t).Elem()
	if v != nil {
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(t) {
			return "", &SerializationError{
				Op:       "encode",
				TypeName: name,
				Message:  fmt.Sprintf("value of type %v is not assignable to %v", rv.Type(), t),
			}
		}
		val.Set(rv)
	}

	// An interface-typed value is sent under its dynamic type.
	wireName := name
	if t.Kind() == reflect.Interface && !val.IsNil() {
		val = val.Elem()
		wireName = policy.TypeName(val.Type())
	}

	enc := &encoder{policy: p, maxDepth: c.maxDepth}
	payload, err := enc.encode(val, "", 0)
	if err != nil {
		return "", withTypeName(err, name)
	}

	data, err := json.Marshal(envelope{Version: WireVersion, Type: wireName, Payload: payload})
	if err != nil {
		return "", &SerializationError{Op: "encode", TypeName: name, Message: "failed to marshal envelope", Cause: err}
	}
	return string(data), nil
}

// Decode implements Codec.
func (c *RPCCodec) Decode(t reflect.Type, s string, p policy.Policy) (any, error) {
	if t == nil {
		return nil, &SerializationError{Op: "decode", Message: "nil type"}
	}
	name := policy.TypeName(t)
	if p == nil {
		return nil, &SerializationError{Op: "decode", TypeName: name, Message: "nil policy"}
	}

	if !gjson.Valid(s) {
		return nil, &SerializationError{Op: "decode", TypeName: name, Message: "malformed envelope"}
	}
	env := gjson.Parse(s)
	if !env.IsObject() {
		return nil, &SerializationError{Op: "decode", TypeName: name, Message: "envelope is not an object"}
	}

	version := env.Get("v")
	if version.Type != gjson.Number || version.Raw != fmt.Sprint(WireVersion) {
		return nil, &SerializationError{
			Op:       "decode",
			TypeName: name,
			Message:  fmt.Sprintf("unsupported wire version %s", version.Raw),
		}
	}

	wireType := env.Get("t")
	if wireType.Type != gjson.String {
		return nil, &SerializationError{Op: "decode", TypeName: name, Message: "envelope has no type name"}
	}
	payload := env.Get("p")
	if !payload.Exists() {
		return nil, &SerializationError{Op: "decode", TypeName: name, Message: "envelope has no payload"}
	}

	target := t
	if t.Kind() != reflect.Interface && wireType.Str != name {
		return nil, &SerializationError{
			Op:       "decode",
			TypeName: name,
			Message:  fmt.Sprintf("envelope carries type %q", wireType.Str),
		}
	}
	if t.Kind() == reflect.Interface {
		if payload.Type == gjson.Null {
			return nil, nil
		}
		dyn, err := c.resolveDynamic(wireType.Str, t)
		if err != nil {
			return nil, withTypeName(err, name)
		}
		target = dyn
	}

	dec := &decoder{policy: p, registry: c.registry, maxDepth: c.maxDepth}
	val, err := dec.decode(payload, target, "", 0)
	if err != nil {
		return nil, withTypeName(err, name)
	}

	if !val.IsValid() {
		return nil, nil
	}
	if target != t {
		out := reflect.New(t).Elem()
		out.Set(val)
		val = out
	}
	return val.Interface(), nil
}

// resolveDynamic maps a wire type name to a registered concrete type that
// implements iface.
func (c *RPCCodec) resolveDynamic(wireName string, iface reflect.Type) (reflect.Type, error) {
	dyn, ok := c.registry.Lookup(wireName)
	if !ok {
		return nil, &SerializationError{
			Op:      "decode",
			Message: fmt.Sprintf("type %q is not registered", wireName),
		}
	}
	if !dyn.AssignableTo(iface) {
		return nil, &SerializationError{
			Op:      "decode",
			Message: fmt.Sprintf("type %q does not implement %v", wireName, iface),
		}
	}
	return dyn, nil
}

func withTypeName(err error, name string) error {
	if se, ok := err.(*SerializationError); ok && se.TypeName == "" {
		se.TypeName = name
	}
	return err
}

var _ Codec = (*RPCCodec)(nil)

package codec

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"mercator-hq/storagerpc/pkg/rpc/policy"
)

var timeType = reflect.TypeOf((*time.Time)(nil)).Elem()

type encoder struct {
	policy   policy.Policy
	maxDepth int
}

func (e *encoder) fail(path, msg string, cause error) error {
	return &SerializationError{Op: "encode", Path: path, Message: msg, Cause: cause}
}

// encode converts v into a tree of JSON-marshalable values.
func (e *encoder) encode(v reflect.Value, path string, depth int) (any, error) {
	if depth > e.maxDepth {
		return nil, e.fail(path, fmt.Sprintf("maximum depth %d exceeded", e.maxDepth), nil)
	}

	t := v.Type()
	if needsPolicyCheck(t) {
		if err := e.policy.ValidateSerialize(t); err != nil {
			return nil, e.fail(path, "type rejected by policy", err)
		}
	}

	if t == timeType {
		return v.Interface().(time.Time).Format(time.RFC3339Nano), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, e.fail(path, "unsupported float value "+strconv.FormatFloat(f, 'g', -1, 64), nil)
		}
		return f, nil
	case reflect.String:
		return v.String(), nil

	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return e.encode(v.Elem(), path, depth+1)

	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		dyn := v.Elem()
		payload, err := e.encode(dyn, path, depth+1)
		if err != nil {
			return nil, err
		}
		return map[string]any{"t": policy.TypeName(dyn.Type()), "p": payload}, nil

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if t.Elem().Kind() == reflect.Uint8 && policy.IsPrimitive(t.Elem()) {
			return v.Bytes(), nil
		}
		return e.encodeList(v, path, depth)

	case reflect.Array:
		return e.encodeList(v, path, depth)

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, e.fail(path, fmt.Sprintf("map key type %v is not supported", t.Key()), nil)
		}
		if v.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			elem, err := e.encode(iter.Value(), joinPath(path, "["+strconv.Quote(key)+"]"), depth+1)
			if err != nil {
				return nil, err
			}
			out[key] = elem
		}
		return out, nil

	case reflect.Struct:
		fields := structFields(t, e.policy)
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			elem, err := e.encode(v.Field(f.index), joinPath(path, f.name), depth+1)
			if err != nil {
				return nil, err
			}
			out[f.wireName] = elem
		}
		return out, nil
	}

	return nil, e.fail(path, fmt.Sprintf("kind %v is not supported", t.Kind()), nil)
}

func (e *encoder) encodeList(v reflect.Value, path string, depth int) (any, error) {
	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		elem, err := e.encode(v.Index(i), joinPath(path, fmt.Sprintf("[%d]", i)), depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = elem
	}
	return out, nil
}

package codec

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"mercator-hq/storagerpc/pkg/rpc/policy"
)

type decoder struct {
	policy   policy.Policy
	registry *TypeRegistry
	maxDepth int
}

func (d *decoder) fail(path, msg string, cause error) error {
	return &SerializationError{Op: "decode", Path: path, Message: msg, Cause: cause}
}

func (d *decoder) mismatch(path string, r gjson.Result, t reflect.Type) error {
	return d.fail(path, fmt.Sprintf("cannot decode %s into %v", r.Type, t), nil)
}

// decode builds a value of type t from r.
func (d *decoder) decode(r gjson.Result, t reflect.Type, path string, depth int) (reflect.Value, error) {
	if depth > d.maxDepth {
		return reflect.Value{}, d.fail(path, fmt.Sprintf("maximum depth %d exceeded", d.maxDepth), nil)
	}

	if needsPolicyCheck(t) {
		if err := d.policy.ValidateDeserialize(t); err != nil {
			return reflect.Value{}, d.fail(path, "type rejected by policy", err)
		}
	}

	out := reflect.New(t).Elem()

	if r.Type == gjson.Null {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			return out, nil
		}
		return reflect.Value{}, d.fail(path, fmt.Sprintf("null is not a valid %v", t), nil)
	}

	if t == timeType {
		if r.Type != gjson.String {
			return reflect.Value{}, d.mismatch(path, r, t)
		}
		ts, err := time.Parse(time.RFC3339Nano, r.Str)
		if err != nil {
			return reflect.Value{}, d.fail(path, "invalid timestamp", err)
		}
		out.Set(reflect.ValueOf(ts))
		return out, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		if r.Type != gjson.True && r.Type != gjson.False {
			return reflect.Value{}, d.mismatch(path, r, t)
		}
		out.SetBool(r.Bool())

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if r.Type != gjson.Number {
			return reflect.Value{}, d.mismatch(path, r, t)
		}
		n, err := strconv.ParseInt(r.Raw, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, d.fail(path, fmt.Sprintf("invalid %v", t), err)
		}
		out.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if r.Type != gjson.Number {
			return reflect.Value{}, d.mismatch(path, r, t)
		}
		n, err := strconv.ParseUint(r.Raw, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, d.fail(path, fmt.Sprintf("invalid %v", t), err)
		}
		out.SetUint(n)

	case reflect.Float32, reflect.Float64:
		if r.Type != gjson.Number {
			return reflect.Value{}, d.mismatch(path, r, t)
		}
		f, err := strconv.ParseFloat(r.Raw, t.Bits())
		if err != nil {
			return reflect.Value{}, d.fail(path, fmt.Sprintf("invalid %v", t), err)
		}
		out.SetFloat(f)

	case reflect.String:
		if r.Type != gjson.String {
			return reflect.Value{}, d.mismatch(path, r, t)
		}
		out.SetString(r.Str)

	case reflect.Pointer:
		elem, err := d.decode(r, t.Elem(), path, depth+1)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		out.Set(ptr)

	case reflect.Interface:
		return d.decodeInterface(r, t, path, depth)

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && policy.IsPrimitive(t.Elem()) {
			if r.Type != gjson.String {
				return reflect.Value{}, d.mismatch(path, r, t)
			}
			b, err := base64.StdEncoding.DecodeString(r.Str)
			if err != nil {
				return reflect.Value{}, d.fail(path, "invalid base64 data", err)
			}
			out.Set(reflect.ValueOf(b).Convert(t))
			return out, nil
		}
		if !r.IsArray() {
			return reflect.Value{}, d.mismatch(path, r, t)
		}
		items := r.Array()
		out.Set(reflect.MakeSlice(t, len(items), len(items)))
		for i, item := range items {
			elem, err := d.decode(item, t.Elem(), joinPath(path, fmt.Sprintf("[%d]", i)), depth+1)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}

	case reflect.Array:
		if !r.IsArray() {
			return reflect.Value{}, d.mismatch(path, r, t)
		}
		items := r.Array()
		if len(items) != t.Len() {
			return reflect.Value{}, d.fail(path, fmt.Sprintf("array length %d does not match %v", len(items), t), nil)
		}
		for i, item := range items {
			elem, err := d.decode(item, t.Elem(), joinPath(path, fmt.Sprintf("[%d]", i)), depth+1)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return reflect.Value{}, d.fail(path, fmt.Sprintf("map key type %v is not supported", t.Key()), nil)
		}
		if !r.IsObject() {
			return reflect.Value{}, d.mismatch(path, r, t)
		}
		out.Set(reflect.MakeMap(t))
		var err error
		r.ForEach(func(key, value gjson.Result) bool {
			var elem reflect.Value
			elem, err = d.decode(value, t.Elem(), joinPath(path, "["+strconv.Quote(key.Str)+"]"), depth+1)
			if err != nil {
				return false
			}
			out.SetMapIndex(reflect.ValueOf(key.Str).Convert(t.Key()), elem)
			return true
		})
		if err != nil {
			return reflect.Value{}, err
		}

	case reflect.Struct:
		if err := d.decodeStruct(r, t, out, path, depth); err != nil {
			return reflect.Value{}, err
		}

	default:
		return reflect.Value{}, d.fail(path, fmt.Sprintf("kind %v is not supported", t.Kind()), nil)
	}

	return out, nil
}

func (d *decoder) decodeStruct(r gjson.Result, t reflect.Type, out reflect.Value, path string, depth int) error {
	if !r.IsObject() {
		return d.mismatch(path, r, t)
	}

	fields := structFields(t, d.policy)
	byWire := make(map[string]field, len(fields))
	for _, f := range fields {
		byWire[f.wireName] = f
	}

	var err error
	r.ForEach(func(key, value gjson.Result) bool {
		f, ok := byWire[key.Str]
		if !ok {
			err = d.fail(path, fmt.Sprintf("unknown field %q for %s", key.Str, policy.TypeName(t)), nil)
			return false
		}
		var elem reflect.Value
		elem, err = d.decode(value, t.Field(f.index).Type, joinPath(path, f.name), depth+1)
		if err != nil {
			return false
		}
		out.Field(f.index).Set(elem)
		return true
	})
	return err
}

// decodeInterface resolves the dynamic type named in {"t":...,"p":...}.
func (d *decoder) decodeInterface(r gjson.Result, t reflect.Type, path string, depth int) (reflect.Value, error) {
	if !r.IsObject() {
		return reflect.Value{}, d.mismatch(path, r, t)
	}

	name := r.Get("t")
	payload := r.Get("p")
	if name.Type != gjson.String || !payload.Exists() {
		return reflect.Value{}, d.fail(path, "interface value must carry a type name and payload", nil)
	}

	dyn, ok := d.registry.Lookup(name.Str)
	if !ok {
		return reflect.Value{}, d.fail(path, fmt.Sprintf("type %q is not registered", name.Str), nil)
	}
	if !dyn.AssignableTo(t) {
		return reflect.Value{}, d.fail(path, fmt.Sprintf("type %q does not implement %v", name.Str, t), nil)
	}

	val, err := d.decode(payload, dyn, path, depth+1)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(t).Elem()
	out.Set(val)
	return out, nil
}

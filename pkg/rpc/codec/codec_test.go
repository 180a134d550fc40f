package codec

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"mercator-hq/storagerpc/pkg/rpc/policy"
)

type Shape interface {
	Area() float64
}

type Square struct {
	Side float64
}

func (s Square) Area() float64 { return s.Side * s.Side }

type Circle struct {
	Radius float64
}

func (c Circle) Area() float64 { return 3 * c.Radius * c.Radius }

type Note struct {
	Title   string
	Body    string `storage:"body"`
	Secret  string `storage:"-"`
	Tags    []string
	Counts  map[string]int
	Created time.Time
	Shape   Shape
	Parent  *Note
	Data    []byte
	hidden  int
}

const pkgName = "mercator-hq/storagerpc/pkg/rpc/codec"

const testPolicy = pkgName + `.Note, true, true, true, true
` + pkgName + `.Square, true, true, true, true
` + pkgName + `.Circle, true, true, false, false
time.Time, true, true, true, true
`

func newTestPolicy(t *testing.T, src string) *policy.FilePolicy {
	t.Helper()
	p, err := policy.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("policy.Parse() error = %v", err)
	}
	return p
}

func newTestCodec(t *testing.T) *RPCCodec {
	t.Helper()
	c := New()
	if err := c.Registry().Register(Square{}, Circle{}, &Note{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return c
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t)
	p := newTestPolicy(t, testPolicy)

	created := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	in := Note{
		Title:   "groceries",
		Body:    "milk",
		Secret:  "dropped",
		Tags:    []string{"home", "weekly"},
		Counts:  map[string]int{"milk": 2},
		Created: created,
		Shape:   Square{Side: 2},
		Parent:  &Note{Title: "lists"},
		Data:    []byte{1, 2, 3},
		hidden:  7,
	}

	encoded, err := c.Encode(reflect.TypeOf((*Note)(nil)).Elem(), in, p)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if strings.Contains(encoded, "dropped") {
		t.Errorf("encoded value contains skipped field: %s", encoded)
	}
	if !strings.Contains(encoded, `"body":"milk"`) {
		t.Errorf("encoded value does not use tag name: %s", encoded)
	}

	decoded, err := c.Decode(reflect.TypeOf((*Note)(nil)).Elem(), encoded, p)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	out, ok := decoded.(Note)
	if !ok {
		t.Fatalf("Decode() returned %T, want Note", decoded)
	}
	if out.Title != in.Title || out.Body != in.Body || out.Secret != "" || out.hidden != 0 {
		t.Errorf("decoded scalars = %+v", out)
	}
	if !reflect.DeepEqual(out.Tags, in.Tags) || !reflect.DeepEqual(out.Counts, in.Counts) {
		t.Errorf("decoded collections = %v %v", out.Tags, out.Counts)
	}
	if !out.Created.Equal(created) {
		t.Errorf("Created = %v, want %v", out.Created, created)
	}
	if sq, ok := out.Shape.(Square); !ok || sq.Side != 2 {
		t.Errorf("Shape = %#v, want Square{2}", out.Shape)
	}
	if out.Parent == nil || out.Parent.Title != "lists" {
		t.Errorf("Parent = %+v", out.Parent)
	}
	if !reflect.DeepEqual(out.Data, []byte{1, 2, 3}) {
		t.Errorf("Data = %v", out.Data)
	}
}

func TestCodec_Primitives(t *testing.T) {
	c := New()
	p := newTestPolicy(t, "")

	tests := []struct {
		typ reflect.Type
		val any
	}{
		{reflect.TypeOf((*string)(nil)).Elem(), "hello"},
		{reflect.TypeOf((*bool)(nil)).Elem(), true},
		{reflect.TypeOf((*int64)(nil)).Elem(), int64(-1 << 62)},
		{reflect.TypeOf((*uint64)(nil)).Elem(), uint64(1<<64 - 1)},
		{reflect.TypeOf((*float32)(nil)).Elem(), float32(1.5)},
		{reflect.TypeOf((*[]int)(nil)).Elem(), []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			encoded, err := c.Encode(tt.typ, tt.val, p)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			decoded, err := c.Decode(tt.typ, encoded, p)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(decoded, tt.val) {
				t.Errorf("round trip = %#v, want %#v", decoded, tt.val)
			}
		})
	}
}

func TestCodec_Envelope(t *testing.T) {
	c := New()
	p := newTestPolicy(t, "")

	encoded, err := c.Encode(reflect.TypeOf((*string)(nil)).Elem(), "x", p)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if encoded != `{"v":1,"t":"string","p":"x"}` {
		t.Errorf("Encode() = %s", encoded)
	}
}

func TestCodec_EncodeRejectedByPolicy(t *testing.T) {
	c := newTestCodec(t)
	p := newTestPolicy(t, pkgName+".Note, true, true, true, true\n")

	_, err := c.Encode(reflect.TypeOf((*Note)(nil)).Elem(), Note{Created: time.Now()}, p)
	if err == nil {
		t.Fatal("Encode() error = nil, want error for unlisted time.Time")
	}

	var serErr *SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("error type = %T, want *SerializationError", err)
	}
	if serErr.Op != "encode" || serErr.Path != "Created" {
		t.Errorf("SerializationError = %+v", serErr)
	}
	var typeErr *policy.TypeError
	if !errors.As(err, &typeErr) || typeErr.TypeName != "time.Time" {
		t.Errorf("cause = %v, want *policy.TypeError for time.Time", serErr.Cause)
	}
}

func TestCodec_EncodeErrors(t *testing.T) {
	c := New()
	p := policy.Legacy()

	if _, err := c.Encode(reflect.TypeOf((*string)(nil)).Elem(), 42, p); err == nil {
		t.Error("Encode() with mismatched value error = nil, want error")
	}
	if _, err := c.Encode(nil, "x", p); err == nil {
		t.Error("Encode() with nil type error = nil, want error")
	}
	if _, err := c.Encode(reflect.TypeOf((*string)(nil)).Elem(), "x", nil); err == nil {
		t.Error("Encode() with nil policy error = nil, want error")
	}
	if _, err := c.Encode(reflect.TypeOf((*map[int]string)(nil)).Elem(), map[int]string{1: "a"}, p); err == nil {
		t.Error("Encode() with int map keys error = nil, want error")
	}
	if _, err := c.Encode(reflect.TypeOf((*func())(nil)).Elem(), func() {}, p); err == nil {
		t.Error("Encode() with func error = nil, want error")
	}
}

func TestCodec_DecodeErrors(t *testing.T) {
	c := newTestCodec(t)
	p := newTestPolicy(t, testPolicy)
	noteType := reflect.TypeOf((*Note)(nil)).Elem()

	tests := []struct {
		name    string
		typ     reflect.Type
		input   string
		wantMsg string
	}{
		{"malformed", noteType, `{"v":1,`, "malformed envelope"},
		{"not object", noteType, `[1]`, "not an object"},
		{"bad version", noteType, `{"v":2,"t":"x","p":null}`, "wire version"},
		{"no type", noteType, `{"v":1,"p":{}}`, "no type name"},
		{"no payload", noteType, `{"v":1,"t":"` + pkgName + `.Note"}`, "no payload"},
		{"type mismatch", noteType, `{"v":1,"t":"string","p":"x"}`, "envelope carries type"},
		{"unknown field", noteType, `{"v":1,"t":"` + pkgName + `.Note","p":{"Evil":1}}`, "unknown field"},
		{"wrong scalar", noteType, `{"v":1,"t":"` + pkgName + `.Note","p":{"Title":5}}`, "cannot decode"},
		{"null struct", noteType, `{"v":1,"t":"` + pkgName + `.Note","p":null}`, "null is not a valid"},
		{"overflow", reflect.TypeOf((*int8)(nil)).Elem(), `{"v":1,"t":"int8","p":300}`, "invalid int8"},
		{"negative uint", reflect.TypeOf((*uint)(nil)).Elem(), `{"v":1,"t":"uint","p":-1}`, "invalid uint"},
		{"bad time", noteType, `{"v":1,"t":"` + pkgName + `.Note","p":{"Created":"yesterday"}}`, "invalid timestamp"},
		{"bad base64", noteType, `{"v":1,"t":"` + pkgName + `.Note","p":{"Data":"!!"}}`, "invalid base64"},
		{
			"unregistered dynamic type", noteType,
			`{"v":1,"t":"` + pkgName + `.Note","p":{"Shape":{"t":"os.File","p":{}}}}`,
			"not registered",
		},
		{
			"dynamic type not implementing interface", noteType,
			`{"v":1,"t":"` + pkgName + `.Note","p":{"Shape":{"t":"string","p":"x"}}}`,
			"does not implement",
		},
		{
			"dynamic type rejected by policy", noteType,
			`{"v":1,"t":"` + pkgName + `.Note","p":{"Shape":{"t":"` + pkgName + `.Circle","p":{"Radius":1}}}}`,
			"rejected by policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.typ, tt.input, p)
			if err == nil {
				t.Fatal("Decode() error = nil, want error")
			}

			var serErr *SerializationError
			if !errors.As(err, &serErr) {
				t.Fatalf("error type = %T, want *SerializationError", err)
			}
			if serErr.Op != "decode" {
				t.Errorf("Op = %q, want decode", serErr.Op)
			}
			if !strings.Contains(serErr.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want to contain %q", serErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestCodec_ClientFields(t *testing.T) {
	c := newTestCodec(t)
	p := newTestPolicy(t, testPolicy+"@ClientFields,"+pkgName+".Note,Title,body\n")

	encoded, err := c.Encode(reflect.TypeOf((*Note)(nil)).Elem(), Note{Title: "a", Body: "b", Tags: []string{"x"}}, p)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if strings.Contains(encoded, "Tags") {
		t.Errorf("encoded value contains non-client field: %s", encoded)
	}

	_, err = c.Decode(reflect.TypeOf((*Note)(nil)).Elem(), `{"v":1,"t":"`+pkgName+`.Note","p":{"Tags":["x"]}}`, p)
	if err == nil {
		t.Error("Decode() with non-client field error = nil, want error")
	}
}

func TestCodec_InterfaceTopLevel(t *testing.T) {
	c := newTestCodec(t)
	p := newTestPolicy(t, testPolicy)
	shapeType := reflect.TypeOf((*Shape)(nil)).Elem()

	encoded, err := c.Encode(shapeType, Square{Side: 3}, p)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.Contains(encoded, `"t":"`+pkgName+`.Square"`) {
		t.Errorf("envelope does not name dynamic type: %s", encoded)
	}

	decoded, err := c.Decode(shapeType, encoded, p)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if sq, ok := decoded.(Square); !ok || sq.Side != 3 {
		t.Errorf("Decode() = %#v, want Square{3}", decoded)
	}

	nilEncoded, err := c.Encode(shapeType, nil, p)
	if err != nil {
		t.Fatalf("Encode(nil) error = %v", err)
	}
	decoded, err = c.Decode(shapeType, nilEncoded, p)
	if err != nil || decoded != nil {
		t.Errorf("Decode(nil envelope) = %v, %v, want nil, nil", decoded, err)
	}
}

func TestCodec_MaxDepth(t *testing.T) {
	c := New(WithMaxDepth(3))
	p := newTestPolicy(t, testPolicy)

	deep := &Note{Parent: &Note{Parent: &Note{Parent: &Note{}}}}
	_, err := c.Encode(reflect.TypeOf((**Note)(nil)).Elem(), deep, p)
	if err == nil || !strings.Contains(err.Error(), "maximum depth") {
		t.Errorf("Encode() error = %v, want maximum depth error", err)
	}
}

func TestTypeRegistry(t *testing.T) {
	r := NewTypeRegistry()

	if _, ok := r.Lookup("string"); !ok {
		t.Error("builtin string not pre-registered")
	}
	if err := r.Register(Square{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(Square{}); err != nil {
		t.Errorf("re-registering the same type error = %v, want nil", err)
	}
	if err := r.Register(nil); err == nil {
		t.Error("Register(nil) error = nil, want error")
	}
	if err := r.RegisterType(reflect.TypeOf((*Shape)(nil)).Elem()); err == nil {
		t.Error("RegisterType(interface) error = nil, want error")
	}

	typ, ok := r.Lookup(pkgName + ".Square")
	if !ok || typ != reflect.TypeOf((*Square)(nil)).Elem() {
		t.Errorf("Lookup(Square) = %v, %v", typ, ok)
	}
}

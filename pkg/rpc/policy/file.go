package policy

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	directiveFinalFields  = "@FinalFields"
	directiveClientFields = "@ClientFields"
)

// TypeEntry describes one type line of a policy file.
type TypeEntry struct {
	// Name is the policy type name
	Name string

	// Serializable and Instantiable must both hold for the server to encode the type
	Serializable bool
	Instantiable bool

	// Deserializable and DeserializableInstantiable must both hold for the
	// server to decode the type
	Deserializable             bool
	DeserializableInstantiable bool

	// TypeID is the stable identifier emitted by the policy generator
	TypeID string

	// Signature is the generator's type signature (optional)
	Signature string

	// Line is the 1-indexed source line
	Line int
}

// FilePolicy is a Policy parsed from a policy file.
type FilePolicy struct {
	types        map[string]*TypeEntry
	clientFields map[string][]string
	finalFields  bool
}

// ParseError reports a malformed policy file.
type ParseError struct {
	// Line is the 1-indexed line number (0 when the error is not tied to a line)
	Line int

	// Message describes the problem
	Message string

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("policy parse error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("policy parse error: %s", e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ParseBytes parses a policy file held in memory.
func ParseBytes(data []byte) (*FilePolicy, error) {
	if !utf8.Valid(data) {
		return nil, &ParseError{Message: "policy contains invalid UTF-8 encoding"}
	}
	return Parse(bytes.NewReader(data))
}

// Parse reads a policy file from r. Read failures are returned as-is so
// callers can tell I/O problems from malformed content (*ParseError).
func Parse(r io.Reader) (*FilePolicy, error) {
	p := &FilePolicy{
		types:        make(map[string]*TypeEntry),
		clientFields: make(map[string][]string),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var err error
		if strings.HasPrefix(line, "@") {
			err = p.parseDirective(line, lineNo)
		} else {
			err = p.parseType(line, lineNo)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, &ParseError{Line: lineNo + 1, Message: "line too long", Cause: err}
		}
		return nil, err
	}

	for name := range p.clientFields {
		if _, ok := p.types[name]; !ok {
			return nil, &ParseError{Message: fmt.Sprintf("client fields declared for unknown type %q", name)}
		}
	}

	return p, nil
}

func (p *FilePolicy) parseDirective(line string, lineNo int) error {
	parts := splitComponents(line)

	switch parts[0] {
	case directiveFinalFields:
		if len(parts) != 2 {
			return &ParseError{Line: lineNo, Message: "@FinalFields expects exactly one value"}
		}
		v, err := parseFlag(parts[1], lineNo)
		if err != nil {
			return err
		}
		p.finalFields = v
		return nil

	case directiveClientFields:
		if len(parts) < 2 || parts[1] == "" {
			return &ParseError{Line: lineNo, Message: "@ClientFields requires a type name"}
		}
		name := parts[1]
		if _, dup := p.clientFields[name]; dup {
			return &ParseError{Line: lineNo, Message: fmt.Sprintf("duplicate @ClientFields for %q", name)}
		}
		fields := make([]string, 0, len(parts)-2)
		for _, f := range parts[2:] {
			if f == "" {
				return &ParseError{Line: lineNo, Message: "empty field name in @ClientFields"}
			}
			fields = append(fields, f)
		}
		p.clientFields[name] = fields
		return nil
	}

	return &ParseError{Line: lineNo, Message: fmt.Sprintf("unknown directive %q", parts[0])}
}

func (p *FilePolicy) parseType(line string, lineNo int) error {
	parts := splitComponents(line)
	if len(parts) < 3 || len(parts) > 7 {
		return &ParseError{
			Line:    lineNo,
			Message: fmt.Sprintf("wrong number of elements: got %d, want 3 to 7", len(parts)),
		}
	}

	entry := &TypeEntry{Name: parts[0], Line: lineNo}
	if entry.Name == "" {
		return &ParseError{Line: lineNo, Message: "empty type name"}
	}
	if prev, dup := p.types[entry.Name]; dup {
		return &ParseError{
			Line:    lineNo,
			Message: fmt.Sprintf("type %q already declared at line %d", entry.Name, prev.Line),
		}
	}

	flags := make([]bool, 0, 4)
	for _, raw := range parts[1:min(len(parts), 5)] {
		v, err := parseFlag(raw, lineNo)
		if err != nil {
			return err
		}
		flags = append(flags, v)
	}

	entry.Serializable = flags[0]
	entry.Instantiable = flags[1]
	entry.Deserializable = entry.Serializable
	entry.DeserializableInstantiable = entry.Instantiable
	if len(flags) >= 3 {
		entry.Deserializable = flags[2]
	}
	if len(flags) == 4 {
		entry.DeserializableInstantiable = flags[3]
	}

	entry.TypeID = entry.Name
	if len(parts) >= 6 && parts[5] != "" {
		entry.TypeID = parts[5]
	}
	if len(parts) == 7 {
		entry.Signature = parts[6]
	}

	p.types[entry.Name] = entry
	return nil
}

func splitComponents(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseFlag(raw string, lineNo int) (bool, error) {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ParseError{
			Line:    lineNo,
			Message: fmt.Sprintf("invalid boolean %q", raw),
			Cause:   err,
		}
	}
	return v, nil
}

// ValidateSerialize implements Policy.
func (p *FilePolicy) ValidateSerialize(t reflect.Type) error {
	return p.validate(t, DirectionSerialize)
}

// ValidateDeserialize implements Policy.
func (p *FilePolicy) ValidateDeserialize(t reflect.Type) error {
	return p.validate(t, DirectionDeserialize)
}

func (p *FilePolicy) validate(t reflect.Type, dir Direction) error {
	if t == nil {
		return &TypeError{Direction: dir, Reason: "nil type"}
	}
	if IsPrimitive(t) || IsContainer(t) {
		return nil
	}

	name := TypeName(t)
	entry, ok := p.types[name]
	if !ok {
		return &TypeError{TypeName: name, Direction: dir, Reason: "type is not included in the serialization policy"}
	}

	switch dir {
	case DirectionSerialize:
		if !entry.Serializable || !entry.Instantiable {
			return &TypeError{TypeName: name, Direction: dir, Reason: "policy marks type as not serializable"}
		}
	case DirectionDeserialize:
		if !entry.Deserializable || !entry.DeserializableInstantiable {
			return &TypeError{TypeName: name, Direction: dir, Reason: "policy marks type as not deserializable"}
		}
	}
	return nil
}

// ClientFields implements Policy.
func (p *FilePolicy) ClientFields(t reflect.Type) ([]string, bool) {
	if t == nil {
		return nil, false
	}
	fields, ok := p.clientFields[TypeName(t)]
	if !ok {
		return nil, false
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out, true
}

// ClientFieldsByName returns the @ClientFields list declared for a type name.
func (p *FilePolicy) ClientFieldsByName(name string) ([]string, bool) {
	fields, ok := p.clientFields[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out, true
}

// SerializesFinalFields reports the @FinalFields directive.
func (p *FilePolicy) SerializesFinalFields() bool {
	return p.finalFields
}

// Lookup returns the entry for a type name.
func (p *FilePolicy) Lookup(name string) (TypeEntry, bool) {
	entry, ok := p.types[name]
	if !ok {
		return TypeEntry{}, false
	}
	return *entry, true
}

// TypeID returns the generator type id for a type name.
func (p *FilePolicy) TypeID(name string) (string, bool) {
	entry, ok := p.types[name]
	if !ok {
		return "", false
	}
	return entry.TypeID, true
}

// TypeNames returns the sorted names of all declared types.
func (p *FilePolicy) TypeNames() []string {
	names := make([]string, 0, len(p.types))
	for name := range p.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeCount returns the number of declared types.
func (p *FilePolicy) TypeCount() int {
	return len(p.types)
}

package codec

import (
	"reflect"
	"strings"

	"mercator-hq/storagerpc/pkg/rpc/policy"
)

const tagName = "storage"

type field struct {
	index    int
	name     string // Go field name
	wireName string
}

// structFields returns the fields of t exchanged under p.
func structFields(t reflect.Type, p policy.Policy) []field {
	allowed, restricted := p.ClientFields(t)
	allowedSet := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = true
	}

	fields := make([]field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		wireName := sf.Name
		if tag, ok := sf.Tag.Lookup(tagName); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				wireName = tag
			}
		}

		if restricted && !allowedSet[sf.Name] && !allowedSet[wireName] {
			continue
		}

		fields = append(fields, field{index: i, name: sf.Name, wireName: wireName})
	}
	return fields
}

// needsPolicyCheck reports whether the policy must approve t itself.
// Interfaces are judged by their dynamic type instead.
func needsPolicyCheck(t reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		return false
	}
	return !policy.IsPrimitive(t) && !policy.IsContainer(t)
}

func joinPath(base, elem string) string {
	if base == "" {
		return elem
	}
	if strings.HasPrefix(elem, "[") {
		return base + elem
	}
	return base + "." + elem
}

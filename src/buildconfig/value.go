package buildconfig

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindBool Kind = iota
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is an advanced option value. The zero Value is the empty string.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Value
	m    map[string]Value
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list Value holding a copy of vs.
func List(vs ...Value) Value { return Value{kind: KindList, list: slices.Clone(vs)} }

// Map returns a map Value holding a copy of m.
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: maps.Clone(m)} }

func (v Value) Kind() Kind { return v.kind }

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Number returns the number held by v.
func (v Value) Number() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// List returns a copy of the elements held by v.
func (v Value) List() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return slices.Clone(v.list), true
}

// Map returns a copy of the entries held by v.
func (v Value) Map() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return maps.Clone(v.m), true
}

// Interface converts v into plain Go values for template rendering.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Interface()
		}
		return out
	default:
		return v.s
	}
}

// String renders v the way it would appear in a template.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return v.s
	default:
		data, _ := json.Marshal(v.Interface())
		return string(data)
	}
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindList:
		return slices.EqualFunc(v.list, o.list, Value.Equal)
	case KindMap:
		return maps.EqualFunc(v.m, o.m, Value.Equal)
	}
	return false
}

// Coerce converts a raw option value. "true"/"1" and "false"/"0" become
// booleans; values that look like a JSON object or array are decoded;
// everything else is a string. The second result is false when a JSON
// looking value failed to decode and fell back to a string.
func Coerce(raw string) (Value, bool) {
	switch strings.ToLower(raw) {
	case "true", "1":
		return Bool(true), true
	case "false", "0":
		return Bool(false), true
	}

	if (strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}")) ||
		(strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]")) {
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return String(raw), false
		}
		return fromJSON(decoded), true
	}
	return String(raw), true
}

func fromJSON(x any) Value {
	switch t := x.(type) {
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case string:
		return String(t)
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = fromJSON(e)
		}
		return Value{kind: KindList, list: out}
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = fromJSON(e)
		}
		return Value{kind: KindMap, m: out}
	default:
		// JSON null
		return String("")
	}
}

// ParseOption splits a --opt entry into a normalised key and coerced value.
// A bare key is true. Dashes in keys become underscores.
func ParseOption(entry string) (key string, v Value, ok bool) {
	k, raw, hasValue := strings.Cut(entry, "=")
	key = strings.ReplaceAll(k, "-", "_")
	if !hasValue {
		return key, Bool(true), true
	}
	v, ok = Coerce(raw)
	return key, v, ok
}

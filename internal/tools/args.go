package tools

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Arguments is a decoded tool argument object. Numbers keep their literal
// form as json.Number.
type Arguments map[string]any

// ParseArguments decodes the model's argument string. Missing, empty or
// malformed input, and JSON that is not an object, yield an empty Arguments.
func ParseArguments(raw string) Arguments {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Arguments{}
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil || out == nil {
		return Arguments{}
	}
	return Arguments(out)
}

// Has reports whether key is present, including an explicit null.
func (a Arguments) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// IsNull reports whether key is present with a JSON null value.
func (a Arguments) IsNull(key string) bool {
	v, ok := a[key]
	return ok && v == nil
}

// String returns the value at key as trimmed text. Numbers and booleans are
// rendered in their JSON form; anything else yields "".
func (a Arguments) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Object returns the nested object at key, or an empty Arguments.
func (a Arguments) Object(key string) Arguments {
	if v, ok := a[key].(map[string]any); ok {
		return Arguments(v)
	}
	return Arguments{}
}

// Int returns the value at key as an integer. Integral numbers and numeric
// strings are accepted.
func (a Arguments) Int(key string) (int, bool) {
	switch v := a[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
		if f, err := v.Float64(); err == nil && f == float64(int(f)) {
			return int(f), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true
		}
	}
	return 0, false
}

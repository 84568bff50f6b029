package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Fields is a decoded JSON object with lenient typed accessors.
// Accessors never fail: absent or mistyped keys yield the supplied default.
type Fields map[string]any

// Has reports whether key is present and not null.
func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// String returns the value of key formatted as a string.
// Non-string scalars are formatted with their natural representation.
func (f Fields) String(key, def string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// Int returns the value of key as an int64.
func (f Fields) Int(key string, def int64) int64 {
	if n, ok := ToInt64(f[key]); ok {
		return n
	}
	return def
}

// Float returns the value of key as a float64.
func (f Fields) Float(key string, def float64) float64 {
	switch val := f[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		if n, err := val.Float64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseFloat(val, 64); err == nil {
			return n
		}
	}
	return def
}

// Object returns the nested object stored at key, or an empty Fields value.
func (f Fields) Object(key string) Fields {
	switch val := f[key].(type) {
	case map[string]any:
		return Fields(val)
	case Fields:
		return val
	}
	return Fields{}
}

// List returns the array stored at key. Elements that are not objects are
// returned as empty Fields values so callers can still count them.
func (f Fields) List(key string) []Fields {
	raw, ok := f[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Fields, len(raw))
	for i, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out[i] = Fields(m)
		} else {
			out[i] = Fields{}
		}
	}
	return out
}

// ToInt64 converts a decoded JSON number to int64.
// Fractional values are truncated toward zero.
func ToInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return int64(val), true
	case int:
		return int64(val), true
	case int64:
		return val, true
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, true
		}
		if fl, err := val.Float64(); err == nil {
			return int64(fl), true
		}
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

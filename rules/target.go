package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// asObject returns target as a JSON object. Maps are used directly; other
// values are round-tripped through JSON so structs with json tags work too.
// ok is false for nil targets and for targets that do not encode to an object.
func asObject(target any) (obj map[string]any, ok bool) {
	switch t := target.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return t, true
	}
	data, err := json.Marshal(target)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	return obj, obj != nil
}

// asValue round-trips target through JSON so expression rules see plain
// maps, lists, strings, float64s and bools. Numbers are always doubles.
func asValue(target any) any {
	switch t := target.(type) {
	case nil, string, bool, float64:
		return t
	}
	data, err := json.Marshal(target)
	if err != nil {
		return target
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return target
	}
	return v
}

// textOf renders target for keyword checks: strings as-is, everything else
// as JSON.
func textOf(target any) string {
	if s, ok := target.(string); ok {
		return s
	}
	data, err := json.Marshal(target)
	if err != nil {
		return fmt.Sprint(target)
	}
	return string(data)
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func obj(m map[string]any, key string) map[string]any {
	o, _ := m[key].(map[string]any)
	return o
}

func list(m map[string]any, key string) []any {
	switch v := m[key].(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}

func contains(items []any, want any) bool {
	for _, it := range items {
		if reflect.DeepEqual(it, want) {
			return true
		}
	}
	return false
}

func has(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// number converts JSON-ish numeric values. ok is false for anything else.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// quantity parses values such as "99.5%", "120ms" or plain numbers after
// stripping the given unit suffix.
func quantity(v any, unit string) (float64, error) {
	if n, ok := number(v); ok {
		return n, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("not a number: %v", v)
	}
	return strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), unit)), 64)
}

// stringList accepts either a list of strings or a single string.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			out = append(out, fmt.Sprint(it))
		}
		return out
	}
	return nil
}

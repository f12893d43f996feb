package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var leadingNumber = regexp.MustCompile(`[-+]?\d+(?:[.,]\d+)?`)

// CoerceString returns a trimmed string for v. Numbers and booleans are
// formatted; nil, empty strings and "null"-like placeholders are absent.
func CoerceString(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = strings.TrimSpace(val)
	case fmt.Stringer:
		s = strings.TrimSpace(val.String())
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(val)
	default:
		return "", false
	}

	switch strings.ToLower(s) {
	case "", "null", "none", "n/a", "unknown", "not specified", "not provided":
		return "", false
	}
	return s, true
}

// CoerceFloat extracts a number from v. Strings such as "5+ years" yield 5.
func CoerceFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return CoerceFloat(f)
		}
		match := leadingNumber.FindString(trimmed)
		if match == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// CoerceStrings turns an array or a comma/semicolon/newline separated string
// into a list of non-empty strings.
func CoerceStrings(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return compact(val), true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if obj, ok := item.(map[string]any); ok {
				item = namedValue(obj)
			}
			if s, ok := CoerceString(item); ok {
				out = append(out, s)
			}
		}
		return out, true
	case string:
		if _, ok := CoerceString(val); !ok {
			return nil, false
		}
		parts := strings.FieldsFunc(val, func(r rune) bool {
			return r == ',' || r == ';' || r == '\n'
		})
		return compact(parts), true
	default:
		return nil, false
	}
}

// namedValue picks the label of list items emitted as objects, for example
// {"name": "go", "level": "expert"}.
func namedValue(obj map[string]any) any {
	for _, key := range []string{"name", "skill", "value", "title"} {
		if v, ok := obj[key]; ok {
			return v
		}
	}
	return nil
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(item), "-*•"))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

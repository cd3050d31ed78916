// internal/common/normalize/normalize.go

// Package normalize coerces loosely typed extracted values into the typed fields the scoring stages use.
// nil, empty strings and whitespace are treated as absent everywhere.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var currencyPrefixes = []string{"AED", "aed", "Dhs", "DHS", "dhs", "$", "USD", "usd"}

// Float parses numbers, numeric strings with thousands separators and currency prefixes.
// The second result is false when raw is absent or not numeric.
func Float(raw interface{}) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, ok := parseNumericString(v)
		if !ok {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumericString(s string) (float64, bool) {
	cleaned := strings.TrimSpace(s)
	for _, p := range currencyPrefixes {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, p))
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Int truncates a numeric value towards zero.
func Int(raw interface{}) (int, bool) {
	f, ok := Float(raw)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// IsPresent reports whether raw carries a non-empty value.
func IsPresent(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []interface{}:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}

// String renders raw as trimmed text; numbers print without exponent.
func String(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case []interface{}:
		return strings.Join(StringSlice(v), ", ")
	case []string:
		return strings.Join(StringSlice(v), ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// StringSlice accepts a list or a comma separated string and drops empty entries.
func StringSlice(raw interface{}) []string {
	var parts []string
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		parts = v
	case []interface{}:
		for _, item := range v {
			parts = append(parts, String(item))
		}
	case string:
		parts = strings.Split(v, ",")
	default:
		parts = []string{String(v)}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Digits keeps only the decimal digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Text lowercases s and collapses whitespace runs into single spaces.
func Text(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace), " ")
}

// Token turns free text like "Basic Computer" into "basic_computer".
func Token(s string) string {
	return strings.ReplaceAll(Text(s), " ", "_")
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Round3 rounds half away from zero to three decimals.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// FloatPtr returns a pointer to the parsed value or nil when absent.
func FloatPtr(raw interface{}) *float64 {
	f, ok := Float(raw)
	if !ok {
		return nil
	}
	return &f
}

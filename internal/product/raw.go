package product

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RawRecord is the untrusted object returned by the LLM.
type RawRecord map[string]any

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseNumber strips currency symbols and thousands separators and reads
// the first numeric token of s.
func ParseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Has reports whether key is present with a non-null value.
func (r RawRecord) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// String returns the value at key as trimmed text.
func (r RawRecord) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Float coerces the value at key to a number; text goes through ParseNumber.
func (r RawRecord) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		return ParseNumber(v)
	default:
		return 0, false
	}
}

// Int coerces the value at key to an integer, rounding fractions.
func (r RawRecord) Int(key string) (int, bool) {
	f, ok := r.Float(key)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

// Bool coerces the value at key, reporting whether it was recognisable.
func (r RawRecord) Bool(key string) (bool, bool) {
	switch v := r[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1", "in stock", "in_stock", "available":
			return true, true
		case "false", "no", "0", "out of stock", "out_of_stock", "unavailable":
			return false, true
		}
	case float64:
		return v != 0, true
	}
	return false, false
}

// Package coerce converts raw source values into typed document values.
//
// Every function is total: unparsable input never produces an error, it
// resolves to the caller's default value (nil when no default is declared,
// which becomes a JSON null in the output document). The mapper counts
// fallbacks for the run summary via the boolean return.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Value coerces raw into the named target type. The boolean reports whether
// the raw value was used; false means the default was substituted.
func Value(raw any, targetType string, def any) (any, bool) {
	if raw == nil {
		return def, false
	}
	switch targetType {
	case "", "string":
		return asString(raw), true
	case "integer":
		if n, ok := asInt(raw); ok {
			return n, true
		}
		return def, false
	case "float":
		if f, ok := asFloat(raw); ok {
			return f, true
		}
		return def, false
	case "boolean":
		if b, ok := asBool(raw); ok {
			return b, true
		}
		return def, false
	case "date":
		if t, ok := asDate(raw); ok {
			return t, true
		}
		return def, false
	case "list_of_strings":
		if list, ok := asStringList(raw); ok {
			return list, true
		}
		return def, false
	case "passthrough":
		return raw, true
	default:
		return def, false
	}
}

// CombineDateParts builds a date from separate year/month/day values. The
// year is mandatory; a missing or invalid month or day defaults to 1, and the
// day is clamped to the month's length. Returns the default when the year is
// absent or unparsable.
func CombineDateParts(year, month, day any, def any) (any, bool) {
	y, ok := asInt(year)
	if !ok || y <= 0 {
		return def, false
	}

	m := int64(1)
	if v, ok := asInt(month); ok && v >= 1 && v <= 12 {
		m = v
	}
	d := int64(1)
	if v, ok := asInt(day); ok && v >= 1 && v <= 31 {
		d = v
	}
	if max := daysIn(int(y), time.Month(m)); d > int64(max) {
		d = int64(max)
	}

	return time.Date(int(y), time.Month(m), int(d), 0, 0, 0, 0, time.UTC), true
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "t", "yes", "y":
			return true, true
		case "false", "0", "f", "no", "n":
			return false, true
		default:
			return false, false
		}
	case float64:
		return v != 0, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	default:
		return false, false
	}
}

func asDate(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// asStringList accepts native lists (coercing each element, dropping
// failures) and comma-separated strings.
func asStringList(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, asString(item))
		}
		return out, true
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

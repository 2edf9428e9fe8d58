// Package convert provides type conversion utilities.
package convert

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ToFloat64 converts various numeric types to float64.
// Returns 0 for unsupported types or parse failures.
func ToFloat64(v any) float64 {
	f, _ := Float(v)
	return f
}

// Float is ToFloat64 with an ok flag. Strings such as "85", " 0.7 " and "85%"
// are accepted; NaN and Inf are rejected.
func Float(v any) (float64, bool) {
	var (
		f  float64
		ok bool
	)
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f, ok = t, true
	case float32:
		f, ok = float64(t), true
	case int:
		f, ok = float64(t), true
	case int64:
		f, ok = float64(t), true
	case int32:
		f, ok = float64(t), true
	case uint64:
		f, ok = float64(t), true
	case json.Number:
		parsed, err := t.Float64()
		f, ok = parsed, err == nil
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(t), "%")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		f, ok = parsed, err == nil
	default:
		return 0, false
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

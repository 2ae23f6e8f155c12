package relay

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// lookup returns the value of the first key present (non-nil) in data.
func lookup(data map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := data[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// num reads the first present key as a number, def when absent or unparsable.
func num(data map[string]any, def float64, keys ...string) float64 {
	v, ok := lookup(data, keys...)
	if !ok {
		return def
	}
	if f, ok := toF64(v); ok {
		return f
	}
	return def
}

// integer is num truncated toward zero.
func integer(data map[string]any, def int, keys ...string) int {
	v, ok := lookup(data, keys...)
	if !ok {
		return def
	}
	if s, isStr := v.(string); isStr {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	if f, ok := toF64(v); ok {
		return int(f)
	}
	return def
}

// toF64 accepts JSON numbers and numeric strings.
func toF64(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		p, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	return f, isFinite(f)
}

// object returns data[key] when it is a nested object.
func object(data map[string]any, key string) (map[string]any, bool) {
	m, ok := data[key].(map[string]any)
	return m, ok
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

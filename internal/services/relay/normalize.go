package relay

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawKey holds the original text when a payload is not structured.
const RawKey = "_raw"

// Normalize turns a bus payload into a key/value map. JSON objects are
// returned as decoded (nested objects stay nested maps). Anything else is read
// as plain "key:value,key2:value2" telemetry. It never fails: in the worst case
// the map only holds the raw text.
func Normalize(payload []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err == nil && m != nil {
		return m
	}
	return parsePlain(string(payload))
}

func parsePlain(raw string) map[string]any {
	out := map[string]any{RawKey: raw}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		v = strings.TrimSpace(v)
		if f, err := strconv.ParseFloat(v, 64); err == nil && isFinite(f) {
			out[k] = f
		} else {
			out[k] = v
		}
	}
	return out
}

package scene

import (
	"encoding/json"
	"math"

	"whiteboard-backend/internal/model"
)

// Sanitization is the sole defense against propagating corrupt numeric state
// (NaN zoom, infinite scroll offsets, non-numeric geometry) to every client
// in a room. It runs on every inbound write, before merge and before
// persistence, and is idempotent.

// SanitizeAppState returns a normalized copy of appState:
//   - zoom: accepts a bare number or a {value} wrapper; non-finite or <= 0
//     values coerce to 1. The stored shape is always the {value} wrapper.
//   - scrollX/scrollY: non-finite or non-numeric values coerce to 0.
//
// Only keys the payload actually carries are touched. Absent keys stay
// absent, so a partial appState merges shallowly without clobbering stored
// values with defaults. Other keys pass through untouched.
func SanitizeAppState(appState model.AppState) model.AppState {
	out := make(model.AppState, len(appState))
	for k, v := range appState {
		out[k] = v
	}

	if raw, ok := out["zoom"]; ok {
		zoom := 1.0
		if v, ok := numericValue(raw); ok && v > 0 {
			zoom = v
		}
		out["zoom"] = map[string]any{"value": zoom}
	}

	for _, key := range []string{"scrollX", "scrollY"} {
		raw, ok := out[key]
		if !ok {
			continue
		}
		v, ok := numericValue(raw)
		if !ok {
			v = 0
		}
		out[key] = v
	}

	return out
}

// SanitizeElements returns a copy of elements with non-finite geometry
// coerced to 0.
func SanitizeElements(elements []model.Element) []model.Element {
	out := make([]model.Element, len(elements))
	copy(out, elements)
	for i := range out {
		out[i].X = finiteOrZero(out[i].X)
		out[i].Y = finiteOrZero(out[i].Y)
		out[i].Width = finiteOrZero(out[i].Width)
		out[i].Height = finiteOrZero(out[i].Height)
	}
	return out
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// numericValue extracts a finite float from the loosely-typed values JSON
// decoding produces: plain numbers, json.Number, or the {value} zoom wrapper.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case map[string]any:
		inner, ok := n["value"]
		if !ok {
			return 0, false
		}
		return numericValue(inner)
	default:
		return 0, false
	}
}

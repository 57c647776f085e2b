package replay

import "encoding/json"

// widen mirrors recorder's jsonWiden: it converts an arbitrary Go value into
// canon's JSON-compatible universe so a live edge's typed input compares
// equal to the recorded, already-widened fingerprint regardless of which
// concrete Go type the adapter happens to pass.
func widen(v any) any {
	switch v.(type) {
	case map[string]any, []any, string, float64, int, int64, bool:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"_marshal_error": err.Error()}
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{"_unmarshal_error": err.Error()}
	}
	return out
}

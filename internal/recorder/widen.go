package recorder

import "encoding/json"

// jsonWiden converts an arbitrary Go value into canon's JSON-compatible
// universe (map[string]any, []any, string, float64, bool, nil) by round
// tripping it through encoding/json. This is what lets adapters pass
// typed request/response structs straight into Recorder.Do without first
// hand-building a map.
func jsonWiden(v any) any {
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

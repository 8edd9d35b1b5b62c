package schema

import "encoding/json"

// ToolSpec is one tool registry entry as advertised by the external tool
// host.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema json.RawMessage

	// Dedupe marks tools whose repeated identical invocation produces a
	// duplicate side effect. Identical calls to such tools are executed
	// at most once within the loop-detection window.
	Dedupe bool
}

// Definition renders the tool in OpenAI function-calling format.
func (t ToolSpec) Definition() map[string]any {
	var params any
	if err := json.Unmarshal(t.InputSchema, &params); err != nil || params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  params,
		},
	}
}

// DeclaresParam reports whether the input schema lists name under its
// top-level "properties".
func (t ToolSpec) DeclaresParam(name string) bool {
	var s struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(t.InputSchema, &s); err != nil {
		return false
	}
	_, ok := s.Properties[name]
	return ok
}

// Definitions converts a registry into the provider-facing tool list.
func Definitions(specs []ToolSpec) []map[string]any {
	out := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Definition())
	}
	return out
}

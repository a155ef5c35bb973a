package schema

import (
	"context"
	"encoding/json"
)

// Tool is the interface all model-callable tools must satisfy.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema (as raw JSON bytes) for this tool's parameters.
	Parameters() json.RawMessage
	// Execute runs the tool with arguments already validated against Parameters.
	// Domain failures are returned as data (e.g. {"error": "..."}); a non-nil
	// error means the tool itself failed.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// ToolSpec is the provider-facing description of a tool.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// SpecOf returns the ToolSpec describing t.
func SpecOf(t Tool) ToolSpec {
	return ToolSpec{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// ParametersMap decodes Parameters into a generic map, falling back to an
// empty object schema.
func (s ToolSpec) ParametersMap() map[string]any {
	var params map[string]any
	if err := json.Unmarshal(s.Parameters, &params); err != nil || params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return params
}

// ToWireMap returns the spec in OpenAI function-calling format.
func (s ToolSpec) ToWireMap() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"parameters":  s.ParametersMap(),
		},
	}
}

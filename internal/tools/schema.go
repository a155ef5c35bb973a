package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema derives the JSON Schema for T's exported fields.
// Fields without omitempty are required; descriptions come from the
// jsonschema_description tag and enums from jsonschema:"enum=...".
func GenerateSchema[T any]() json.RawMessage {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	s := reflector.Reflect(v)
	s.Version = ""
	s.ID = ""

	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("generate schema for %T: %v", v, err))
	}
	return data
}

// WithPropertyDescription returns a copy of params with the description of
// one top-level property replaced. Used when a description is only known at
// runtime (e.g. a database schema summary).
func WithPropertyDescription(params json.RawMessage, property, description string) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	props, _ := m["properties"].(map[string]any)
	prop, ok := props[property].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("property %q not found", property)
	}
	prop["description"] = description
	return json.Marshal(m)
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// FuncTool adapts a typed Go function into a schema.Tool. The parameter
// schema is derived from In, and validated arguments are bound to In before
// the function is called.
type FuncTool[In, Out any] struct {
	name        string
	description string
	params      json.RawMessage
	fn          func(ctx context.Context, in In) (Out, error)
}

// NewFunc creates a FuncTool whose parameters are generated from In.
func NewFunc[In, Out any](name, description string, fn func(ctx context.Context, in In) (Out, error)) *FuncTool[In, Out] {
	return &FuncTool[In, Out]{
		name:        name,
		description: description,
		params:      GenerateSchema[In](),
		fn:          fn,
	}
}

// WithParameters replaces the generated parameter schema.
func (t *FuncTool[In, Out]) WithParameters(params json.RawMessage) *FuncTool[In, Out] {
	t.params = params
	return t
}

func (t *FuncTool[In, Out]) Name() string                { return t.name }
func (t *FuncTool[In, Out]) Description() string         { return t.description }
func (t *FuncTool[In, Out]) Parameters() json.RawMessage { return t.params }

func (t *FuncTool[In, Out]) Execute(ctx context.Context, args map[string]any) (any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	var in In
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("bind arguments: %w", err)
	}
	return t.fn(ctx, in)
}

package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// RegistryBuilder accumulates tools during the construction phase.
// Call Build() to produce an immutable Registry ready for use.
type RegistryBuilder struct {
	tools map[string]schema.Tool
	order []string
	errs  []error
}

// NewRegistryBuilder returns a fresh RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{tools: make(map[string]schema.Tool)}
}

// Register adds a tool. Names must be unique and the parameter schema must be
// a JSON object.
func (b *RegistryBuilder) Register(tool schema.Tool) error {
	if tool == nil {
		return errors.New("register tool: nil tool")
	}
	name := tool.Name()
	if name == "" {
		return errors.New("register tool: empty name")
	}
	if _, dup := b.tools[name]; dup {
		return fmt.Errorf("register tool %q: duplicate name", name)
	}
	var params map[string]any
	if err := json.Unmarshal(tool.Parameters(), &params); err != nil || params == nil {
		return fmt.Errorf("register tool %q: parameters must be a JSON schema object", name)
	}
	b.tools[name] = tool
	b.order = append(b.order, name)
	return nil
}

// WithTool adds a tool and returns the builder, enabling chaining.
// Registration errors are reported by Build.
func (b *RegistryBuilder) WithTool(tool schema.Tool) *RegistryBuilder {
	if err := b.Register(tool); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Build produces an immutable Registry from the accumulated tools.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	tools := make(map[string]schema.Tool, len(b.tools))
	for k, v := range b.tools {
		tools[k] = v
	}
	order := make([]string, len(b.order))
	copy(order, b.order)
	return &Registry{tools: tools, order: order}, nil
}

package tools

import (
	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// ToolName is the canonical name of a built-in tool.
type ToolName string

const (
	ToolPaymentStatus   ToolName = "retrieve_payment_status"
	ToolPaymentDate     ToolName = "retrieve_payment_date"
	ToolCurrentWeather  ToolName = "get_current_weather"
	ToolWeatherForecast ToolName = "get_n_day_weather_forecast"
	ToolAskDatabase     ToolName = "ask_database"
	ToolRequest         ToolName = "request"
)

// Registry holds a fixed set of named tools in registration order.
// It is immutable once built and safe for concurrent use.
type Registry struct {
	tools map[string]schema.Tool
	order []string
}

// Resolve returns the tool registered under name, or an ErrUnknownTool error.
func (r *Registry) Resolve(name string) (schema.Tool, error) {
	if t, ok := r.tools[name]; ok {
		return t, nil
	}
	return nil, schema.NewUnknownToolError(name)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Specs returns the provider-facing specs of all tools in registration order.
func (r *Registry) Specs() []schema.ToolSpec {
	out := make([]schema.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, schema.SpecOf(r.tools[name]))
	}
	return out
}

package schema

import (
	"context"
	"fmt"
	"strings"
)

// ToolChoiceMode is the policy constraining whether the model must call tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNamed    ToolChoiceMode = "named"
	ToolChoiceNone     ToolChoiceMode = "none"
)

// ToolChoice tells a provider how tools may be used for one request.
// Name is set only when Mode is ToolChoiceNamed.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}

func AutoChoice() ToolChoice { return ToolChoice{Mode: ToolChoiceAuto} }
func RequireAny() ToolChoice { return ToolChoice{Mode: ToolChoiceRequired} }
func NoTools() ToolChoice    { return ToolChoice{Mode: ToolChoiceNone} }

func RequireTool(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceNamed, Name: name}
}

// IsZero reports whether no choice was set; providers treat it as auto.
func (c ToolChoice) IsZero() bool { return c.Mode == "" }

func (c ToolChoice) String() string {
	switch c.Mode {
	case "":
		return string(ToolChoiceAuto)
	case ToolChoiceNamed:
		return "tool:" + c.Name
	default:
		return string(c.Mode)
	}
}

// ParseToolChoice accepts "auto", "any" or "required", "none", and
// "tool:<name>".
func ParseToolChoice(s string) (ToolChoice, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "auto":
		return AutoChoice(), nil
	case "any", "required":
		return RequireAny(), nil
	case "none":
		return NoTools(), nil
	}
	if name, ok := strings.CutPrefix(s, "tool:"); ok && name != "" {
		return RequireTool(name), nil
	}
	return ToolChoice{}, ConfigurationError("invalid tool choice %q", s)
}

// Check verifies that calls satisfy the choice: required needs at least one
// call, named needs exactly one call of that tool, none allows no calls.
func (c ToolChoice) Check(calls []ToolCall) error {
	switch c.Mode {
	case ToolChoiceRequired:
		if len(calls) == 0 {
			return fmt.Errorf("%w: a tool call was required, model returned none", ErrToolChoice)
		}
	case ToolChoiceNamed:
		if len(calls) != 1 || calls[0].Name != c.Name {
			return fmt.Errorf("%w: expected exactly one call to %q, got %s", ErrToolChoice, c.Name, callNames(calls))
		}
	case ToolChoiceNone:
		if len(calls) > 0 {
			return fmt.Errorf("%w: tools were disabled, model returned %s", ErrToolChoice, callNames(calls))
		}
	}
	return nil
}

func callNames(calls []ToolCall) string {
	if len(calls) == 0 {
		return "no calls"
	}
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// ChatOptions configures a single LLM chat request.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	ToolChoice  ToolChoice
}

func NewChatOptions(model string, maxTokens int, temperature float64) ChatOptions {
	return ChatOptions{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// WithToolChoice returns a copy of o using choice.
func (o ChatOptions) WithToolChoice(choice ToolChoice) ChatOptions {
	o.ToolChoice = choice
	return o
}

// Usage is the token accounting reported by a provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMResponse is the normalised response from any LLM provider.
type LLMResponse struct {
	Content      *string // nil when the response contains only tool calls
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// HasToolCalls reports whether the response contains at least one tool call.
func (r LLMResponse) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// Message converts the response into the assistant message to append to the
// conversation.
func (r LLMResponse) Message() Message {
	return NewAssistantMessage(r.Content, r.ToolCalls)
}

// LLMProvider is the interface every LLM backend must satisfy.
type LLMProvider interface {
	Chat(ctx context.Context, conv *Conversation, tools []ToolSpec, opts ChatOptions) (LLMResponse, error)
	DefaultModel() string
}

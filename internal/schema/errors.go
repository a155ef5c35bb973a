package schema

import (
	"errors"
	"fmt"
)

// Error kinds. Every error surfaced by the tool-calling pipeline wraps one of
// these so callers can branch with errors.Is.
var (
	ErrTransientNetwork = errors.New("transient network error")
	ErrArgumentParse    = errors.New("argument parse error")
	ErrUnknownTool      = errors.New("unknown tool")
	ErrToolExecution    = errors.New("tool execution error")
	ErrConfiguration    = errors.New("configuration error")
	ErrToolChoice       = errors.New("tool choice violated")
)

// ToolError describes a failure tied to one tool call.
type ToolError struct {
	Kind   error // one of the Err* kinds above
	Tool   string
	CallID string
	Err    error
}

func (e *ToolError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%v: %s", e.Kind, e.Tool)
	case e.Tool == "":
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Tool, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *ToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewArgumentParseError(tool, callID string, err error) *ToolError {
	return &ToolError{Kind: ErrArgumentParse, Tool: tool, CallID: callID, Err: err}
}

func NewUnknownToolError(tool string) *ToolError {
	return &ToolError{Kind: ErrUnknownTool, Tool: tool}
}

func NewToolExecutionError(tool, callID string, err error) *ToolError {
	return &ToolError{Kind: ErrToolExecution, Tool: tool, CallID: callID, Err: err}
}

// ConfigurationError formats a message wrapped as an ErrConfiguration.
func ConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

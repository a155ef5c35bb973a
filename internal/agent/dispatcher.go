package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
	"github.com/erangalds/t-tool-calling-with-llms/internal/tools"
)

// ToolResolver looks tools up by name. *tools.Registry satisfies it.
type ToolResolver interface {
	Resolve(name string) (schema.Tool, error)
}

// Outcome is the result of dispatching one tool call. Exactly one of Result
// and Err is meaningful.
type Outcome struct {
	Call   schema.ToolCall
	Result any
	Err    error
}

// Content renders the outcome as the tool message the model will see.
// Failures become {"error": "..."} so the conversation never stalls.
func (o Outcome) Content() string {
	if o.Err != nil {
		return errorPayload(o.Err)
	}
	if s, ok := o.Result.(string); ok {
		return s
	}
	data, err := json.Marshal(o.Result)
	if err != nil {
		return errorPayload(err)
	}
	return string(data)
}

func errorPayload(err error) string {
	msg := err.Error()
	var te *schema.ToolError
	if errors.As(err, &te) && errors.Is(te.Kind, schema.ErrUnknownTool) {
		msg = "tool not found: " + te.Tool
	}
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}

// Dispatcher executes the tool calls of one assistant message.
// It never touches the conversation; folding is a separate step.
type Dispatcher struct {
	resolver ToolResolver
	parallel bool
}

// NewDispatcher returns a Dispatcher over resolver. When parallel is true the
// calls of one assistant message run concurrently.
func NewDispatcher(resolver ToolResolver, parallel bool) *Dispatcher {
	return &Dispatcher{resolver: resolver, parallel: parallel}
}

// Dispatch runs every call and returns one Outcome per call in call order.
// A failing call does not cancel its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []schema.ToolCall) []Outcome {
	outcomes := make([]Outcome, len(calls))
	if !d.parallel || len(calls) < 2 {
		for i, call := range calls {
			outcomes[i] = d.outcome(ctx, call)
		}
		return outcomes
	}

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			outcomes[i] = d.outcome(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (d *Dispatcher) outcome(ctx context.Context, call schema.ToolCall) Outcome {
	result, err := d.DispatchCall(ctx, call)
	if err != nil {
		slog.Warn("Tool call failed", "name", call.Name, "id", call.ID, "err", err)
	}
	return Outcome{Call: call, Result: result, Err: err}
}

// DispatchCall parses, resolves, validates and executes a single call.
//
// Errors are *schema.ToolError values of kind ErrArgumentParse,
// ErrUnknownTool or ErrToolExecution.
func (d *Dispatcher) DispatchCall(ctx context.Context, call schema.ToolCall) (any, error) {
	args, err := call.ArgumentsObject()
	if err != nil {
		return nil, schema.NewArgumentParseError(call.Name, call.ID, err)
	}

	tool, err := d.resolver.Resolve(call.Name)
	if err != nil {
		return nil, err
	}

	if err := tools.ValidateArguments(tool.Parameters(), args); err != nil {
		return nil, schema.NewArgumentParseError(call.Name, call.ID, err)
	}

	result, err := safeExecute(ctx, tool, args)
	if err != nil {
		return nil, schema.NewToolExecutionError(call.Name, call.ID, err)
	}

	if _, err := json.Marshal(result); err != nil {
		return nil, schema.NewToolExecutionError(call.Name, call.ID, fmt.Errorf("result is not JSON-serializable: %w", err))
	}
	return result, nil
}

func safeExecute(ctx context.Context, tool schema.Tool, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tool.Execute(ctx, args)
}

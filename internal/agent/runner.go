package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
	"github.com/erangalds/t-tool-calling-with-llms/internal/shared/llmutils"
)

// ToolSet is what the runner needs from a tool registry.
type ToolSet interface {
	ToolResolver
	Specs() []schema.ToolSpec
}

// Settings configures one Runner.
type Settings struct {
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string // added once, only to an empty conversation
	FollowUp     bool   // fold tool results and ask the model for a final answer
	Parallel     bool   // dispatch sibling tool calls concurrently
}

// Observer is notified of every message appended during a turn.
type Observer interface {
	OnMessage(turnID string, msg schema.Message)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(turnID string, msg schema.Message)

func (f ObserverFunc) OnMessage(turnID string, msg schema.Message) { f(turnID, msg) }

type nopObserver struct{}

func (nopObserver) OnMessage(string, schema.Message) {}

// TurnResult summarises one RunTurn.
type TurnResult struct {
	TurnID     string
	ToolCalls  []schema.ToolCall
	Outcomes   []Outcome
	Final      string // last assistant text, "" when the model only called tools
	ModelCalls int
	Usage      schema.Usage
}

// Runner drives one linear turn:
// user input → model → (dispatch → fold → model)? → done.
type Runner struct {
	provider   schema.LLMProvider
	tools      ToolSet
	dispatcher *Dispatcher
	settings   Settings
	observer   Observer
}

// NewRunner constructs a Runner. observer may be nil.
func NewRunner(provider schema.LLMProvider, tools ToolSet, settings Settings, observer Observer) *Runner {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Runner{
		provider:   provider,
		tools:      tools,
		dispatcher: NewDispatcher(tools, settings.Parallel),
		settings:   settings,
		observer:   observer,
	}
}

// Settings returns the runner's settings.
func (r *Runner) Settings() Settings { return r.settings }

// RunTurn appends userText to conv and runs one turn under choice.
//
// The first reply must satisfy choice (schema.ErrToolChoice otherwise); on
// violation nothing past the user message is appended and no further model
// call is made. The follow-up call, when enabled, runs with tools disabled.
func (r *Runner) RunTurn(ctx context.Context, conv *schema.Conversation, userText string, choice schema.ToolChoice) (TurnResult, error) {
	res := TurnResult{TurnID: ulid.Make().String()}
	log := slog.With("turn", res.TurnID)

	if conv.Len() == 0 && r.settings.SystemPrompt != "" {
		conv.AddSystem(r.settings.SystemPrompt)
		r.notifyLast(res.TurnID, conv)
	}
	conv.AddUser(userText)
	r.notifyLast(res.TurnID, conv)

	specs := r.tools.Specs()
	opts := schema.NewChatOptions(r.settings.Model, r.settings.MaxTokens, r.settings.Temperature).WithToolChoice(choice)

	log.Info("Model call", "choice", choice.String(), "tools", len(specs), "messages", conv.Len())
	resp, err := r.chat(ctx, &res, conv, specs, opts)
	if err != nil {
		return res, err
	}
	if err := choice.Check(resp.ToolCalls); err != nil {
		return res, err
	}

	conv.AddAssistant(resp.Content, resp.ToolCalls)
	r.notifyLast(res.TurnID, conv)
	res.ToolCalls = resp.ToolCalls

	if !resp.HasToolCalls() {
		res.Final = llmutils.StripThink(derefString(resp.Content))
		return res, nil
	}

	for _, tc := range resp.ToolCalls {
		log.Info("Tool call", "name", tc.Name, "id", tc.ID, "args", llmutils.Truncate(tc.Arguments, 200))
	}

	res.Outcomes = r.dispatcher.Dispatch(ctx, resp.ToolCalls)
	before := conv.Len()
	if err := Fold(conv, res.Outcomes); err != nil {
		return res, err
	}
	for _, m := range conv.Messages()[before:] {
		r.observer.OnMessage(res.TurnID, m)
	}

	if !r.settings.FollowUp {
		return res, nil
	}

	log.Info("Follow-up model call", "hint", llmutils.ToolHint(resp.ToolCalls))
	final, err := r.chat(ctx, &res, conv, specs, opts.WithToolChoice(schema.NoTools()))
	if err != nil {
		return res, err
	}
	if final.HasToolCalls() {
		log.Warn("Ignoring tool calls in follow-up reply", "calls", llmutils.ToolHint(final.ToolCalls))
	}
	conv.AddAssistant(final.Content, nil)
	r.notifyLast(res.TurnID, conv)
	res.Final = llmutils.StripThink(derefString(final.Content))
	return res, nil
}

func (r *Runner) chat(
	ctx context.Context,
	res *TurnResult,
	conv *schema.Conversation,
	specs []schema.ToolSpec,
	opts schema.ChatOptions,
) (schema.LLMResponse, error) {
	resp, err := r.provider.Chat(ctx, conv, specs, opts)
	res.ModelCalls++
	if err != nil {
		slog.Error("LLM error", "turn", res.TurnID, "err", err)
		return schema.LLMResponse{}, fmt.Errorf("model call: %w", err)
	}
	res.Usage.PromptTokens += resp.Usage.PromptTokens
	res.Usage.CompletionTokens += resp.Usage.CompletionTokens
	res.Usage.TotalTokens += resp.Usage.TotalTokens
	return resp, nil
}

func (r *Runner) notifyLast(turnID string, conv *schema.Conversation) {
	if m, ok := conv.Last(); ok {
		r.observer.OnMessage(turnID, m)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// scriptedProvider replays canned responses and records each request.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []schema.LLMResponse
	err       error
	choices   []schema.ToolChoice
	lengths   []int
}

func (p *scriptedProvider) DefaultModel() string { return "scripted" }

func (p *scriptedProvider) Chat(_ context.Context, conv *schema.Conversation, _ []schema.ToolSpec, opts schema.ChatOptions) (schema.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.choices = append(p.choices, opts.ToolChoice)
	p.lengths = append(p.lengths, conv.Len())
	if p.err != nil {
		return schema.LLMResponse{}, p.err
	}
	if len(p.responses) == 0 {
		return schema.LLMResponse{}, errors.New("script exhausted")
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func text(s string) *string { return &s }

func toolReply(calls ...schema.ToolCall) schema.LLMResponse {
	return schema.LLMResponse{ToolCalls: calls, FinishReason: "tool_calls", Usage: schema.Usage{TotalTokens: 10}}
}

func textReply(s string) schema.LLMResponse {
	return schema.LLMResponse{Content: text(s), FinishReason: "stop", Usage: schema.Usage{TotalTokens: 5}}
}

func TestRunTurn_FollowUp(t *testing.T) {
	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolReply(statusCall("c1", `{"transaction_id":"T1001"}`)),
		textReply("Your transaction T1001 has been paid."),
	}}
	var seen []schema.Role
	observer := ObserverFunc(func(_ string, m schema.Message) { seen = append(seen, m.Role) })
	r := NewRunner(provider, paymentRegistry(t), Settings{FollowUp: true, SystemPrompt: "Be brief."}, observer)

	conv := schema.NewConversation()
	res, err := r.RunTurn(context.Background(), conv, "What's the status of my transaction T1001?", schema.RequireAny())
	require.NoError(t, err)

	assert.NotEmpty(t, res.TurnID)
	assert.Equal(t, 2, res.ModelCalls)
	assert.Equal(t, 15, res.Usage.TotalTokens)
	assert.Equal(t, "Your transaction T1001 has been paid.", res.Final)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, map[string]string{"status": "Paid"}, res.Outcomes[0].Result)

	assert.Equal(t, []schema.ToolChoice{schema.RequireAny(), schema.NoTools()}, provider.choices)
	assert.Equal(t, []int{2, 4}, provider.lengths)
	assert.Equal(t,
		[]schema.Role{schema.RoleSystem, schema.RoleUser, schema.RoleAssistant, schema.RoleTool, schema.RoleAssistant},
		seen)
	assert.Equal(t, 5, conv.Len())
}

func TestRunTurn_NamedChoiceWithoutFollowUp(t *testing.T) {
	forecast := fnTool{
		name:   "get_weather",
		params: `{"type":"object","properties":{"location":{"type":"string"}},"required":["location"]}`,
		fn: func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"location": args["location"], "temperature": 12.5}, nil
		},
	}
	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolReply(schema.ToolCall{ID: "w1", Name: "get_weather", Arguments: `{"location":"Glasgow"}`}),
	}}
	r := NewRunner(provider, paymentRegistry(t, forecast), Settings{}, nil)

	conv := schema.NewConversation()
	res, err := r.RunTurn(context.Background(), conv, "weather in Glasgow?", schema.RequireTool("get_weather"))
	require.NoError(t, err)

	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "get_weather", res.ToolCalls[0].Name)
	assert.Equal(t, 1, res.ModelCalls)
	assert.Empty(t, res.Final)
	assert.Equal(t, 3, conv.Len())
}

func TestRunTurn_ChoiceViolationStopsBeforeDispatch(t *testing.T) {
	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolReply(statusCall("c1", `{"transaction_id":"T1001"}`), statusCall("c2", `{"transaction_id":"T1002"}`)),
		textReply("unreachable"),
	}}
	r := NewRunner(provider, paymentRegistry(t), Settings{FollowUp: true}, nil)

	conv := schema.NewConversation()
	res, err := r.RunTurn(context.Background(), conv, "hi", schema.RequireTool("retrieve_payment_status"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrToolChoice))
	assert.Equal(t, 1, res.ModelCalls)
	assert.Empty(t, res.Outcomes)
	assert.Equal(t, 1, conv.Len())
}

func TestRunTurn_NoToolCalls(t *testing.T) {
	provider := &scriptedProvider{responses: []schema.LLMResponse{
		textReply("<think>nothing to look up</think>Hello!"),
	}}
	r := NewRunner(provider, paymentRegistry(t), Settings{FollowUp: true}, nil)

	res, err := r.RunTurn(context.Background(), schema.NewConversation(), "hi", schema.AutoChoice())
	require.NoError(t, err)
	assert.Equal(t, "Hello!", res.Final)
	assert.Equal(t, 1, res.ModelCalls)
}

func TestRunTurn_ProviderErrorPropagates(t *testing.T) {
	cause := errors.Join(schema.ErrTransientNetwork, errors.New("connection reset"))
	provider := &scriptedProvider{err: cause}
	r := NewRunner(provider, paymentRegistry(t), Settings{}, nil)

	_, err := r.RunTurn(context.Background(), schema.NewConversation(), "hi", schema.AutoChoice())
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrTransientNetwork))
}

func TestRunTurn_ToolErrorsReachTheModel(t *testing.T) {
	provider := &scriptedProvider{responses: []schema.LLMResponse{
		toolReply(schema.ToolCall{ID: "x", Name: "refund", Arguments: `{}`}),
		textReply("I can't do refunds."),
	}}
	r := NewRunner(provider, paymentRegistry(t), Settings{FollowUp: true}, nil)

	conv := schema.NewConversation()
	res, err := r.RunTurn(context.Background(), conv, "refund T1001", schema.AutoChoice())
	require.NoError(t, err)
	assert.Equal(t, "I can't do refunds.", res.Final)

	msgs := conv.Messages()
	require.Len(t, msgs, 4)
	assert.JSONEq(t, `{"error":"tool not found: refund"}`, msgs[2].Text())
}

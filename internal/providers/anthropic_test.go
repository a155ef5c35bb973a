package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

const anthropicToolReply = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-3-7-sonnet-latest",
	"content": [
		{"type": "text", "text": "Let me check."},
		{"type": "tool_use", "id": "toolu_01", "name": "retrieve_payment_status", "input": {"transaction_id": "T1001"}}
	],
	"stop_reason": "tool_use",
	"stop_sequence": null,
	"usage": {"input_tokens": 40, "output_tokens": 12}
}`

func TestAnthropicProvider_ToolUse(t *testing.T) {
	var body map[string]any
	srv := captureServer(t, http.StatusOK, anthropicToolReply, &body)
	p := NewAnthropicProvider("test-key", srv.URL, "", nil)

	conv := schema.NewConversation()
	conv.AddSystem("Be brief.")
	conv.AddUser("What's the status of my transaction T1001?")

	resp, err := p.Chat(context.Background(), conv, []schema.ToolSpec{paymentSpec},
		schema.ChatOptions{ToolChoice: schema.RequireTool("retrieve_payment_status")})
	require.NoError(t, err)

	require.NotNil(t, resp.Content)
	assert.Equal(t, "Let me check.", *resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_01", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"transaction_id":"T1001"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, 52, resp.Usage.TotalTokens)

	assert.Equal(t, map[string]any{"type": "tool", "name": "retrieve_payment_status"}, body["tool_choice"])
	system := body["system"].([]any)
	assert.Equal(t, "Be brief.", system[0].(map[string]any)["text"])
	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	inputSchema := tools[0].(map[string]any)["input_schema"].(map[string]any)
	assert.Equal(t, []any{"transaction_id"}, inputSchema["required"])
}

func TestAnthropicProvider_MergesToolResults(t *testing.T) {
	var body map[string]any
	srv := captureServer(t, http.StatusOK, `{
		"id": "msg_02", "type": "message", "role": "assistant", "model": "m",
		"content": [{"type": "text", "text": "Both paid."}],
		"stop_reason": "end_turn", "usage": {"input_tokens": 1, "output_tokens": 1}
	}`, &body)
	p := NewAnthropicProvider("test-key", srv.URL, "claude-3-7-sonnet-latest", nil)

	conv := schema.NewConversation()
	conv.AddUser("T1001, ZZZZ and T1003?")
	conv.AddAssistant(nil, []schema.ToolCall{
		{ID: "a", Name: "retrieve_payment_status", Arguments: `{"transaction_id":"T1001"}`},
		{ID: "b", Name: "retrieve_payment_status", Arguments: `{"transaction_id":"ZZZZ"}`},
		{ID: "c", Name: "retrieve_payment_status", Arguments: `{"transaction_id":`},
	})
	require.NoError(t, conv.AddToolResult("a", "retrieve_payment_status", `{"status":"Paid"}`))
	require.NoError(t, conv.AddToolResult("b", "retrieve_payment_status", `{"error":"transaction id not found."}`))
	require.NoError(t, conv.AddToolFailure("c", "retrieve_payment_status", `{"error":"argument parse error"}`))

	resp, err := p.Chat(context.Background(), conv, []schema.ToolSpec{paymentSpec},
		schema.ChatOptions{ToolChoice: schema.NoTools()})
	require.NoError(t, err)
	assert.Equal(t, "stop", resp.FinishReason)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	last := msgs[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	blocks := last["content"].([]any)
	require.Len(t, blocks, 3)
	// Domain error data is a successful result; only failed calls are flagged.
	assert.NotEqual(t, true, blocks[0].(map[string]any)["is_error"])
	assert.NotEqual(t, true, blocks[1].(map[string]any)["is_error"])
	assert.Equal(t, true, blocks[2].(map[string]any)["is_error"])
	assert.Equal(t, map[string]any{"type": "none"}, body["tool_choice"])
}

func TestAnthropicProvider_StatusError(t *testing.T) {
	srv := captureServer(t, http.StatusServiceUnavailable,
		`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, nil)
	p := NewAnthropicProvider("test-key", srv.URL, "", nil)

	_, err := p.Chat(context.Background(), schema.NewConversation(), nil, schema.ChatOptions{})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.True(t, IsTransient(err))
}

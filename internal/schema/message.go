package schema

import (
	"encoding/json"
	"errors"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall represents one function call in an assistant message.
// Arguments is the raw JSON object text exactly as the model produced it;
// it is parsed and validated only at dispatch time.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToWireMap serialises a ToolCall into the OpenAI wire-format map.
// Used by provider implementations when building the JSON request body.
func (tc ToolCall) ToWireMap() map[string]any {
	args := tc.Arguments
	if args == "" {
		args = "{}"
	}
	return map[string]any{
		"id":   tc.ID,
		"type": "function",
		"function": map[string]any{
			"name":      tc.Name,
			"arguments": args,
		},
	}
}

// ArgumentsObject decodes Arguments into a generic map. An empty string is
// treated as an empty object.
func (tc ToolCall) ArgumentsObject() (map[string]any, error) {
	if tc.Arguments == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(tc.Arguments), &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("arguments must be a JSON object")
	}
	return out, nil
}

// Message is one entry in the conversation history.
//
// Content is nil for assistant messages that carry only tool calls.
// ToolCalls is populated for assistant messages that invoke tools.
// ToolCallID and ToolName are set for tool-result messages.
type Message struct {
	Role       Role
	Content    *string
	ToolCalls  []ToolCall
	ToolCallID string // "tool" role only
	ToolName   string // "tool" role only
	IsError    bool   // "tool" role only: the call failed before producing a result
}

// Text returns the message content, or "" when there is none.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: &content}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: &content}
}

func NewAssistantMessage(content *string, toolCalls []ToolCall) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	}
}

// NewToolFailureMessage returns a tool-result message for a call that could
// not be executed. A tool that returns error data is not a failure.
func NewToolFailureMessage(toolCallID, toolName, result string) Message {
	m := NewToolResultMessage(toolCallID, toolName, result)
	m.IsError = true
	return m
}

func NewToolResultMessage(toolCallID, toolName, result string) Message {
	return Message{
		Role:       RoleTool,
		Content:    &result,
		ToolCallID: toolCallID,
		ToolName:   toolName,
	}
}

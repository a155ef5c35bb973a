package schema

import "fmt"

// Conversation is the ordered, append-only list of messages exchanged with
// the model during one session. It owns typed append methods so callers never
// construct or reorder raw messages.
type Conversation struct {
	messages []Message
	// callIDs indexes tool call ids emitted by assistant messages so tool
	// results can be checked against them.
	callIDs map[string]string
}

// NewConversation returns a Conversation seeded with msgs.
// Called with no arguments it returns an empty Conversation ready for use.
func NewConversation(msgs ...Message) *Conversation {
	c := &Conversation{
		messages: make([]Message, 0, len(msgs)),
		callIDs:  make(map[string]string),
	}
	for _, m := range msgs {
		c.add(m)
	}
	return c
}

// AddSystem appends a system message.
func (c *Conversation) AddSystem(content string) {
	c.add(NewSystemMessage(content))
}

// AddUser appends a user message.
func (c *Conversation) AddUser(content string) {
	c.add(NewUserMessage(content))
}

// AddAssistant appends an assistant message with optional tool calls.
func (c *Conversation) AddAssistant(content *string, toolCalls []ToolCall) {
	c.add(NewAssistantMessage(content, toolCalls))
}

// AddToolResult appends a tool-result message. toolCallID must match a call
// emitted by an earlier assistant message.
func (c *Conversation) AddToolResult(toolCallID, toolName, result string) error {
	if _, ok := c.callIDs[toolCallID]; !ok {
		return fmt.Errorf("tool result for unknown call id %q", toolCallID)
	}
	c.add(NewToolResultMessage(toolCallID, toolName, result))
	return nil
}

// AddToolFailure is AddToolResult for a call that failed to execute.
func (c *Conversation) AddToolFailure(toolCallID, toolName, result string) error {
	if _, ok := c.callIDs[toolCallID]; !ok {
		return fmt.Errorf("tool result for unknown call id %q", toolCallID)
	}
	c.add(NewToolFailureMessage(toolCallID, toolName, result))
	return nil
}

// HasCall reports whether an assistant message issued toolCallID.
func (c *Conversation) HasCall(toolCallID string) bool {
	_, ok := c.callIDs[toolCallID]
	return ok
}

// Len returns the number of messages in the conversation.
func (c *Conversation) Len() int { return len(c.messages) }

// Messages returns a copy of the conversation history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Last returns the most recent message and whether one exists.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Clone returns an independent copy of c.
func (c *Conversation) Clone() *Conversation {
	return NewConversation(c.messages...)
}

func (c *Conversation) add(m Message) {
	if c.callIDs == nil {
		c.callIDs = make(map[string]string)
	}
	for _, tc := range m.ToolCalls {
		c.callIDs[tc.ID] = tc.Name
	}
	c.messages = append(c.messages, m)
}

package session

import (
	"time"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// Transcript is one saved run: the conversation plus what produced it.
type Transcript struct {
	Key          string // turn id of the run
	Scenario     string
	Provider     string
	Model        string
	CreatedAt    time.Time
	Metadata     map[string]any
	Conversation *schema.Conversation
}

// NewTranscript wraps conv for saving.
func NewTranscript(key, scenario, provider, model string, conv *schema.Conversation) *Transcript {
	return &Transcript{
		Key:          key,
		Scenario:     scenario,
		Provider:     provider,
		Model:        model,
		CreatedAt:    time.Now(),
		Metadata:     map[string]any{},
		Conversation: conv,
	}
}

// ToolCallCount returns the number of tool calls issued by the model.
func (t *Transcript) ToolCallCount() int {
	n := 0
	for _, m := range t.Conversation.Messages() {
		n += len(m.ToolCalls)
	}
	return n
}

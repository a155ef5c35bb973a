package agent

import (
	"fmt"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// Fold appends one tool-result message per outcome to conv, in outcome order.
// Failed outcomes are marked as errors. Every call id is checked before
// anything is appended, so on error conv is unchanged.
// It is not idempotent: folding the same outcomes twice appends them twice.
func Fold(conv *schema.Conversation, outcomes []Outcome) error {
	for _, o := range outcomes {
		if !conv.HasCall(o.Call.ID) {
			return fmt.Errorf("fold %s: tool result for unknown call id %q", o.Call.Name, o.Call.ID)
		}
	}

	for _, o := range outcomes {
		add := conv.AddToolResult
		if o.Err != nil {
			add = conv.AddToolFailure
		}
		if err := add(o.Call.ID, o.Call.Name, o.Content()); err != nil {
			return fmt.Errorf("fold %s: %w", o.Call.Name, err)
		}
	}
	return nil
}

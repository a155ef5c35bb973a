// Package render prints conversations to the terminal, one color per role.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/erangalds/t-tool-calling-with-llms/internal/agent"
	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
	"github.com/erangalds/t-tool-calling-with-llms/internal/shared/llmutils"
)

// Printer writes each conversation message as it is appended.
// It implements agent.Observer.
type Printer struct {
	mu       sync.Mutex
	w        io.Writer
	maxChars int
	colors   map[schema.Role]*color.Color
	muted    *color.Color
}

// NewPrinter creates a Printer writing to w. Tool results longer than
// maxChars are truncated; 0 disables truncation.
func NewPrinter(w io.Writer, noColor bool, maxChars int) *Printer {
	p := &Printer{
		w:        w,
		maxChars: maxChars,
		colors: map[schema.Role]*color.Color{
			schema.RoleSystem:    color.New(color.FgRed),
			schema.RoleUser:      color.New(color.FgGreen),
			schema.RoleAssistant: color.New(color.FgBlue),
			schema.RoleTool:      color.New(color.FgMagenta),
		},
		muted: color.New(color.FgHiBlack),
	}
	if noColor {
		for _, c := range p.colors {
			c.DisableColor()
		}
		p.muted.DisableColor()
	}
	return p
}

var _ agent.Observer = (*Printer)(nil)

// OnMessage implements agent.Observer.
func (p *Printer) OnMessage(_ string, msg schema.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.colors[msg.Role].Fprintln(p.w, p.format(msg))
}

// Conversation prints every message of conv.
func (p *Printer) Conversation(conv *schema.Conversation) {
	for _, m := range conv.Messages() {
		p.OnMessage("", m)
	}
}

// Summary prints a one-line account of a finished turn.
func (p *Printer) Summary(res agent.TurnResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	failed := 0
	for _, o := range res.Outcomes {
		if o.Err != nil {
			failed++
		}
	}
	p.muted.Fprintf(p.w, "turn %s: %d model call(s), %d tool call(s), %d failed, %d tokens\n",
		res.TurnID, res.ModelCalls, len(res.ToolCalls), failed, res.Usage.TotalTokens)
}

func (p *Printer) format(msg schema.Message) string {
	switch msg.Role {
	case schema.RoleAssistant:
		if len(msg.ToolCalls) > 0 {
			calls := make([]string, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				calls[i] = fmt.Sprintf("%s(%s) [%s]", tc.Name, tc.Arguments, tc.ID)
			}
			text := "assistant: " + strings.Join(calls, "; ")
			if content := msg.Text(); content != "" {
				text = "assistant: " + content + "\n" + text
			}
			return text + "\n"
		}
		return "assistant: " + msg.Text() + "\n"
	case schema.RoleTool:
		content := msg.Text()
		if p.maxChars > 0 {
			content = llmutils.Truncate(content, p.maxChars)
		}
		return fmt.Sprintf("function (%s): %s\n", msg.ToolName, content)
	default:
		return fmt.Sprintf("%s: %s\n", msg.Role, msg.Text())
	}
}

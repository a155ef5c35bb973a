// Package session persists conversation transcripts as JSONL files.
//
// File format:
//
//	Line 1:  {"_type":"metadata","key":"…","scenario":"…","provider":"…",
//	           "model":"…","created_at":"…","metadata":{…}}
//	Line 2+: one JSON message object per line, tool calls in OpenAI wire format
package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// Save writes t to path, creating parent directories as needed.
func Save(path string, t *Transcript) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	meta := transcriptMeta{
		Type:      "metadata",
		Key:       t.Key,
		Scenario:  t.Scenario,
		Provider:  t.Provider,
		Model:     t.Model,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		Metadata:  t.Metadata,
	}
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	for _, msg := range t.Conversation.Messages() {
		if err := enc.Encode(messageToWire(msg)); err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write transcript %s: %w", path, err)
	}
	return nil
}

// Load reads a transcript written by Save. Malformed message lines are
// skipped with a warning; a tool message whose call id was never issued is
// an error.
func Load(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	t := &Transcript{Metadata: map[string]any{}, Conversation: schema.NewConversation()}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20) // 1 MB per line
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if lineNo == 1 {
			var meta transcriptMeta
			if err := json.Unmarshal(line, &meta); err == nil && meta.Type == "metadata" {
				t.Key, t.Scenario, t.Provider, t.Model = meta.Key, meta.Scenario, meta.Provider, meta.Model
				if ts, err := time.Parse(time.RFC3339, meta.CreatedAt); err == nil {
					t.CreatedAt = ts
				}
				if meta.Metadata != nil {
					t.Metadata = meta.Metadata
				}
				continue
			}
		}

		var w wireMessage
		if err := json.Unmarshal(line, &w); err != nil {
			slog.Warn("skipping malformed transcript line", "path", path, "line", lineNo, "err", err)
			continue
		}
		if err := appendWire(t.Conversation, w); err != nil {
			return nil, fmt.Errorf("transcript %s line %d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", path, err)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return t, nil
}

// Summary describes one transcript file without loading its messages.
type Summary struct {
	Key       string
	Scenario  string
	CreatedAt string
	Path      string
}

// List returns summaries of the *.jsonl transcripts in dir, newest first.
func List(dir string) []Summary {
	entries, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	var out []Summary

	for _, path := range entries {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		if scanner.Scan() {
			var meta transcriptMeta
			if json.Unmarshal(scanner.Bytes(), &meta) == nil && meta.Type == "metadata" {
				key := meta.Key
				if key == "" {
					key = strings.TrimSuffix(filepath.Base(path), ".jsonl")
				}
				out = append(out, Summary{Key: key, Scenario: meta.Scenario, CreatedAt: meta.CreatedAt, Path: path})
			}
		}
		f.Close()
	}

	// RFC3339 UTC sorts lexicographically.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

// DefaultPath returns <dir>/<scenario>_<key>.jsonl with unsafe characters replaced.
func DefaultPath(dir, scenario, key string) string {
	return filepath.Join(dir, safeFilename(scenario+"_"+key)+".jsonl")
}

// ---------------------------------------------------------------------------
// Wire format helpers

type transcriptMeta struct {
	Type      string         `json:"_type"`
	Key       string         `json:"key"`
	Scenario  string         `json:"scenario,omitempty"`
	Provider  string         `json:"provider,omitempty"`
	Model     string         `json:"model,omitempty"`
	CreatedAt string         `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// wireMessage is the on-disk JSON representation of a message.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	IsError    bool           `json:"is_error,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

func messageToWire(msg schema.Message) wireMessage {
	w := wireMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
		Name:       msg.ToolName,
		IsError:    msg.IsError,
	}
	for _, tc := range msg.ToolCalls {
		var wtc wireToolCall
		wtc.ID, wtc.Type = tc.ID, "function"
		wtc.Function.Name, wtc.Function.Arguments = tc.Name, tc.Arguments
		w.ToolCalls = append(w.ToolCalls, wtc)
	}
	return w
}

func appendWire(conv *schema.Conversation, w wireMessage) error {
	content := ""
	if w.Content != nil {
		content = *w.Content
	}
	switch schema.Role(w.Role) {
	case schema.RoleSystem:
		conv.AddSystem(content)
	case schema.RoleUser:
		conv.AddUser(content)
	case schema.RoleAssistant:
		var calls []schema.ToolCall
		for _, tc := range w.ToolCalls {
			calls = append(calls, schema.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
		}
		conv.AddAssistant(w.Content, calls)
	case schema.RoleTool:
		if w.IsError {
			return conv.AddToolFailure(w.ToolCallID, w.Name, content)
		}
		return conv.AddToolResult(w.ToolCallID, w.Name, content)
	default:
		slog.Warn("skipping transcript message with unknown role", "role", w.Role)
	}
	return nil
}

// safeFilename replaces filesystem-unsafe characters with underscores.
func safeFilename(name string) string {
	const unsafe = `<>:"/\|?* `
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		if strings.ContainsRune(unsafe, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

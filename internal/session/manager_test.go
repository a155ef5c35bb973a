package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

func sampleConversation(t *testing.T) *schema.Conversation {
	t.Helper()
	conv := schema.NewConversation()
	conv.AddSystem("Don't make assumptions.")
	conv.AddUser("What's the status of my transaction T1001?")
	conv.AddAssistant(nil, []schema.ToolCall{{ID: "c1", Name: "retrieve_payment_status", Arguments: `{"transaction_id":"T1001"}`}})
	require.NoError(t, conv.AddToolResult("c1", "retrieve_payment_status", `{"status":"Paid"}`))
	conv.AddAssistant(nil, []schema.ToolCall{{ID: "c2", Name: "retrieve_payment_status", Arguments: `{"transaction_id":`}})
	require.NoError(t, conv.AddToolFailure("c2", "retrieve_payment_status", `{"error":"argument parse error"}`))
	final := "Your transaction T1001 has been paid."
	conv.AddAssistant(&final, nil)
	return conv
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := DefaultPath(dir, "payment-status", "01HX")
	conv := sampleConversation(t)

	tr := NewTranscript("01HX", "payment-status", "mistral", "mistral-large-latest", conv)
	tr.Metadata["choice"] = "required"
	require.NoError(t, Save(path, tr))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "01HX", loaded.Key)
	assert.Equal(t, "payment-status", loaded.Scenario)
	assert.Equal(t, "mistral", loaded.Provider)
	assert.Equal(t, "required", loaded.Metadata["choice"])
	assert.Equal(t, conv.Messages(), loaded.Conversation.Messages())
	assert.Equal(t, 2, loaded.ToolCallCount())
	msgs := loaded.Conversation.Messages()
	assert.False(t, msgs[3].IsError)
	assert.True(t, msgs[5].IsError)
}

func TestSave_WireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl")
	require.NoError(t, Save(path, NewTranscript("k", "s", "p", "m", sampleConversation(t))))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 8)
	assert.Contains(t, lines[0], `"_type":"metadata"`)
	assert.JSONEq(t,
		`{"role":"assistant","content":null,"tool_calls":[{"id":"c1","type":"function","function":{"name":"retrieve_payment_status","arguments":"{\"transaction_id\":\"T1001\"}"}}]}`,
		lines[3])
	assert.JSONEq(t, `{"role":"tool","content":"{\"status\":\"Paid\"}","tool_call_id":"c1","name":"retrieve_payment_status"}`, lines[4])
	assert.Contains(t, lines[6], `"is_error":true`)
	assert.NotContains(t, lines[4], "is_error")
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl")
	doc := `{"_type":"metadata","key":"k","created_at":"2024-01-02T03:04:05Z"}
{"role":"user","content":"hi"}
{not json
{"role":"assistant","content":"hello"}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	tr, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Conversation.Len())
	assert.Equal(t, 2024, tr.CreatedAt.Year())
}

func TestLoad_OrphanToolResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl")
	doc := `{"role":"tool","content":"{}","tool_call_id":"ghost","name":"x"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestList_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	older := NewTranscript("a", "weather-forced", "openai", "gpt-4o-mini", schema.NewConversation())
	older.CreatedAt = older.CreatedAt.AddDate(0, 0, -1)
	newer := NewTranscript("b", "web-request", "ollama", "llama3.2", schema.NewConversation())

	require.NoError(t, Save(DefaultPath(dir, older.Scenario, older.Key), older))
	require.NoError(t, Save(DefaultPath(dir, newer.Scenario, newer.Key), newer))

	list := List(dir)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Key)
	assert.Equal(t, "a", list[1].Key)
}

func TestDefaultPath_Sanitizes(t *testing.T) {
	assert.Equal(t, filepath.Join("d", "a_b_c.jsonl"), DefaultPath("d", "a/b", "c"))
}

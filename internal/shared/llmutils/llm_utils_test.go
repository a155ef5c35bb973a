package llmutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

func TestToolHint(t *testing.T) {
	calls := []schema.ToolCall{
		{Name: "retrieve_payment_status", Arguments: `{"transaction_id":"T1001"}`},
		{Name: "get_n_day_weather_forecast", Arguments: `{"num_days":3,"location":"Glasgow, Scotland"}`},
		{Name: "request", Arguments: `not json`},
	}
	assert.Equal(t,
		`retrieve_payment_status("T1001"), get_n_day_weather_forecast("Glasgow, Scotland"), request`,
		ToolHint(calls))
}

func TestStripThink(t *testing.T) {
	assert.Equal(t, "The status is Paid.", StripThink("<think>check T1001</think>\nThe status is Paid."))
	assert.Equal(t, "plain", StripThink("plain"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "x", StringOrDefault("", "x"))
	assert.Equal(t, "é...", Truncate("éé", 3))
}

func TestCutUTF8(t *testing.T) {
	s := strings.Repeat("é", 10)
	assert.Equal(t, "éé", CutUTF8(s, 5))
	assert.Equal(t, "ééé", CutUTF8(s, 6))
	assert.Equal(t, s, CutUTF8(s, 100))
	assert.Equal(t, "", CutUTF8(s, 1))
	assert.Equal(t, "", CutUTF8(s, 0))
}

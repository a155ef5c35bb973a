package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
	"github.com/erangalds/t-tool-calling-with-llms/internal/tools"
)

// fnTool is a schema.Tool backed by a plain function.
type fnTool struct {
	name   string
	params string
	fn     func(ctx context.Context, args map[string]any) (any, error)
}

func (f fnTool) Name() string                { return f.name }
func (f fnTool) Description() string         { return f.name }
func (f fnTool) Parameters() json.RawMessage { return json.RawMessage(f.params) }
func (f fnTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	return f.fn(ctx, args)
}

const emptyParams = `{"type":"object","properties":{}}`

func paymentRegistry(t *testing.T, extra ...schema.Tool) *tools.Registry {
	t.Helper()
	store := tools.NewPaymentStore(tools.DefaultPayments)
	b := tools.NewRegistryBuilder().
		WithTool(tools.NewPaymentStatusTool(store)).
		WithTool(tools.NewPaymentDateTool(store))
	for _, tool := range extra {
		b.WithTool(tool)
	}
	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

func statusCall(id, args string) schema.ToolCall {
	return schema.ToolCall{ID: id, Name: "retrieve_payment_status", Arguments: args}
}

func TestDispatchCall_Payments(t *testing.T) {
	d := NewDispatcher(paymentRegistry(t), false)

	got, err := d.DispatchCall(context.Background(), statusCall("c1", `{"transaction_id":"T1001"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "Paid"}, got)

	got, err = d.DispatchCall(context.Background(), statusCall("c2", `{"transaction_id":"ZZZZ"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"error": "transaction id not found."}, got)
}

func TestDispatchCall_Errors(t *testing.T) {
	panicky := fnTool{name: "panicky", params: emptyParams, fn: func(context.Context, map[string]any) (any, error) {
		panic("boom")
	}}
	failing := fnTool{name: "failing", params: emptyParams, fn: func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("disk full")
	}}
	unserializable := fnTool{name: "chan", params: emptyParams, fn: func(context.Context, map[string]any) (any, error) {
		return make(chan int), nil
	}}
	d := NewDispatcher(paymentRegistry(t, panicky, failing, unserializable), false)

	tests := []struct {
		name string
		call schema.ToolCall
		kind error
	}{
		{name: "malformed json", call: statusCall("1", `{"transaction_id": "T10`), kind: schema.ErrArgumentParse},
		{name: "not an object", call: statusCall("2", `["T1001"]`), kind: schema.ErrArgumentParse},
		{name: "wrong type", call: statusCall("3", `{"transaction_id": 1001}`), kind: schema.ErrArgumentParse},
		{name: "missing field", call: statusCall("4", `{}`), kind: schema.ErrArgumentParse},
		{name: "unknown tool", call: schema.ToolCall{ID: "5", Name: "refund", Arguments: `{}`}, kind: schema.ErrUnknownTool},
		{name: "panic", call: schema.ToolCall{ID: "6", Name: "panicky"}, kind: schema.ErrToolExecution},
		{name: "error", call: schema.ToolCall{ID: "7", Name: "failing"}, kind: schema.ErrToolExecution},
		{name: "unserializable", call: schema.ToolCall{ID: "8", Name: "chan"}, kind: schema.ErrToolExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.DispatchCall(context.Background(), tt.call)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestDispatchCall_ForecastDayBounds(t *testing.T) {
	reg, err := tools.NewRegistryBuilder().
		WithTool(tools.NewForecastTool(tools.NewWeatherService(nil))).
		Build()
	require.NoError(t, err)
	d := NewDispatcher(reg, false)

	forecast := func(days string) schema.ToolCall {
		return schema.ToolCall{
			ID:        "f",
			Name:      "get_n_day_weather_forecast",
			Arguments: `{"location":"Toronto","format":"celsius","num_days":` + days + `}`,
		}
	}

	got, err := d.DispatchCall(context.Background(), forecast("16"))
	require.NoError(t, err)
	assert.Len(t, got.(tools.WeatherReport).Days, 16)

	got, err = d.DispatchCall(context.Background(), forecast("0"))
	require.NoError(t, err)
	assert.Equal(t, "num_days must be at least 1", got.(tools.WeatherReport).Error)

	for _, days := range []string{"17", "1000000000000000000", "1e30"} {
		_, err = d.DispatchCall(context.Background(), forecast(days))
		assert.True(t, errors.Is(err, schema.ErrArgumentParse), "num_days=%s: got %v", days, err)
	}
}

func TestDispatchCall_MalformedLeavesConversationUntouched(t *testing.T) {
	conv := schema.NewConversation()
	conv.AddUser("status of T1001?")
	conv.AddAssistant(nil, []schema.ToolCall{statusCall("c1", `{"transaction_id":`)})
	before := conv.Messages()

	d := NewDispatcher(paymentRegistry(t), true)
	outcomes := d.Dispatch(context.Background(), before[1].ToolCalls)

	require.Len(t, outcomes, 1)
	assert.True(t, errors.Is(outcomes[0].Err, schema.ErrArgumentParse))
	assert.Equal(t, before, conv.Messages())
}

func TestDispatch_PreservesCallOrder(t *testing.T) {
	var running, peak atomic.Int32
	slow := fnTool{
		name:   "slow",
		params: `{"type":"object","properties":{"ms":{"type":"integer"}},"required":["ms"]}`,
		fn: func(ctx context.Context, args map[string]any) (any, error) {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Duration(args["ms"].(float64)) * time.Millisecond)
			return args["ms"], nil
		},
	}
	d := NewDispatcher(paymentRegistry(t, slow), true)

	calls := []schema.ToolCall{
		{ID: "a", Name: "slow", Arguments: `{"ms":60}`},
		{ID: "b", Name: "slow", Arguments: `{"ms":1}`},
		{ID: "c", Name: "nope", Arguments: `{}`},
		{ID: "d", Name: "slow", Arguments: `{"ms":30}`},
	}
	outcomes := d.Dispatch(context.Background(), calls)

	require.Len(t, outcomes, 4)
	for i, o := range outcomes {
		assert.Equal(t, calls[i].ID, o.Call.ID)
	}
	assert.Equal(t, float64(60), outcomes[0].Result)
	assert.Equal(t, float64(1), outcomes[1].Result)
	assert.True(t, errors.Is(outcomes[2].Err, schema.ErrUnknownTool))
	assert.Equal(t, float64(30), outcomes[3].Result)
	assert.Greater(t, peak.Load(), int32(1))
}

func TestOutcome_Content(t *testing.T) {
	ok := Outcome{Result: map[string]string{"status": "Paid"}}
	assert.JSONEq(t, `{"status":"Paid"}`, ok.Content())

	text := Outcome{Result: "already text"}
	assert.Equal(t, "already text", text.Content())

	unknown := Outcome{Err: schema.NewUnknownToolError("refund")}
	assert.JSONEq(t, `{"error":"tool not found: refund"}`, unknown.Content())

	failed := Outcome{Err: schema.NewToolExecutionError("x", "1", errors.New("disk full"))}
	assert.JSONEq(t, `{"error":"tool execution error: x: disk full"}`, failed.Content())
}

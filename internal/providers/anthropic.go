package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicProvider calls the Anthropic Messages API through the official SDK.
// SDK-level retries are disabled; retrying is owned by WithRetry.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

func NewAnthropicProvider(apiKey, apiBase, defaultModel string, extraHeaders map[string]string) *AnthropicProvider {
	spec := FindByName("anthropic")
	if defaultModel == "" {
		defaultModel = spec.DefaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(apiBase, "/")+"/"))
	}
	for k, v := range extraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
	}
}

func (p *AnthropicProvider) DefaultModel() string { return p.defaultModel }

// Chat implements schema.LLMProvider.
func (p *AnthropicProvider) Chat(
	ctx context.Context,
	conv *schema.Conversation,
	tools []schema.ToolSpec,
	opts schema.ChatOptions,
) (schema.LLMResponse, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	system, messages := toAnthropicMessages(conv.Messages())
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(StripProviderPrefix(model)),
		MaxTokens:   int64(maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
		params.ToolChoice = toAnthropicToolChoice(opts.ToolChoice)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return schema.LLMResponse{}, mapAnthropicError(err)
	}
	return fromAnthropicMessage(msg), nil
}

// ---------------------------------------------------------------------------
// Anthropic format helpers
// ---------------------------------------------------------------------------

// toAnthropicMessages splits out the system prompt and converts the rest.
// Consecutive tool results are merged into one user message.
func toAnthropicMessages(messages []schema.Message) (string, []anthropic.MessageParam) {
	var system []string
	var out []anthropic.MessageParam
	pendingResults := []anthropic.ContentBlockParamUnion{}

	flush := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = []anthropic.ContentBlockParamUnion{}
		}
	}

	for _, m := range messages {
		switch m.Role {
		case schema.RoleSystem:
			system = append(system, m.Text())

		case schema.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Text(), m.IsError))

		case schema.RoleUser:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text())))

		case schema.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if text := m.Text(); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, objectOrEmpty(tc.Arguments), tc.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	flush()
	return strings.Join(system, "\n\n"), out
}

func toAnthropicTools(tools []schema.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		params := t.ParametersMap()
		var required []string
		if req, ok := params["required"].([]any); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: params["properties"],
				Required:   required,
			},
		}})
	}
	return out
}

func toAnthropicToolChoice(choice schema.ToolChoice) anthropic.ToolChoiceUnionParam {
	switch choice.Mode {
	case schema.ToolChoiceRequired:
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case schema.ToolChoiceNamed:
		return anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: choice.Name}}
	case schema.ToolChoiceNone:
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	default:
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
}

func fromAnthropicMessage(msg *anthropic.Message) schema.LLMResponse {
	var text strings.Builder
	var toolCalls []schema.ToolCall
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			toolCalls = append(toolCalls, schema.ToolCall{
				ID:        v.ID,
				Name:      v.Name,
				Arguments: argumentsText(json.RawMessage(v.JSON.Input.Raw())),
			})
		}
	}

	var content *string
	if s := text.String(); s != "" {
		content = &s
	}

	finish := "stop"
	switch reason := string(msg.StopReason); reason {
	case "tool_use":
		finish = "tool_calls"
	case "", "end_turn":
	default:
		finish = reason
	}

	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return schema.LLMResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: finish,
		Usage:        schema.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}
}

func mapAnthropicError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
	}
	return &transportError{err: fmt.Errorf("anthropic: %w", err)}
}

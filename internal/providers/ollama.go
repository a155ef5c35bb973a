package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// OllamaProvider talks to a local Ollama server through its native /api/chat
// endpoint. Ollama has no tool_choice parameter, so the choice is applied by
// filtering the tools that are sent.
type OllamaProvider struct {
	apiBase      string
	defaultModel string
	extraHeaders map[string]string
	httpClient   *http.Client
}

func NewOllamaProvider(apiBase, defaultModel string, extraHeaders map[string]string) *OllamaProvider {
	spec := FindByName("ollama")
	if apiBase == "" {
		apiBase = spec.DefaultAPIBase
	}
	if defaultModel == "" {
		defaultModel = spec.DefaultModel
	}
	return &OllamaProvider{
		apiBase:      strings.TrimRight(apiBase, "/"),
		defaultModel: defaultModel,
		extraHeaders: extraHeaders,
		httpClient:   &http.Client{Timeout: 300 * time.Second},
	}
}

func (p *OllamaProvider) DefaultModel() string { return p.defaultModel }

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaRespBody struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error"`
}

// Chat implements schema.LLMProvider.
func (p *OllamaProvider) Chat(
	ctx context.Context,
	conv *schema.Conversation,
	tools []schema.ToolSpec,
	opts schema.ChatOptions,
) (schema.LLMResponse, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	options := map[string]any{"temperature": opts.Temperature}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	body := map[string]any{
		"model":    StripProviderPrefix(model),
		"messages": toOllamaMessages(conv.Messages()),
		"stream":   false,
		"options":  options,
	}
	if sent := filterTools(tools, opts.ToolChoice); len(sent) > 0 {
		wire := make([]map[string]any, len(sent))
		for i, t := range sent {
			wire[i] = t.ToWireMap()
		}
		body["tools"] = wire
	}

	data, err := json.Marshal(body)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return schema.LLMResponse{}, &transportError{err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.LLMResponse{}, &transportError{err: fmt.Errorf("read ollama response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return schema.LLMResponse{}, newStatusError("ollama", resp.StatusCode, raw)
	}

	return parseOllamaResponse(raw)
}

// filterTools applies a tool choice for servers without native support:
// none sends no tools, named sends only the named tool.
func filterTools(tools []schema.ToolSpec, choice schema.ToolChoice) []schema.ToolSpec {
	switch choice.Mode {
	case schema.ToolChoiceNone:
		return nil
	case schema.ToolChoiceNamed:
		for _, t := range tools {
			if t.Name == choice.Name {
				return []schema.ToolSpec{t}
			}
		}
		return nil
	default:
		return tools
	}
}

func toOllamaMessages(messages []schema.Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		om := ollamaMessage{Role: string(m.Role), Content: m.Text()}
		for _, tc := range m.ToolCalls {
			var call ollamaToolCall
			call.Function.Name = tc.Name
			call.Function.Arguments = objectOrEmpty(tc.Arguments)
			om.ToolCalls = append(om.ToolCalls, call)
		}
		if m.Role == schema.RoleTool {
			om.ToolName = m.ToolName
		}
		out = append(out, om)
	}
	return out
}

func objectOrEmpty(args string) json.RawMessage {
	var v map[string]any
	if err := json.Unmarshal([]byte(args), &v); err != nil || v == nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(args)
}

func parseOllamaResponse(raw []byte) (schema.LLMResponse, error) {
	var body ollamaRespBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.LLMResponse{}, fmt.Errorf("parse Ollama response: %w", err)
	}
	if body.Error != "" {
		return schema.LLMResponse{}, fmt.Errorf("ollama: %s", body.Error)
	}

	var content *string
	if c := body.Message.Content; c != "" {
		content = &c
	}

	var toolCalls []schema.ToolCall
	for _, tc := range body.Message.ToolCalls {
		toolCalls = append(toolCalls, schema.ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      tc.Function.Name,
			Arguments: argumentsText(tc.Function.Arguments),
		})
	}

	finish := body.DoneReason
	if len(toolCalls) > 0 {
		finish = "tool_calls"
	} else if finish == "" {
		finish = "stop"
	}

	return schema.LLMResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: finish,
		Usage: schema.Usage{
			PromptTokens:     body.PromptEvalCount,
			CompletionTokens: body.EvalCount,
			TotalTokens:      body.PromptEvalCount + body.EvalCount,
		},
	}, nil
}

package providers

import (
	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// Params are the raw values needed to construct any schema.LLMProvider.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	APIKey       string
	APIBase      string
	ExtraHeaders map[string]string
	DefaultModel string
	ProviderName string // registry name, e.g. "mistral", "ollama"
	Retry        *RetryPolicy
}

// New creates the schema.LLMProvider for the given params, wrapped with the
// retry policy when one is set.
//
//   - anthropic → AnthropicProvider (SDK)
//   - ollama    → OllamaProvider (native /api/chat)
//   - otherwise → OpenAIProvider (chat/completions)
func New(p Params) (schema.LLMProvider, error) {
	spec := FindByName(p.ProviderName)
	if spec == nil {
		return nil, schema.ConfigurationError("unknown provider %q", p.ProviderName)
	}
	if spec.NeedsAPIKey() && p.APIKey == "" {
		return nil, schema.ConfigurationError("no API key for %s: set %s or providers.%s.apiKey",
			spec.Label(), spec.EnvKey, spec.Name)
	}

	var provider schema.LLMProvider
	switch spec.Wire {
	case WireAnthropic:
		provider = NewAnthropicProvider(p.APIKey, p.APIBase, p.DefaultModel, p.ExtraHeaders)
	case WireOllama:
		provider = NewOllamaProvider(p.APIBase, p.DefaultModel, p.ExtraHeaders)
	default:
		provider = NewOpenAIProvider(*spec, p.APIKey, p.APIBase, p.DefaultModel, p.ExtraHeaders)
	}

	if p.Retry != nil {
		provider = WithRetry(provider, *p.Retry)
	}
	return provider, nil
}

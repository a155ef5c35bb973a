package providers

import "strings"

// Wire protocol families.
const (
	WireOpenAI    = "openai"    // OpenAI-compatible /chat/completions
	WireOllama    = "ollama"    // Ollama native /api/chat
	WireAnthropic = "anthropic" // Anthropic Messages API via the SDK
)

// ProviderSpec is the metadata record for one LLM provider.
type ProviderSpec struct {
	// Identity
	Name        string   // config field name, e.g. "mistral"
	Keywords    []string // model-name keywords for matching (lowercase)
	EnvKey      string   // env var holding the API key
	EnvBase     string   // env var overriding the API base
	DisplayName string   // shown in `toolcall status`

	Wire           string // one of the Wire* constants
	DefaultAPIBase string // fallback base URL when none is configured
	DefaultModel   string // model used when neither flag nor config names one
	IsLocal        bool   // local deployment, no API key required

	// RequiredChoice is the tool_choice string that forces at least one tool
	// call. OpenAI says "required", Mistral says "any".
	RequiredChoice string
}

// Label returns the display name, defaulting to Title-cased Name.
func (s ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

// NeedsAPIKey reports whether the provider refuses requests without a key.
func (s ProviderSpec) NeedsAPIKey() bool { return !s.IsLocal }

// ---------------------------------------------------------------------------
// PROVIDERS — the registry. Order = match priority.
// ---------------------------------------------------------------------------

var PROVIDERS = []ProviderSpec{
	{
		Name:           "openai",
		Keywords:       []string{"openai", "gpt"},
		EnvKey:         "OPENAI_API_KEY",
		DisplayName:    "OpenAI",
		Wire:           WireOpenAI,
		DefaultAPIBase: "https://api.openai.com/v1",
		DefaultModel:   "gpt-4o-mini",
		RequiredChoice: "required",
	},
	{
		Name:           "mistral",
		Keywords:       []string{"mistral", "mixtral", "codestral"},
		EnvKey:         "MISTRAL_API_KEY",
		DisplayName:    "Mistral",
		Wire:           WireOpenAI,
		DefaultAPIBase: "https://api.mistral.ai/v1",
		DefaultModel:   "mistral-large-latest",
		RequiredChoice: "any",
	},
	{
		Name:           "anthropic",
		Keywords:       []string{"anthropic", "claude"},
		EnvKey:         "ANTHROPIC_API_KEY",
		DisplayName:    "Anthropic",
		Wire:           WireAnthropic,
		DefaultAPIBase: "https://api.anthropic.com",
		DefaultModel:   "claude-3-7-sonnet-latest",
	},
	{
		Name:           "ollama",
		Keywords:       []string{"ollama", "llama", "qwen", "gemma"},
		EnvBase:        "OLLAMA_HOST",
		DisplayName:    "Ollama",
		Wire:           WireOllama,
		DefaultAPIBase: "http://localhost:11434",
		DefaultModel:   "llama3.2",
		IsLocal:        true,
	},
}

// FindByName returns the spec with the given name, or nil.
func FindByName(name string) *ProviderSpec {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range PROVIDERS {
		if PROVIDERS[i].Name == name {
			return &PROVIDERS[i]
		}
	}
	return nil
}

// FindByModel returns the first spec whose keywords appear in model, or nil.
// A "provider/model" prefix wins over keyword matching.
func FindByModel(model string) *ProviderSpec {
	lower := strings.ToLower(model)
	if i := strings.Index(lower, "/"); i > 0 {
		if s := FindByName(lower[:i]); s != nil {
			return s
		}
	}
	for i := range PROVIDERS {
		for _, kw := range PROVIDERS[i].Keywords {
			if strings.Contains(lower, kw) {
				return &PROVIDERS[i]
			}
		}
	}
	return nil
}

// StripProviderPrefix removes a leading "<provider>/" from model when the
// prefix names a known provider.
func StripProviderPrefix(model string) string {
	if i := strings.Index(model, "/"); i > 0 && FindByName(model[:i]) != nil {
		return model[i+1:]
	}
	return model
}

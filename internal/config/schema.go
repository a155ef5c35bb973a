// Package config defines the configuration schema for toolcall.
//
// Files may be JSON (the default, camelCase keys) or YAML with the same keys;
// the format is chosen by file extension.
package config

import (
	"time"
)

// ProviderConfig holds credentials for one LLM provider.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey" yaml:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty" yaml:"extraHeaders,omitempty"`
}

// ProvidersConfig holds credentials for all supported LLM providers.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `json:"openai" yaml:"openai"`
	Mistral   ProviderConfig `json:"mistral" yaml:"mistral"`
	Anthropic ProviderConfig `json:"anthropic" yaml:"anthropic"`
	Ollama    ProviderConfig `json:"ollama" yaml:"ollama"`
}

// Defaults override a scenario's provider and model settings when set.
type Defaults struct {
	Provider    string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens   int      `json:"maxTokens" yaml:"maxTokens"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Parallel    bool     `json:"parallelToolCalls" yaml:"parallelToolCalls"`
}

func defaultDefaults() Defaults {
	return Defaults{
		MaxTokens: 1024,
		Parallel:  true,
	}
}

// RetryConfig bounds retries of transient provider failures.
type RetryConfig struct {
	MaxAttempts         int     `json:"maxAttempts" yaml:"maxAttempts"`
	InitialIntervalMs   int64   `json:"initialIntervalMs" yaml:"initialIntervalMs"`
	MaxIntervalMs       int64   `json:"maxIntervalMs" yaml:"maxIntervalMs"`
	Multiplier          float64 `json:"multiplier" yaml:"multiplier"`
	RandomizationFactor float64 `json:"randomizationFactor" yaml:"randomizationFactor"`
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:         3,
		InitialIntervalMs:   1000,
		MaxIntervalMs:       40000,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
}

// InitialInterval returns InitialIntervalMs as a duration.
func (r RetryConfig) InitialInterval() time.Duration {
	return time.Duration(r.InitialIntervalMs) * time.Millisecond
}

// MaxInterval returns MaxIntervalMs as a duration.
func (r RetryConfig) MaxInterval() time.Duration {
	return time.Duration(r.MaxIntervalMs) * time.Millisecond
}

// RequestToolConfig configures the HTTP request tool.
type RequestToolConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	MaxChars       int `json:"maxChars" yaml:"maxChars"`
}

// Timeout returns TimeoutSeconds as a duration.
func (r RequestToolConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	DatabasePath string            `json:"databasePath" yaml:"databasePath"`
	MaxRows      int               `json:"maxRows" yaml:"maxRows"`
	Request      RequestToolConfig `json:"request" yaml:"request"`
}

func defaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		DatabasePath: "data/Chinook.db",
		MaxRows:      100,
		Request:      RequestToolConfig{TimeoutSeconds: 30, MaxChars: 20000},
	}
}

// Config is the root configuration object.
type Config struct {
	Providers ProvidersConfig `json:"providers" yaml:"providers"`
	Defaults  Defaults        `json:"defaults" yaml:"defaults"`
	Retry     RetryConfig     `json:"retry" yaml:"retry"`
	Tools     ToolsConfig     `json:"tools" yaml:"tools"`
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() Config {
	return Config{
		Defaults: defaultDefaults(),
		Retry:    defaultRetryConfig(),
		Tools:    defaultToolsConfig(),
	}
}

// ProviderByName returns a pointer to the ProviderConfig field matching the
// given registry name. Returns nil if unknown.
func (c *Config) ProviderByName(name string) *ProviderConfig {
	switch name {
	case "openai":
		return &c.Providers.OpenAI
	case "mistral":
		return &c.Providers.Mistral
	case "anthropic":
		return &c.Providers.Anthropic
	case "ollama":
		return &c.Providers.Ollama
	}
	return nil
}

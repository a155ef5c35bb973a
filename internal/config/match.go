package config

import (
	"os"
	"strings"

	"github.com/erangalds/t-tool-calling-with-llms/internal/providers"
	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// MatchResult is the resolved provider registry entry and its config.
type MatchResult struct {
	Spec     *providers.ProviderSpec
	Provider *ProviderConfig
}

// Name returns the registry name of the matched provider.
func (m MatchResult) Name() string {
	if m.Spec == nil {
		return ""
	}
	return m.Spec.Name
}

// MatchProvider resolves which provider to use.
//
// Priority order:
//  1. name, when non-empty (CLI flag or scenario)
//  2. defaults.provider from the config file
//  3. explicit "provider/" prefix or keyword match in model
func (c *Config) MatchProvider(name, model string) (MatchResult, error) {
	if name == "" {
		name = c.Defaults.Provider
	}
	if name != "" {
		spec := providers.FindByName(name)
		if spec == nil {
			return MatchResult{}, schema.ConfigurationError("unknown provider %q", name)
		}
		return MatchResult{Spec: spec, Provider: c.ProviderByName(spec.Name)}, nil
	}

	if model == "" {
		model = c.Defaults.Model
	}
	if spec := providers.FindByModel(model); spec != nil {
		return MatchResult{Spec: spec, Provider: c.ProviderByName(spec.Name)}, nil
	}
	return MatchResult{}, schema.ConfigurationError("no provider matches model %q", model)
}

// ResolveAPIKey returns the configured API key for spec, falling back to the
// provider's environment variable.
func (c *Config) ResolveAPIKey(spec providers.ProviderSpec) string {
	if p := c.ProviderByName(spec.Name); p != nil && p.APIKey != "" {
		return p.APIKey
	}
	if spec.EnvKey != "" {
		return os.Getenv(spec.EnvKey)
	}
	return ""
}

// ResolveAPIBase returns the configured API base for spec, then the
// provider's base env var. "" means the provider default.
func (c *Config) ResolveAPIBase(spec providers.ProviderSpec) string {
	if p := c.ProviderByName(spec.Name); p != nil && p.APIBase != "" {
		return p.APIBase
	}
	if spec.EnvBase == "" {
		return ""
	}
	base := os.Getenv(spec.EnvBase)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return base
}

// RequireCredential returns an ErrConfiguration when spec needs an API key
// and none resolves.
func (c *Config) RequireCredential(spec providers.ProviderSpec) error {
	if !spec.NeedsAPIKey() || c.ResolveAPIKey(spec) != "" {
		return nil
	}
	return schema.ConfigurationError("no API key for %s: set %s or providers.%s.apiKey",
		spec.Label(), spec.EnvKey, spec.Name)
}

// RetryPolicy converts the retry section into a providers.RetryPolicy.
func (c *Config) RetryPolicy() providers.RetryPolicy {
	return providers.RetryPolicy{
		MaxAttempts:         c.Retry.MaxAttempts,
		InitialInterval:     c.Retry.InitialInterval(),
		MaxInterval:         c.Retry.MaxInterval(),
		Multiplier:          c.Retry.Multiplier,
		RandomizationFactor: c.Retry.RandomizationFactor,
	}
}

// ProviderParams assembles the providers.Params for a match. model may be
// empty, in which case the provider's default model applies.
func (c *Config) ProviderParams(m MatchResult, model string) (providers.Params, error) {
	if m.Spec == nil {
		return providers.Params{}, schema.ConfigurationError("no provider selected")
	}
	if err := c.RequireCredential(*m.Spec); err != nil {
		return providers.Params{}, err
	}
	retry := c.RetryPolicy()
	p := providers.Params{
		ProviderName: m.Spec.Name,
		APIKey:       c.ResolveAPIKey(*m.Spec),
		APIBase:      c.ResolveAPIBase(*m.Spec),
		DefaultModel: model,
		Retry:        &retry,
	}
	if m.Provider != nil {
		p.ExtraHeaders = m.Provider.ExtraHeaders
	}
	return p, nil
}

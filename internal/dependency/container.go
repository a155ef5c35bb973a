// Package dependency wires one scenario run using go.uber.org/dig.
package dependency

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/dig"

	"github.com/erangalds/t-tool-calling-with-llms/internal/agent"
	"github.com/erangalds/t-tool-calling-with-llms/internal/config"
	"github.com/erangalds/t-tool-calling-with-llms/internal/providers"
	"github.com/erangalds/t-tool-calling-with-llms/internal/scenarios"
	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
	"github.com/erangalds/t-tool-calling-with-llms/internal/tools"
)

// Options are the per-run overrides, usually from CLI flags. Zero values
// keep the scenario's settings.
type Options struct {
	Provider   string
	Model      string
	Message    string
	Choice     string // "auto", "required", "none" or "tool:<name>"
	NoFollowUp bool
	Sequential bool
	Observer   agent.Observer

	// Env replaces the tool backends derived from config. Tests use it to
	// pin the weather seed or point at a fixture database.
	Env *scenarios.Env
}

// Plan is the resolved input to Runner.RunTurn.
type Plan struct {
	Prompt string
	Choice schema.ToolChoice
}

// Container holds the resolved services for one run.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	scenario scenarios.Scenario
	match    config.MatchResult
	model    LLMModel
	provider schema.LLMProvider
	toolbox  *scenarios.Toolbox
	runner   *agent.Runner
	plan     Plan
}

func (c *Container) Scenario() scenarios.Scenario { return c.scenario }
func (c *Container) ProviderName() string         { return c.match.Name() }
func (c *Container) Model() string                { return string(c.model) }
func (c *Container) Provider() schema.LLMProvider { return c.provider }
func (c *Container) Registry() *tools.Registry    { return c.toolbox.Registry }
func (c *Container) Runner() *agent.Runner        { return c.runner }
func (c *Container) Plan() Plan                   { return c.plan }

// Close releases the scenario's tool resources.
func (c *Container) Close() error { return c.toolbox.Close() }

// LLMModel is a named string type so dig can distinguish the effective model
// name from plain strings.
type LLMModel string

// New builds and wires every service a run of sc needs. A missing credential
// or unknown provider fails here, before any network call.
func New(ctx context.Context, cfg *config.Config, sc scenarios.Scenario, opts Options) (*Container, error) {
	d := dig.New()

	constructors := []any{
		func() context.Context { return ctx },
		func() *config.Config { return cfg },
		func() scenarios.Scenario { return sc },
		func() Options { return opts },
		newEnv,
		matchProvider,
		resolveLLMModel,
		newProvider,
		newToolbox,
		newSettings,
		newRunner,
		newPlan,
	}
	for _, c := range constructors {
		if err := d.Provide(c); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		plan Plan,
		match config.MatchResult,
		model LLMModel,
		provider schema.LLMProvider,
		toolbox *scenarios.Toolbox,
		runner *agent.Runner,
	) {
		result = &Container{
			scenario: sc,
			match:    match,
			model:    model,
			provider: provider,
			toolbox:  toolbox,
			runner:   runner,
			plan:     plan,
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return result, nil
}

func newEnv(cfg *config.Config, opts Options) scenarios.Env {
	if opts.Env != nil {
		return *opts.Env
	}
	env := scenarios.DefaultEnv()
	env.DatabasePath = cfg.Tools.DatabasePath
	env.MaxRows = cfg.Tools.MaxRows
	env.Fetcher = tools.NewFetcher(cfg.Tools.Request.Timeout(), cfg.Tools.Request.MaxChars)
	return env
}

// matchProvider prefers the CLI flag, then the scenario's provider.
func matchProvider(cfg *config.Config, sc scenarios.Scenario, opts Options) (config.MatchResult, error) {
	name := opts.Provider
	if name == "" {
		name = sc.Provider
	}
	return cfg.MatchProvider(name, opts.Model)
}

// resolveLLMModel picks the flag model, then the scenario model when the
// scenario's provider is in use, then defaults.model, then the provider's
// registry default.
func resolveLLMModel(cfg *config.Config, sc scenarios.Scenario, opts Options, m config.MatchResult) LLMModel {
	switch {
	case opts.Model != "":
		return LLMModel(opts.Model)
	case m.Name() == sc.Provider && sc.Model != "":
		return LLMModel(sc.Model)
	case cfg.Defaults.Model != "":
		return LLMModel(cfg.Defaults.Model)
	}
	return LLMModel(m.Spec.DefaultModel)
}

func newProvider(cfg *config.Config, m config.MatchResult, model LLMModel) (schema.LLMProvider, error) {
	params, err := cfg.ProviderParams(m, string(model))
	if err != nil {
		return nil, err
	}
	return providers.New(params)
}

func newToolbox(ctx context.Context, sc scenarios.Scenario, env scenarios.Env) (*scenarios.Toolbox, error) {
	if sc.Build == nil {
		return nil, errors.New("scenario " + sc.Name + " has no tools")
	}
	return sc.Build(ctx, env)
}

func newSettings(cfg *config.Config, sc scenarios.Scenario, opts Options, model LLMModel) agent.Settings {
	s := agent.Settings{
		Model:        string(model),
		MaxTokens:    cfg.Defaults.MaxTokens,
		SystemPrompt: sc.SystemPrompt,
		FollowUp:     sc.FollowUp && !opts.NoFollowUp,
		Parallel:     cfg.Defaults.Parallel && !opts.Sequential,
	}
	if cfg.Defaults.Temperature != nil {
		s.Temperature = *cfg.Defaults.Temperature
	}
	return s
}

func newRunner(p schema.LLMProvider, tb *scenarios.Toolbox, s agent.Settings, opts Options) *agent.Runner {
	return agent.NewRunner(p, tb.Registry, s, opts.Observer)
}

// newPlan must resolve before newToolbox; New invokes it first.
func newPlan(sc scenarios.Scenario, opts Options) (Plan, error) {
	plan := Plan{Prompt: sc.Prompt, Choice: sc.Choice}
	if opts.Message != "" {
		plan.Prompt = opts.Message
	}
	if opts.Choice != "" {
		choice, err := schema.ParseToolChoice(opts.Choice)
		if err != nil {
			return Plan{}, err
		}
		plan.Choice = choice
	}
	if plan.Choice.Mode == schema.ToolChoiceNamed && !slices.Contains(sc.Tools, tools.ToolName(plan.Choice.Name)) {
		return Plan{}, schema.ConfigurationError("tool choice names %q, which %s does not register", plan.Choice.Name, sc.Name)
	}
	if plan.Choice.IsZero() {
		plan.Choice = schema.AutoChoice()
	}
	return plan, nil
}

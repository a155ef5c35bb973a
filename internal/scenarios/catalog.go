// Package scenarios is the catalog of tool-calling demonstrations. Each
// scenario names a provider, a prompt, a tool-choice policy, and builds the
// tool registry it needs.
package scenarios

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
	"github.com/erangalds/t-tool-calling-with-llms/internal/tools"
)

const noAssumptionsPrompt = "Don't make assumptions about what values to plug into functions. " +
	"Ask for clarification if a user request is ambiguous."

// Env carries the shared tool backends scenarios build their registries from.
type Env struct {
	Payments     *tools.PaymentStore
	Weather      *tools.WeatherService
	Fetcher      *tools.Fetcher
	DatabasePath string
	MaxRows      int
}

// DefaultEnv returns an Env over the sample payments table, a randomly seeded
// weather service and a default fetcher.
func DefaultEnv() Env {
	return Env{
		Payments: tools.NewPaymentStore(tools.DefaultPayments),
		Weather:  tools.NewWeatherService(nil),
		Fetcher:  tools.NewFetcher(0, 0),
		MaxRows:  100,
	}
}

// Toolbox is a built registry plus whatever must be released after the run.
type Toolbox struct {
	Registry *tools.Registry
	closers  []func() error
}

// Close releases the toolbox's resources.
func (t *Toolbox) Close() error {
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		errs = append(errs, t.closers[i]())
	}
	t.closers = nil
	return errors.Join(errs...)
}

// BuildFunc assembles a scenario's tools.
type BuildFunc func(ctx context.Context, env Env) (*Toolbox, error)

// Scenario is one tool-calling demonstration.
type Scenario struct {
	Name         string
	Description  string
	Provider     string
	Model        string
	SystemPrompt string
	Prompt       string
	Choice       schema.ToolChoice
	FollowUp     bool
	Tools        []tools.ToolName // names registered by Build, for display
	Build        BuildFunc
}

var catalog = []Scenario{
	{
		Name:        "payment-status",
		Description: "Look up a transaction in the payments table; a tool call is required.",
		Provider:    "mistral",
		Model:       "mistral-large-latest",
		Prompt:      "What's the status of my transaction T1001?",
		Choice:      schema.RequireAny(),
		FollowUp:    true,
		Tools:       []tools.ToolName{tools.ToolPaymentStatus, tools.ToolPaymentDate},
		Build:       buildPayments,
	},
	{
		Name:         "weather-forced",
		Description:  "Force the N-day forecast tool for a single weather report.",
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		SystemPrompt: noAssumptionsPrompt,
		Prompt:       "Give me a weather report for Toronto, Canada. in Fahrenheit",
		Choice:       schema.RequireTool(string(tools.ToolWeatherForecast)),
		FollowUp:     false,
		Tools:        []tools.ToolName{tools.ToolCurrentWeather, tools.ToolWeatherForecast},
		Build:        buildWeather,
	},
	{
		Name:         "weather-parallel",
		Description:  "Let the model issue parallel forecast calls for two cities.",
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		SystemPrompt: noAssumptionsPrompt,
		Prompt:       "what is the weather going to be like in San Francisco and Glasgow over the next 4 days",
		Choice:       schema.AutoChoice(),
		FollowUp:     true,
		Tools:        []tools.ToolName{tools.ToolCurrentWeather, tools.ToolWeatherForecast},
		Build:        buildWeather,
	},
	{
		Name:        "music-database",
		Description: "Answer a question by letting the model write SQL against the Chinook sample database.",
		Provider:    "openai",
		Model:       "gpt-4o",
		Prompt:      "What are the firstnames of the top 5 customers from the revenue they have given us?",
		Choice:      schema.AutoChoice(),
		FollowUp:    true,
		Tools:       []tools.ToolName{tools.ToolAskDatabase},
		Build:       buildDatabase,
	},
	{
		Name:        "web-request",
		Description: "Fetch a web page through an HTTP request tool on a local model.",
		Provider:    "ollama",
		Model:       "llama3.2",
		Prompt:      "get the ollama.com webpage?",
		Choice:      schema.AutoChoice(),
		FollowUp:    false,
		Tools:       []tools.ToolName{tools.ToolRequest},
		Build:       buildRequest,
	},
}

// All returns the catalog sorted by name.
func All() []Scenario {
	out := make([]Scenario, len(catalog))
	copy(out, catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Find returns the scenario called name.
func Find(name string) (Scenario, error) {
	for _, s := range catalog {
		if s.Name == name {
			return s, nil
		}
	}
	names := make([]string, 0, len(catalog))
	for _, s := range All() {
		names = append(names, s.Name)
	}
	return Scenario{}, schema.ConfigurationError("unknown scenario %q (available: %s)", name, strings.Join(names, ", "))
}

// ---------------------------------------------------------------------------
// Registry builders
// ---------------------------------------------------------------------------

func buildPayments(_ context.Context, env Env) (*Toolbox, error) {
	if env.Payments == nil {
		env.Payments = tools.NewPaymentStore(tools.DefaultPayments)
	}
	reg, err := tools.NewRegistryBuilder().
		WithTool(tools.NewPaymentStatusTool(env.Payments)).
		WithTool(tools.NewPaymentDateTool(env.Payments)).
		Build()
	if err != nil {
		return nil, err
	}
	return &Toolbox{Registry: reg}, nil
}

func buildWeather(_ context.Context, env Env) (*Toolbox, error) {
	if env.Weather == nil {
		env.Weather = tools.NewWeatherService(nil)
	}
	reg, err := tools.NewRegistryBuilder().
		WithTool(tools.NewCurrentWeatherTool(env.Weather)).
		WithTool(tools.NewForecastTool(env.Weather)).
		Build()
	if err != nil {
		return nil, err
	}
	return &Toolbox{Registry: reg}, nil
}

func buildDatabase(ctx context.Context, env Env) (*Toolbox, error) {
	db, err := tools.OpenDatabase(env.DatabasePath, env.MaxRows)
	if err != nil {
		return nil, schema.ConfigurationError("music-database needs tools.databasePath: %v", err)
	}
	ask, err := tools.NewAskDatabaseTool(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("describe database: %w", err)
	}
	reg, err := tools.NewRegistryBuilder().WithTool(ask).Build()
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Toolbox{Registry: reg, closers: []func() error{db.Close}}, nil
}

func buildRequest(_ context.Context, env Env) (*Toolbox, error) {
	if env.Fetcher == nil {
		env.Fetcher = tools.NewFetcher(0, 0)
	}
	reg, err := tools.NewRegistryBuilder().WithTool(tools.NewRequestTool(env.Fetcher)).Build()
	if err != nil {
		return nil, err
	}
	return &Toolbox{Registry: reg}, nil
}

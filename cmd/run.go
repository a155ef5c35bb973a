package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/erangalds/t-tool-calling-with-llms/internal/agent"
	"github.com/erangalds/t-tool-calling-with-llms/internal/config"
	"github.com/erangalds/t-tool-calling-with-llms/internal/dependency"
	"github.com/erangalds/t-tool-calling-with-llms/internal/render"
	"github.com/erangalds/t-tool-calling-with-llms/internal/scenarios"
	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
	"github.com/erangalds/t-tool-calling-with-llms/internal/session"
)

var (
	runProvider   string
	runModel      string
	runMessage    string
	runChoice     string
	runNoFollowUp bool
	runSequential bool
	runTranscript string
	runNoColor    bool
	runMaxChars   int
)

var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Run one tool-calling scenario",
	Long: "Run one tool-calling scenario and print the conversation as it grows.\n" +
		"See `toolcall scenarios` for the catalog.",
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runProvider, "provider", "p", "", "Provider override (openai, mistral, anthropic, ollama)")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model override")
	runCmd.Flags().StringVarP(&runMessage, "message", "M", "", "User message replacing the scenario prompt")
	runCmd.Flags().StringVar(&runChoice, "choice", "", "Tool choice override: auto, required, none or tool:<name>")
	runCmd.Flags().BoolVar(&runNoFollowUp, "no-follow-up", false, "Stop after dispatching tool calls")
	runCmd.Flags().BoolVar(&runSequential, "sequential", false, "Dispatch tool calls one at a time")
	runCmd.Flags().StringVar(&runTranscript, "transcript", "", "Save the conversation as JSONL to this path")
	runCmd.Flags().BoolVar(&runNoColor, "no-color", false, "Disable colored output")
	runCmd.Flags().IntVar(&runMaxChars, "max-chars", 2000, "Truncate printed tool results (0 = no limit)")
}

func runRun(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := scenarios.Find(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printer := render.NewPrinter(os.Stdout, runNoColor, runMaxChars)
	run, err := runScenario(ctx, cfg, sc, dependency.Options{
		Provider:   runProvider,
		Model:      runModel,
		Message:    runMessage,
		Choice:     runChoice,
		NoFollowUp: runNoFollowUp,
		Sequential: runSequential,
		Observer:   printer,
	})
	if runTranscript != "" && run.conv != nil {
		if err := saveTranscript(runTranscript, run); err != nil {
			slog.Warn("Transcript not saved", "path", runTranscript, "err", err)
		} else {
			fmt.Fprintf(os.Stderr, "✓ Transcript saved to %s\n", runTranscript)
		}
	}
	if err != nil {
		return err
	}
	printer.Summary(run.result)
	return nil
}

// scenarioRun is one finished (or failed) scenario turn.
type scenarioRun struct {
	scenario scenarios.Scenario
	provider string
	model    string
	choice   schema.ToolChoice
	conv     *schema.Conversation
	result   agent.TurnResult
}

// runScenario wires a container for sc and runs one turn. The returned run
// carries the conversation even when the turn fails part-way.
func runScenario(ctx context.Context, cfg *config.Config, sc scenarios.Scenario, opts dependency.Options) (scenarioRun, error) {
	run := scenarioRun{scenario: sc}

	c, err := dependency.New(ctx, cfg, sc, opts)
	if err != nil {
		return run, err
	}
	defer func() {
		if err := c.Close(); err != nil {
			slog.Warn("Closing scenario tools", "scenario", sc.Name, "err", err)
		}
	}()

	plan := c.Plan()
	run.provider, run.model, run.choice = c.ProviderName(), c.Model(), plan.Choice
	run.conv = schema.NewConversation()

	slog.Info("Running scenario", "scenario", sc.Name, "provider", run.provider, "model", run.model, "choice", plan.Choice.String())
	run.result, err = c.Runner().RunTurn(ctx, run.conv, plan.Prompt, plan.Choice)
	return run, err
}

func saveTranscript(path string, run scenarioRun) error {
	t := session.NewTranscript(run.result.TurnID, run.scenario.Name, run.provider, run.model, run.conv)
	t.Metadata["choice"] = run.choice.String()
	t.Metadata["modelCalls"] = run.result.ModelCalls
	t.Metadata["totalTokens"] = run.result.Usage.TotalTokens
	return session.Save(path, t)
}

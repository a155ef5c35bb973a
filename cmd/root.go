// Package cmd implements the toolcall CLI using cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/erangalds/t-tool-calling-with-llms/internal/config"
)

const version = "0.1.0"
const logo = "🛠"

var (
	cfgFile  string
	showLogs bool
	quiet    bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "toolcall",
	Short: logo + " toolcall — tool calling with LLMs",
	Long: logo + " toolcall runs tool-calling scenarios against OpenAI, Mistral,\n" +
		"Anthropic and Ollama models: the model picks tools, the tools run\n" +
		"locally, and the results are folded back into the conversation.",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $"+config.EnvConfigPath+" or ~/.toolcall/config.json)")
	rootCmd.PersistentFlags().BoolVar(&showLogs, "logs", false, "Show debug logs")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(transcriptsCmd)
}

func setupLogging(_ *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	switch {
	case showLogs:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.ConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

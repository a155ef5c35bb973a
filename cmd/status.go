package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erangalds/t-tool-calling-with-llms/internal/providers"
	"github.com/erangalds/t-tool-calling-with-llms/internal/shared/llmutils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show config and provider credentials",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := configPath()

	fmt.Printf("%s toolcall Status\n\n", logo)

	cfgMark := "✗ (using defaults)"
	if _, err := os.Stat(cfgPath); err == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:   %s %s\n", cfgPath, cfgMark)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	dbMark := "✗"
	if _, err := os.Stat(cfg.Tools.DatabasePath); err == nil {
		dbMark = "✓"
	}
	fmt.Printf("Database: %s %s\n", cfg.Tools.DatabasePath, dbMark)
	fmt.Printf("Retry:    %d attempts, %s → %s backoff\n\n",
		cfg.Retry.MaxAttempts, cfg.Retry.InitialInterval(), cfg.Retry.MaxInterval())

	fmt.Println("Providers:")
	for _, spec := range providers.PROVIDERS {
		label := spec.Label()
		base := llmutils.StringOrDefault(cfg.ResolveAPIBase(spec), spec.DefaultAPIBase)
		switch {
		case spec.IsLocal:
			fmt.Printf("  %-12s ✓ %s (no key needed)\n", label, base)
		case cfg.RequireCredential(spec) == nil:
			fmt.Printf("  %-12s ✓ %s\n", label, base)
		default:
			fmt.Printf("  %-12s (not set: %s)\n", label, spec.EnvKey)
		}
	}
	return nil
}

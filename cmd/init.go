package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erangalds/t-tool-calling-with-llms/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  runInit,
}

func runInit(_ *cobra.Command, _ []string) error {
	cfgPath := configPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	fmt.Printf("\n%s toolcall is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add API keys to %s, or export OPENAI_API_KEY / MISTRAL_API_KEY / ANTHROPIC_API_KEY\n", cfgPath)
	fmt.Println("  2. For music-database, point tools.databasePath at the Chinook sample database")
	fmt.Println("  3. Run: toolcall run payment-status")
	return nil
}

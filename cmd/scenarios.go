package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erangalds/t-tool-calling-with-llms/internal/scenarios"
	"github.com/erangalds/t-tool-calling-with-llms/internal/shared/llmutils"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the scenario catalog",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Printf("%-18s %-30s %-34s %-9s %s\n", "Scenario", "Provider / model", "Choice", "Follow-up", "Tools")
		fmt.Println(strings.Repeat("-", 130))
		for _, sc := range scenarios.All() {
			names := make([]string, len(sc.Tools))
			for i, n := range sc.Tools {
				names[i] = string(n)
			}
			followUp := "no"
			if sc.FollowUp {
				followUp = "yes"
			}
			fmt.Printf("%-18s %-30s %-34s %-9s %s\n",
				sc.Name, sc.Provider+" / "+sc.Model, sc.Choice.String(), followUp, strings.Join(names, ", "))
			fmt.Printf("%-18s %s\n\n", "", llmutils.Truncate(sc.Description, 110))
		}
		return nil
	},
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erangalds/t-tool-calling-with-llms/internal/render"
	"github.com/erangalds/t-tool-calling-with-llms/internal/session"
	"github.com/erangalds/t-tool-calling-with-llms/internal/shared/cmdutils"
)

var transcriptsCmd = &cobra.Command{
	Use:   "transcripts",
	Short: "List saved scheduled-run transcripts",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		list := session.List(transcriptDir())
		if len(list) == 0 {
			fmt.Printf("No transcripts in %s\n", transcriptDir())
			return nil
		}
		rows := make([][]string, len(list))
		for i, s := range list {
			rows[i] = []string{s.Key, s.Scenario, s.CreatedAt, s.Path}
		}
		cmdutils.Table(os.Stdout, []int{26, 18, 20}, []string{"Turn", "Scenario", "Created", "Path"}, rows)
		return nil
	},
}

var transcriptShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Print a saved transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		t, err := session.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s · %s / %s · %s\n\n", t.Scenario, t.Provider, t.Model, t.CreatedAt.Format("2006-01-02 15:04:05"))
		render.NewPrinter(os.Stdout, showNoColor, 0).Conversation(t.Conversation)
		fmt.Printf("%d message(s), %d tool call(s)\n", t.Conversation.Len(), t.ToolCallCount())
		return nil
	},
}

var showNoColor bool

func init() {
	transcriptShowCmd.Flags().BoolVar(&showNoColor, "no-color", false, "Disable colored output")
	transcriptsCmd.AddCommand(transcriptShowCmd)
}

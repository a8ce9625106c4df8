package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/session"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show the conversation of a session",
	Long: `Print every question and answer recorded in a session, oldest first.

With --last N only the N most recent exchanges are shown, the same ones the
agent feeds back to the model as conversation context.

Examples:
  buddy history 3f2a...             # Full conversation
  buddy history 3f2a... --last 3    # What the model sees as recent context
  buddy history 3f2a... --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var historyLast int

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLast, "last", 0, "Only show the N most recent exchanges")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	p, err := loadProject()
	if err != nil {
		return err
	}

	st, err := p.openSessions()
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := st.GetSession(ctx, args[0])
	if err != nil {
		return fmt.Errorf("session %s: %w", args[0], err)
	}

	var exchanges []*session.Exchange
	if historyLast > 0 {
		exchanges, err = st.Recent(ctx, s.ID, historyLast)
	} else {
		exchanges, err = st.History(ctx, s.ID)
	}
	if err != nil {
		return err
	}

	if outputFormat == "text" || outputFormat == "txt" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), session.FormatHistory(exchanges))
		return err
	}

	if exchanges == nil {
		exchanges = []*session.Exchange{}
	}
	return writeOutput(cmd.OutOrStdout(), map[string]interface{}{
		"session":   s,
		"exchanges": exchanges,
	})
}

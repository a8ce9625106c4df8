package cmd

import (
	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/output"
)

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent chat sessions",
	Long: `List stored sessions, most recently used first.

Use a session ID with 'buddy agent --session', 'buddy ask --session',
'buddy context --session' or 'buddy history'.

Examples:
  buddy sessions                 # Ten most recent sessions
  buddy sessions --limit 50      # More of them
  buddy sessions --format text   # Human-readable listing`,
	RunE: runSessions,
}

var sessionsLimit int

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 10, "Maximum sessions to list")
}

func runSessions(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	st, err := p.openSessions()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.ListRecent(commandContext(cmd), sessionsLimit)
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), output.NewSessionListOutput(sessions))
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cxcontext "github.com/codebuddy/buddy/internal/context"
	"github.com/codebuddy/buddy/internal/output"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <question>",
	Short: "Show the intent, keywords and technical terms of a question",
	Long: `Analyze a question the way context selection sees it.

Output Structure:
  query:          The analyzed question
  intent:         debug | feature | explain | refactor | test | config | general
  keywords:       Search keywords in first-seen order
  tech_terms:     Technical terms with confidence (medium and dense)
  intent_counts:  Matched patterns per intent (dense only)

Examples:
  buddy analyze "why does AuthService.login() crash?"
  buddy analyze --density dense "add tests for the parser"
  echo "how does caching work" | buddy analyze -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	query, err := readArg(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if query == "" {
		return fmt.Errorf("question is empty")
	}

	analysis := cxcontext.NewQueryAnalyzer(logger).Analyze(query)
	return writeOutput(cmd.OutOrStdout(), output.NewAnalysisOutput(query, analysis))
}

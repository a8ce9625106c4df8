package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/output"
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank <question>",
	Short: "Rank project files by relevance to a question",
	Long: `Score every project file against a question and show the best matches.

The score adds up:
  - Keywords in the filename (+10) or anywhere in the path (+5)
  - An intent bonus (test files, config files, docs, log/error files)
  - Technical terms in the path, or a matching file type
  - Recency: modified in the last hour (+5), day (+3) or week (+1)

Files come from git ls-files, or a directory walk that skips dependency
directories when the project is not a git repository.

Density Effects:
  sparse:   Path and score
  medium:   Add the reasons (default)
  dense:    Add size and modification time
  smart:    Dense for strong matches, sparse for weak ones

Examples:
  buddy rank "fix the login bug"             # Top 20 files
  buddy rank --top 5 "add a settings page"   # Top 5 files
  buddy rank --format text "config.yaml"     # One line per file`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRank,
}

var rankTop int

func init() {
	rootCmd.AddCommand(rankCmd)
	rankCmd.Flags().IntVar(&rankTop, "top", 20, "Show top N files")
}

func runRank(cmd *cobra.Command, args []string) error {
	query, err := readArg(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if query == "" {
		return fmt.Errorf("question is empty")
	}
	if rankTop <= 0 {
		return fmt.Errorf("--top must be positive, got %d", rankTop)
	}

	p, err := loadProject()
	if err != nil {
		return err
	}

	b := p.builder()
	analysis := b.Analyzer().Analyze(query)
	files := b.Scorer().ScoreFiles(commandContext(cmd), analysis, rankTop)

	return writeOutput(cmd.OutOrStdout(), output.NewRankOutput(query, analysis, files))
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/diff"
)

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff [commit-range]",
	Short: "Show the changed files that feed the RECENT CHANGES section",
	Long: `List changed files as git reports them.

Without arguments this is every uncommitted change (staged, unstaged and
untracked), the same list 'buddy context --git-changes' and the agent add to
the RECENT CHANGES section.

Arguments:
  commit-range  Compare commits instead (e.g. HEAD~3, main..feature)

Examples:
  buddy diff                    # Uncommitted changes
  buddy diff --staged           # Staged changes only
  buddy diff HEAD~5             # Changes over the last 5 commits
  buddy diff --format text      # As the context section renders them`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiff,
}

var (
	diffStaged bool
	diffPath   string
)

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().BoolVar(&diffStaged, "staged", false, "Only staged changes")
	diffCmd.Flags().StringVar(&diffPath, "path", "", "Limit to a path")
}

// DiffOutput lists changed files.
type DiffOutput struct {
	Changes []diff.FileChange `yaml:"changes" json:"changes"`
	Count   int               `yaml:"count" json:"count"`
}

// Text renders the changes as the RECENT CHANGES section does.
func (d *DiffOutput) Text() string {
	if len(d.Changes) == 0 {
		return "No changes.\n"
	}
	return diff.Render(d.Changes) + "\n"
}

func runDiff(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	gd := diff.NewGitDiff(p.root)

	var changes []diff.FileChange
	if len(args) == 0 && !diffStaged && diffPath == "" {
		changes, err = gd.GetUncommittedChanges(ctx)
	} else {
		opts := diff.DiffOptions{Staged: diffStaged, Path: diffPath}
		if len(args) == 1 {
			opts.CommitRange = args[0]
		}
		changes, err = gd.GetChangedFiles(ctx, opts)
	}
	if err != nil {
		return err
	}

	if changes == nil {
		changes = []diff.FileChange{}
	}
	return writeOutput(cmd.OutOrStdout(), &DiffOutput{Changes: changes, Count: len(changes)})
}

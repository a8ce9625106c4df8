package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/errpattern"
	"github.com/codebuddy/buddy/internal/output"
	"github.com/codebuddy/buddy/internal/relay"
)

// suggestionsCmd represents the suggestions command
var suggestionsCmd = &cobra.Command{
	Use:   "suggestions [files...]",
	Short: "Show fix suggestions for errors in the terminal session",
	Long: `Show the fix suggestions for errors found in a terminal transcript.

Without flags, prints the suggestions a running 'buddy agent' has published
for its session log. With --log, scans the given transcript once instead.
With --scan, checks source files for hardcoded secrets, print calls and bare
except clauses.

Recognized errors include Python tracebacks (syntax, import, type, key and
index errors), missing files, permission problems, failed tests and
hardcoded secrets. Suggestions are ordered most urgent first.

Examples:
  buddy suggestions                          # What the agent has found
  buddy suggestions --log ~/term.log         # Scan a transcript
  buddy suggestions --scan src/app.py        # Check source files
  buddy suggestions --clear                  # Dismiss current suggestions`,
	RunE: runSuggestions,
}

var (
	suggestionsLog   string
	suggestionsScan  bool
	suggestionsClear bool
)

func init() {
	rootCmd.AddCommand(suggestionsCmd)

	suggestionsCmd.Flags().StringVar(&suggestionsLog, "log", "", "Scan this terminal transcript instead of reading the agent's suggestions")
	suggestionsCmd.Flags().BoolVar(&suggestionsScan, "scan", false, "Check the given source files for code smells")
	suggestionsCmd.Flags().BoolVar(&suggestionsClear, "clear", false, "Remove the agent's published suggestions")
}

func runSuggestions(cmd *cobra.Command, args []string) error {
	if suggestionsScan && len(args) == 0 {
		return fmt.Errorf("--scan needs at least one file")
	}
	if !suggestionsScan && len(args) > 0 {
		return fmt.Errorf("unexpected arguments %v: use --scan to check files", args)
	}

	p, err := loadProject()
	if err != nil {
		return err
	}

	if suggestionsClear {
		if err := errpattern.RemoveFiles(p.sessionsDir()); err != nil {
			return fmt.Errorf("clear suggestions: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cleared suggestions")
		return nil
	}

	var out *output.SuggestionsOutput
	switch {
	case suggestionsScan:
		var found []errpattern.Detection
		for _, arg := range args {
			path := arg
			if !filepath.IsAbs(path) {
				path = filepath.Join(p.root, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", arg, err)
			}
			found = append(found, errpattern.ScanFile(string(data), arg)...)
		}
		out = output.NewSuggestionsOutput(strings.Join(args, ", "), found)

	case suggestionsLog != "":
		text, err := relay.ReadBounded(suggestionsLog, int64(p.cfg.Relay.MaxReadBytes))
		if err != nil {
			return fmt.Errorf("read session log: %w", err)
		}
		out = output.NewSuggestionsOutput(suggestionsLog, errpattern.NewDetector(nil).Detect(text))

	default:
		saved, err := errpattern.ReadSuggestions(p.sessionsDir())
		if err != nil {
			return err
		}
		out = output.NewSuggestionsOutput(filepath.Join(p.sessionsDir(), errpattern.SuggestionsFile), saved.Suggestions)
	}

	return writeOutput(cmd.OutOrStdout(), out)
}

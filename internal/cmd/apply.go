package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/fileops"
)

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply <plan.json|->",
	Short: "Create, update or delete files from a JSON plan",
	Long: `Apply a file operation plan to the project.

A plan is the JSON object 'buddy ask --apply' requests from the model:

  {"files": [{"operation": "create", "path": "docs/usage.md",
              "content": "...", "description": "..."}],
   "summary": "...", "warnings": ["..."]}

Paths are relative to the project root. Paths leaving the project, or
touching .git, .env, .ssh, node_modules or .buddy, are refused. Create fails
for existing files unless "overwrite" is true; update and delete need the
file to exist. A failed operation does not stop the others.

Examples:
  buddy apply plan.json              # Apply a saved plan
  buddy apply --dry-run plan.json    # Check it without writing
  cat plan.json | buddy apply -      # Read the plan from stdin`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

var applyDryRun bool

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Validate the plan without changing any file")
}

func runApply(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}

	plan, err := fileops.ParsePlan(string(data))
	if err != nil {
		return err
	}

	p, err := loadProject()
	if err != nil {
		return err
	}
	return applyPlan(cmd, p, plan, applyDryRun)
}

// applyPlan executes plan in the project and reports the result. It fails
// when any operation failed.
func applyPlan(cmd *cobra.Command, p *project, plan *fileops.Plan, dryRun bool) error {
	executor, err := fileops.NewExecutor(p.root, 0, logger)
	if err != nil {
		return err
	}

	if plan.Summary != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", plan.Summary)
	}
	for _, w := range plan.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}

	var result *fileops.Result
	if dryRun {
		result = executor.DryRun(plan)
	} else {
		result = executor.Execute(plan)
	}

	if err := writeOutput(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%d of %d file operations failed", len(result.Errors), len(plan.Files))
	}
	return nil
}

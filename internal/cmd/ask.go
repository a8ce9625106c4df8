package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codebuddy/buddy/internal/fileops"
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question directly, without a running agent",
	Long: `Assemble context for a question, ask Gemini and print the answer.

The exchange is recorded in a session like the ones 'buddy agent' keeps, so
follow-up questions with --session see the earlier answers.

With --apply the model is asked for a file operation plan instead of prose,
and the plan is applied like 'buddy apply' would (add --dry-run to only
check it).

Examples:
  buddy ask "why does the login handler return 500?"
  buddy ask --session 3f2a... "and how do I test that?"
  git diff | buddy ask -
  buddy ask --apply "create a README with install steps"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var (
	askSession string
	askNoCache bool
	askApply   bool
	askDryRun  bool
)

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askSession, "session", "", "Continue this session (default: start a new one)")
	askCmd.Flags().BoolVar(&askNoCache, "no-cache", false, "Do not use the Redis response cache")
	askCmd.Flags().BoolVar(&askApply, "apply", false, "Ask for a file operation plan and apply it")
	askCmd.Flags().BoolVar(&askDryRun, "dry-run", false, "With --apply, check the plan without writing files")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	question, err := readArg(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	p, err := loadProject()
	if err != nil {
		return err
	}

	st, err := p.openSessions()
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := resumeOrCreate(ctx, st, p.root, askSession)
	if err != nil {
		return err
	}

	agent, release, err := newAgent(ctx, p, st, s, !askNoCache, false)
	if err != nil {
		return err
	}
	defer release()

	instructions := ""
	if askApply {
		instructions = fileops.PlanInstructions
	}

	answer, err := agent.AnswerWith(ctx, question, instructions)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if _, err := st.AddExchange(ctx, s.ID, question, answer); err != nil {
		logger.Warn("record exchange", zap.Error(err))
	}

	if askApply {
		fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", s.ID)
		plan, err := fileops.ParsePlan(answer)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return fmt.Errorf("apply: %w", err)
		}
		return applyPlan(cmd, p, plan, askDryRun)
	}

	fmt.Fprintln(cmd.OutOrStdout(), answer)
	if fileops.DetectRequest(question) {
		fmt.Fprintln(cmd.ErrOrStderr(), "\ntip: add --apply to let buddy write these files")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\nsession: %s\n", s.ID)
	return nil
}

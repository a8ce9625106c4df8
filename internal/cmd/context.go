package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cxcontext "github.com/codebuddy/buddy/internal/context"
	"github.com/codebuddy/buddy/internal/output"
	"github.com/codebuddy/buddy/internal/session"
)

// contextCmd represents the context command
var contextCmd = &cobra.Command{
	Use:   "context <question>",
	Short: "Assemble size-bounded project context for a question",
	Long: `Assemble the context buddy would send to the model for a question.

Sections, in order, each only when it has content:
  ### RECENT CONVERSATION ###    Prior exchanges (--conversation or --session)
  ### RECENT SESSION LOG ###     Tail of the terminal log (debugging questions only)
  ### RECENT CHANGES ###         Changes log, plus git changes with --git-changes
  ### RELEVANT PROJECT FILES ### Ranked files, whole or excerpted, within budget

The file budget depends on the question's intent (debugging questions get the
most room, configuration questions the least) and the whole context never
exceeds the configured max_context_size.

When smart context is disabled in config.yaml, the whole repository is
flattened instead.

Examples:
  buddy context "why does login fail?"                    # YAML with content
  buddy context --format text "add a logout button"       # Just the context
  buddy context --session 3f2a... "and the tests?"        # Use a stored session
  buddy context --log term.log --git-changes "fix crash"  # Explicit inputs`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContext,
}

var (
	contextLogPath      string
	contextChangesPath  string
	contextGitChanges   bool
	contextConversation string
	contextSession      string
)

func init() {
	rootCmd.AddCommand(contextCmd)

	contextCmd.Flags().StringVar(&contextLogPath, "log", "", "Terminal session log file")
	contextCmd.Flags().StringVar(&contextChangesPath, "changes", "", "File listing recent changes (default: the sessions changes.log)")
	contextCmd.Flags().BoolVar(&contextGitChanges, "git-changes", false, "Add uncommitted git changes")
	contextCmd.Flags().StringVar(&contextConversation, "conversation", "", "File holding the recent conversation")
	contextCmd.Flags().StringVar(&contextSession, "session", "", "Session ID to take the conversation and log from")
}

func runContext(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	query, err := readArg(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if query == "" {
		return fmt.Errorf("question is empty")
	}

	p, err := loadProject()
	if err != nil {
		return err
	}

	in := cxcontext.Input{Query: query}

	if contextSession != "" {
		st, err := p.openSessions()
		if err != nil {
			return err
		}
		defer st.Close()

		s, err := st.GetSession(ctx, contextSession)
		if err != nil {
			return fmt.Errorf("session %s: %w", contextSession, err)
		}
		recent, err := st.Recent(ctx, s.ID, p.cfg.Session.HistoryExchanges)
		if err != nil {
			return err
		}
		if len(recent) > 0 {
			in.ConversationHistory = session.RecentContext(recent)
		}
		if contextLogPath == "" {
			in.SessionLog = p.readSessionLog(p.sessionLogPath(s))
		}
	}

	if contextLogPath != "" {
		in.SessionLog = p.readSessionLog(contextLogPath)
	}

	if contextConversation != "" {
		data, err := os.ReadFile(contextConversation)
		if err != nil {
			return fmt.Errorf("read conversation: %w", err)
		}
		in.ConversationHistory = strings.TrimSpace(string(data))
	}

	changeLog := p.changeLog()
	if contextChangesPath != "" {
		data, err := os.ReadFile(contextChangesPath)
		if err != nil {
			return fmt.Errorf("read changes: %w", err)
		}
		changeLog = strings.TrimSpace(string(data))
	}
	if contextGitChanges {
		changeLog = joinNonEmpty(changeLog, p.gitChanges(ctx))
	}
	in.ChangesLog = changeLog

	b := p.builder()
	var result *cxcontext.Result
	if b.Enabled() {
		result = b.Build(ctx, in)
	} else {
		result, err = blobResult(cmd, p, b, query)
		if err != nil {
			return err
		}
	}

	return writeOutput(cmd.OutOrStdout(), output.NewContextOutput(query, result))
}

// blobResult wraps the flattened repository as a context result.
func blobResult(cmd *cobra.Command, p *project, b *cxcontext.Builder, query string) (*cxcontext.Result, error) {
	logger.Info("smart context disabled, flattening repository", zap.String("root", p.root))

	text, err := p.blob().String(commandContext(cmd))
	if err != nil {
		return nil, fmt.Errorf("flatten repository: %w", err)
	}

	analysis := b.Analyzer().Analyze(query)
	return &cxcontext.Result{
		Context:       text,
		IncludedFiles: []string{},
		Intent:        analysis.Intent,
		Keywords:      analysis.Keywords,
		Size:          len(text),
	}, nil
}

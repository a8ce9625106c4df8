package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codebuddy/buddy/internal/errpattern"
	"github.com/codebuddy/buddy/internal/relay"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively through a running agent",
	Long: `Start an interactive prompt that relays questions to 'buddy agent'.

Questions are written to the sessions directory; the agent picks them up,
answers with smart project context and writes the response back. Start the
agent first, typically in another terminal.

Problems the agent spots in the terminal transcript are announced before
the next prompt.

Commands inside the prompt:
  exit, quit   Leave the chat
  clear        Discard a stale request or response left in the mailbox
  suggestions  Show the agent's current fix suggestions

Examples:
  buddy agent &     # In another terminal
  buddy chat`,
	RunE: runChat,
}

var (
	primaryColor = lipgloss.Color("#00D9FF")
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	warningColor = lipgloss.Color("#F59E0B")
	mutedColor   = lipgloss.Color("#6B7280")

	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	answerStyle    = lipgloss.NewStyle().Foreground(successColor)
	errorStyle     = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(warningColor)
	mutedTextStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	box := p.mailbox()
	if err := box.Ensure(); err != nil {
		return err
	}
	maxAge := 3 * p.cfg.Relay.HeartbeatInterval
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, headerStyle.Render("buddy chat"))
	if !box.AgentAlive(maxAge) {
		fmt.Fprintln(out, errorStyle.Render("No agent is running. Start one with 'buddy agent'."))
	}
	fmt.Fprintln(out, mutedTextStyle.Render("Type a question, or 'exit' to quit."))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          headerStyle.Render("you> "),
		HistoryFile:     filepath.Join(p.sessionsDir(), ".chat_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	for {
		showNotification(out, box.Dir())

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		question := strings.TrimSpace(line)
		switch question {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "clear":
			if err := box.Reset(false); err != nil {
				fmt.Fprintln(out, errorStyle.Render(err.Error()))
			}
			continue
		case "suggestions":
			showSuggestions(out, box.Dir())
			continue
		}

		answer, err := relayQuestion(commandContext(cmd), box, question, p.cfg.Relay.Polling(), maxAge, out)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(chatError(err)))
			continue
		}
		fmt.Fprintln(out, answerStyle.Render(answer))
		fmt.Fprintln(out)
	}
}

// relayQuestion posts a question and waits for the agent's answer. Ctrl+C
// abandons the wait without leaving the chat.
func relayQuestion(parent context.Context, box *relay.Mailbox, question string, poll, maxAge time.Duration, out io.Writer) (string, error) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if box.HasRequest() || box.IsProcessing() {
		return "", fmt.Errorf("the agent is still busy with a previous question")
	}
	// A response nobody waited for belongs to an abandoned question
	_, _ = box.TakeResponse()

	if err := box.SubmitRequest(question); err != nil {
		return "", err
	}

	fmt.Fprint(out, mutedTextStyle.Render("thinking"))
	defer fmt.Fprintln(out)

	answer, err := box.WaitResponse(ctx, poll, maxAge, func() {
		fmt.Fprint(out, mutedTextStyle.Render("."))
	})
	if err != nil && ctx.Err() != nil {
		// Withdraw the question if the agent has not picked it up yet
		_, _ = box.TakeRequest()
	}
	return answer, err
}

// showNotification prints the agent's pending error notification, if any.
func showNotification(out io.Writer, dir string) {
	n, err := errpattern.TakeNotification(dir)
	if err != nil {
		if !errors.Is(err, errpattern.ErrNoNotification) {
			logger.Debug("read notification", zap.Error(err))
		}
		return
	}
	fmt.Fprintln(out, warningStyle.Render(errpattern.FormatNotification(n)))
}

func showSuggestions(out io.Writer, dir string) {
	s, err := errpattern.ReadSuggestions(dir)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render(err.Error()))
		return
	}
	if len(s.Suggestions) == 0 {
		fmt.Fprintln(out, mutedTextStyle.Render("No suggestions."))
		return
	}
	fmt.Fprintln(out, errpattern.FormatSuggestions(s.Suggestions))
}

func chatError(err error) string {
	switch {
	case errors.Is(err, relay.ErrAgentGone):
		return "The agent stopped before answering. Restart it with 'buddy agent'."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return err.Error()
	}
}

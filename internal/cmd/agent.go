package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codebuddy/buddy/internal/errpattern"
	"github.com/codebuddy/buddy/internal/relay"
	"github.com/codebuddy/buddy/internal/session"
)

// agentCmd represents the agent command
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the agent that answers questions from buddy chat",
	Long: `Run the monitoring agent for a chat session.

The agent watches the sessions directory for questions written by 'buddy chat',
assembles context for each one (smart context, or the whole repository when
smart context is disabled), asks Gemini and writes the answer back. Every
exchange is recorded in the session database and the most recent ones are fed
back as conversation context.

A heartbeat file lets chat clients notice when the agent has stopped.

While it runs, the agent also scans the terminal transcript for well-known
errors (tracebacks, missing modules, failed tests, hardcoded secrets) and
publishes fix suggestions that 'buddy chat' and 'buddy suggestions' show.

Requires GEMINI_API_KEY (or gemini.api_key in .buddy/config.yaml).

Examples:
  buddy agent                        # Start a new session
  buddy agent --session 3f2a...      # Resume a stored session
  buddy agent --log ~/term.log       # Use a specific terminal transcript
  buddy agent --no-monitor           # Answer questions only`,
	Annotations: map[string]string{logLevelAnnotation: "info"},
	RunE:        runAgent,
}

var (
	agentSession   string
	agentLogPath   string
	agentNoCache   bool
	agentNoMonitor bool
)

func init() {
	rootCmd.AddCommand(agentCmd)

	agentCmd.Flags().StringVar(&agentSession, "session", "", "Resume this session instead of starting a new one")
	agentCmd.Flags().StringVar(&agentLogPath, "log", "", "Terminal session log (default: session_<id>.log in the sessions dir)")
	agentCmd.Flags().BoolVar(&agentNoCache, "no-cache", false, "Do not use the Redis response cache")
	agentCmd.Flags().BoolVar(&agentNoMonitor, "no-monitor", false, "Do not scan the session log for errors")
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := loadProject()
	if err != nil {
		return err
	}

	st, err := p.openSessions()
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := resumeOrCreate(ctx, st, p.root, agentSession)
	if err != nil {
		return err
	}

	agent, closeAgent, err := newAgent(ctx, p, st, s, !agentNoCache, !agentNoMonitor)
	if err != nil {
		return err
	}
	defer closeAgent()

	fmt.Fprintf(cmd.ErrOrStderr(), "buddy agent: session %s\n", s.ID)
	fmt.Fprintf(cmd.ErrOrStderr(), "buddy agent: watching %s (Ctrl+C to stop)\n", p.sessionsDir())

	if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "buddy agent: stopped")
	return nil
}

// resumeOrCreate loads the session with id, or creates a new one when id is empty.
func resumeOrCreate(ctx context.Context, st *session.Store, root, id string) (*session.Session, error) {
	if id == "" {
		s, err := st.CreateSession(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return s, nil
	}

	s, err := st.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if err := st.TouchSession(ctx, s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

// newAgent wires an agent for session s. The returned func releases the
// response cache.
func newAgent(ctx context.Context, p *project, st *session.Store, s *session.Session, useCache, monitor bool) (*relay.Agent, func(), error) {
	gen, err := p.generator(ctx)
	if err != nil {
		return nil, nil, err
	}

	logPath := agentLogPath
	if logPath == "" {
		logPath = p.sessionLogPath(s)
	}

	opts := relay.AgentOptions{
		Mailbox:           p.mailbox(),
		Generator:         gen,
		Builder:           p.builder(),
		Blob:              p.blob(),
		History:           st,
		SessionID:         s.ID,
		HistoryExchanges:  p.cfg.Session.HistoryExchanges,
		SessionLogPath:    logPath,
		Changes:           func(ctx context.Context) string { return p.changes(ctx, true) },
		PollInterval:      p.cfg.Relay.Polling(),
		HeartbeatInterval: p.cfg.Relay.HeartbeatInterval,
		Logger:            logger,
	}

	if monitor {
		m, err := errpattern.NewMonitor(errpattern.MonitorOptions{
			LogPath:        logPath,
			Dir:            p.sessionsDir(),
			SessionID:      s.ID,
			Interval:       p.cfg.Relay.MonitorInterval,
			MaxSuggestions: p.cfg.Relay.MaxSuggestions,
			Logger:         logger.Named("monitor"),
		})
		if err != nil {
			return nil, nil, err
		}
		opts.Monitor = m
	}

	release := func() {}
	if useCache {
		if c := p.cache(ctx); c != nil {
			opts.Cache = c
			release = func() {
				if err := c.Close(); err != nil {
					logger.Warn("closing response cache", zap.Error(err))
				}
			}
		}
	}

	agent, err := relay.NewAgent(opts)
	if err != nil {
		release()
		return nil, nil, err
	}
	return agent, release, nil
}

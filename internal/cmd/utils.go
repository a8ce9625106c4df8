package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codebuddy/buddy/internal/blob"
	"github.com/codebuddy/buddy/internal/config"
	cxcontext "github.com/codebuddy/buddy/internal/context"
	"github.com/codebuddy/buddy/internal/diff"
	"github.com/codebuddy/buddy/internal/output"
	"github.com/codebuddy/buddy/internal/relay"
	"github.com/codebuddy/buddy/internal/session"
)

// Shared utility functions for command implementations

// project is the resolved working project and its configuration.
type project struct {
	root string
	cfg  *config.Config
}

// loadProject finds the project root from workDir and loads its config.
func loadProject() (*project, error) {
	root, err := config.FindProjectRoot(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return &project{root: root, cfg: cfg}, nil
}

// builder creates the smart context builder for the project.
func (p *project) builder() *cxcontext.Builder {
	opts := p.cfg.BuilderOptions()
	opts.Logger = logger
	return cxcontext.NewBuilder(p.root, opts)
}

// sessionsDir is where the mailbox, logs and session database live.
func (p *project) sessionsDir() string {
	return p.cfg.SessionsPath(p.root)
}

// mailbox opens the relay mailbox in the sessions directory.
func (p *project) mailbox() *relay.Mailbox {
	return relay.NewMailbox(p.sessionsDir(), p.cfg.Relay.MaxReadBytes)
}

// openSessions opens the session database.
func (p *project) openSessions() (*session.Store, error) {
	st, err := session.Open(p.cfg.DatabasePath(p.root))
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return st, nil
}

// blob creates the whole-repository flattener used when smart context is off.
func (p *project) blob() *blob.Generator {
	return blob.NewGenerator(p.root, nil, logger)
}

// sessionLogPath is the terminal transcript of a session.
func (p *project) sessionLogPath(s *session.Session) string {
	return filepath.Join(p.sessionsDir(), s.LogFile())
}

// readSessionLog reads a terminal transcript, returning "" when it does not exist.
func (p *project) readSessionLog(path string) string {
	if path == "" {
		return ""
	}
	text, err := relay.ReadBounded(path, int64(p.cfg.Relay.MaxReadBytes))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("could not read session log", zap.String("path", path), zap.Error(err))
		}
		return ""
	}
	return text
}

// changeLog reads the changes log kept in the sessions directory.
func (p *project) changeLog() string {
	text, err := diff.ReadChangeLog(filepath.Join(p.sessionsDir(), diff.ChangeLogName), diff.DefaultChangeLogLines)
	if err != nil {
		logger.Warn("could not read changes log", zap.Error(err))
		return ""
	}
	return text
}

// gitChanges renders the uncommitted git changes, or "" outside a repository.
func (p *project) gitChanges(ctx context.Context) string {
	uncommitted, err := diff.NewGitDiff(p.root).GetUncommittedChanges(ctx)
	if err != nil {
		logger.Debug("git changes unavailable", zap.Error(err))
		return ""
	}
	return diff.Render(uncommitted)
}

// changes renders the changes log and, with includeGit, the uncommitted
// git changes.
func (p *project) changes(ctx context.Context, includeGit bool) string {
	log := p.changeLog()
	if !includeGit {
		return log
	}
	return joinNonEmpty(log, p.gitChanges(ctx))
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "\n")
}

// generator creates the Gemini generator from the project config.
func (p *project) generator(ctx context.Context) (*relay.GeminiGenerator, error) {
	g := p.cfg.Gemini
	if g.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set: export it or add gemini.api_key to %s",
			filepath.Join(config.ConfigDirName, config.ConfigFileName))
	}
	return relay.NewGeminiGenerator(ctx, g.APIKey, g.Model, g.Timeout)
}

// cache connects the optional Redis response cache. It returns nil when
// caching is off; a failed connection only disables caching.
func (p *project) cache(ctx context.Context) *relay.RedisCache {
	r := p.cfg.Redis
	if !r.Enabled {
		return nil
	}
	c, err := relay.NewRedisCache(ctx, relay.RedisOptions{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
		TTL:      time.Duration(r.TTLHours) * time.Hour,
	})
	if err != nil {
		logger.Warn("response cache disabled", zap.Error(err))
		return nil
	}
	return c
}

// writeOutput renders v with the global --format and --density flags.
func writeOutput(w io.Writer, v interface{}) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return fmt.Errorf("invalid format: %w", err)
	}

	density, err := output.ParseDensity(outputDensity)
	if err != nil {
		return fmt.Errorf("invalid density: %w", err)
	}

	formatter, err := output.GetFormatter(format)
	if err != nil {
		return fmt.Errorf("failed to get formatter: %w", err)
	}

	return formatter.FormatToWriter(w, v, density)
}

// readArg returns the joined args, or stdin when the only arg is "-".
func readArg(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(strings.Join(args, " ")), nil
}

// commandContext returns the command's context, or a background context
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

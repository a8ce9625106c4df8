package relay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	cxcontext "github.com/codebuddy/buddy/internal/context"
	"github.com/codebuddy/buddy/internal/errpattern"
	"github.com/codebuddy/buddy/internal/session"
)

// Agent defaults.
const (
	DefaultPollInterval      = time.Second
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultHistoryExchanges  = 3
)

// History is the conversation store an agent reads from and appends to.
type History interface {
	Recent(ctx context.Context, sessionID string, n int) ([]*session.Exchange, error)
	AddExchange(ctx context.Context, sessionID, question, response string) (*session.Exchange, error)
}

// Flattener renders the whole project as one document.
type Flattener interface {
	String(ctx context.Context) (string, error)
}

// AgentOptions configures an Agent.
type AgentOptions struct {
	Mailbox   *Mailbox
	Generator Generator

	// Builder selects project context. When it is nil or disabled, Blob
	// supplies the context instead.
	Builder *cxcontext.Builder
	Blob    Flattener

	// Cache is consulted before the generator (optional)
	Cache ResponseCache

	// History records exchanges of SessionID and feeds recent ones back as
	// conversation context (optional)
	History          History
	SessionID        string
	HistoryExchanges int

	// SessionLogPath is the terminal transcript of the session (optional)
	SessionLogPath string

	// Changes renders recent project changes (optional)
	Changes func(ctx context.Context) string

	// Monitor watches the session log for known errors while the agent
	// runs (optional)
	Monitor *errpattern.Monitor

	PollInterval      time.Duration
	HeartbeatInterval time.Duration

	Logger *zap.Logger
}

// Agent answers questions posted to the mailbox.
type Agent struct {
	opts   AgentOptions
	box    *Mailbox
	logger *zap.Logger
}

// NewAgent creates an agent, filling unset intervals with defaults.
func NewAgent(opts AgentOptions) (*Agent, error) {
	if opts.Mailbox == nil {
		return nil, errors.New("agent requires a mailbox")
	}
	if opts.Generator == nil {
		return nil, errors.New("agent requires a generator")
	}
	if (opts.Builder == nil || !opts.Builder.Enabled()) && opts.Blob == nil {
		return nil, errors.New("agent requires a context builder or a repo blob")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.HistoryExchanges < 0 {
		opts.HistoryExchanges = DefaultHistoryExchanges
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Agent{opts: opts, box: opts.Mailbox, logger: opts.Logger}, nil
}

// Run serves requests until ctx is cancelled. Mailbox changes are picked up
// through filesystem events, with polling covering missed events.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.box.Ensure(); err != nil {
		return err
	}
	if err := a.box.Reset(false); err != nil {
		return fmt.Errorf("clear stale mailbox: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(a.box.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", a.box.Dir(), err)
	}

	a.logger.Info("monitoring agent started",
		zap.Int("pid", os.Getpid()),
		zap.String("sessions_dir", a.box.Dir()),
		zap.String("session", a.opts.SessionID),
		zap.Duration("poll", a.opts.PollInterval),
		zap.Bool("smart_context", a.smart()),
		zap.Bool("error_monitor", a.opts.Monitor != nil))

	wake := make(chan struct{}, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.heartbeat(gctx) })
	g.Go(func() error { return a.watch(gctx, watcher, wake) })
	g.Go(func() error { return a.serve(gctx, wake) })
	if a.opts.Monitor != nil {
		g.Go(func() error { return a.opts.Monitor.Run(gctx) })
	}

	err = g.Wait()

	if rerr := a.box.Reset(true); rerr != nil {
		a.logger.Warn("clear mailbox on shutdown", zap.Error(rerr))
	}
	a.logger.Info("monitoring agent stopped")
	return err
}

func (a *Agent) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(a.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		if err := a.box.Beat(); err != nil {
			a.logger.Warn("write heartbeat", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *Agent) watch(ctx context.Context, watcher *fsnotify.Watcher, wake chan<- struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher event channel closed")
			}
			if filepath.Base(event.Name) != RequestFile {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			a.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (a *Agent) serve(ctx context.Context, wake <-chan struct{}) error {
	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()

	for {
		a.processPending(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case <-ticker.C:
		}
	}
}

// processPending handles the waiting request, if any.
func (a *Agent) processPending(ctx context.Context) {
	if !a.box.HasRequest() {
		return
	}

	if err := a.box.SetProcessing(); err != nil {
		a.logger.Error("mark processing", zap.Error(err))
	}
	defer func() {
		if err := a.box.ClearProcessing(); err != nil {
			a.logger.Error("clear processing", zap.Error(err))
		}
	}()

	question, err := a.box.TakeRequest()
	if errors.Is(err, ErrNoRequest) {
		return
	}
	if err != nil {
		a.logger.Error("read request", zap.Error(err))
		return
	}

	a.logger.Info("request received", zap.String("question", preview(question, 100)))
	a.Handle(ctx, question)
}

// Handle answers one question and posts the response, or an error message
// when answering failed. Successful exchanges are recorded.
func (a *Agent) Handle(ctx context.Context, question string) {
	response, err := a.Answer(ctx, question)
	if err != nil {
		a.logger.Error("answer request", zap.Error(err))
		response = ErrorMessage(err)
	}

	if werr := a.box.WriteResponse(response); werr != nil {
		a.logger.Error("write response", zap.Error(werr))
		return
	}
	a.logger.Info("response sent", zap.Int("bytes", len(response)))

	if err == nil && a.opts.History != nil && a.opts.SessionID != "" {
		if _, herr := a.opts.History.AddExchange(ctx, a.opts.SessionID, question, response); herr != nil {
			a.logger.Warn("record exchange", zap.Error(herr))
		}
	}
}

// Answer builds the prompt for a question and returns the model response.
func (a *Agent) Answer(ctx context.Context, question string) (string, error) {
	return a.AnswerWith(ctx, question, "")
}

// AnswerWith is Answer with response format instructions appended to the
// prompt. Context selection only sees the question.
func (a *Agent) AnswerWith(ctx context.Context, question, instructions string) (string, error) {
	prompt, err := a.prompt(ctx, question, instructions)
	if err != nil {
		return "", err
	}

	var key string
	if a.opts.Cache != nil {
		key = CacheKey(prompt)
		cached, ok, err := a.opts.Cache.Get(ctx, key)
		if err != nil {
			a.logger.Warn("response cache lookup", zap.Error(err))
		} else if ok {
			a.logger.Info("response cache hit")
			return cached, nil
		}
	}

	response, err := a.opts.Generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}

	if a.opts.Cache != nil {
		if err := a.opts.Cache.Set(ctx, key, response); err != nil {
			a.logger.Warn("response cache store", zap.Error(err))
		}
	}
	return response, nil
}

// Prompt assembles the model prompt for a question. With smart context the
// builder decides whether the session log is included; otherwise the whole
// repository and session log are sent.
func (a *Agent) Prompt(ctx context.Context, question string) (string, error) {
	return a.prompt(ctx, question, "")
}

func (a *Agent) prompt(ctx context.Context, question, instructions string) (string, error) {
	sessionLog := a.sessionLog()

	if !a.smart() {
		blob, err := a.opts.Blob.String(ctx)
		if err != nil {
			return "", fmt.Errorf("generate repo blob: %w", err)
		}
		return BuildPrompt(PromptInput{
			ProjectContext:    blob,
			SessionLog:        sessionLog,
			IncludeSessionLog: true,
			Question:          question,
			Instructions:      instructions,
		}), nil
	}

	in := cxcontext.Input{
		Query:               question,
		SessionLog:          sessionLog,
		ConversationHistory: a.conversation(ctx),
	}
	if a.opts.Changes != nil {
		in.ChangesLog = a.opts.Changes(ctx)
	}

	result := a.opts.Builder.Build(ctx, in)
	a.logger.Debug("context built",
		zap.String("intent", result.Intent.String()),
		zap.Int("size", result.Size),
		zap.Int("files", len(result.IncludedFiles)))

	return BuildPrompt(PromptInput{
		ProjectContext: result.Context,
		Question:       question,
		Instructions:   instructions,
	}), nil
}

func (a *Agent) smart() bool {
	return a.opts.Builder != nil && a.opts.Builder.Enabled()
}

func (a *Agent) sessionLog() string {
	if a.opts.SessionLogPath == "" {
		return ""
	}
	content, err := ReadBounded(a.opts.SessionLogPath, a.box.maxReadBytes)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("read session log", zap.String("path", a.opts.SessionLogPath), zap.Error(err))
		}
		return ""
	}
	return content
}

func (a *Agent) conversation(ctx context.Context) string {
	if a.opts.History == nil || a.opts.SessionID == "" {
		return ""
	}
	exchanges, err := a.opts.History.Recent(ctx, a.opts.SessionID, a.opts.HistoryExchanges)
	if err != nil {
		a.logger.Warn("load conversation", zap.Error(err))
		return ""
	}
	return session.RecentContext(exchanges)
}

// preview returns at most n runes of s.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

package errpattern

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Files the monitor publishes in the sessions directory.
const (
	SuggestionsFile  = "buddy_suggestions.json"
	NotificationFile = "buddy_notification.tmp"
)

// Monitor defaults.
const (
	DefaultInterval       = 500 * time.Millisecond
	DefaultMaxSuggestions = 5
)

// ErrNoNotification is returned by TakeNotification when nothing is pending.
var ErrNoNotification = errors.New("no pending notification")

// Suggestions is the content of the suggestions file.
type Suggestions struct {
	SessionID   string      `json:"session_id"`
	Updated     time.Time   `json:"updated"`
	Suggestions []Detection `json:"suggestions"`
}

// Notification tells the chat client that new problems were found.
type Notification struct {
	Timestamp     time.Time `json:"timestamp"`
	Type          string    `json:"type"`
	Summary       string    `json:"summary"`
	CriticalCount int       `json:"critical_count"`
	ErrorCount    int       `json:"error_count"`
	TopSuggestion string    `json:"top_suggestion,omitempty"`
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	// LogPath is the session transcript to follow
	LogPath string

	// Dir receives the suggestions and notification files
	Dir string

	SessionID      string
	Interval       time.Duration
	MaxSuggestions int

	Detector *Detector
	Now      func() time.Time
	Logger   *zap.Logger
}

// Monitor follows a session log and keeps a short list of suggestions for
// the errors that appear in it. Each batch of new detections is appended
// most urgent first.
type Monitor struct {
	opts   MonitorOptions
	logger *zap.Logger

	mu     sync.Mutex
	offset int64
	active []Detection
}

// NewMonitor creates a monitor, filling unset options with defaults.
func NewMonitor(opts MonitorOptions) (*Monitor, error) {
	if opts.LogPath == "" {
		return nil, errors.New("monitor requires a session log path")
	}
	if opts.Dir == "" {
		return nil, errors.New("monitor requires an output directory")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = DefaultMaxSuggestions
	}
	if opts.Detector == nil {
		opts.Detector = NewDetector(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Monitor{opts: opts, logger: opts.Logger}, nil
}

// Run checks the log every interval until ctx is cancelled, then removes
// the files it published.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("error monitor started",
		zap.String("log", m.opts.LogPath),
		zap.Duration("interval", m.opts.Interval))

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := m.Check(); err != nil {
			m.logger.Warn("check session log", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			if err := m.Clear(); err != nil {
				m.logger.Warn("clear suggestions", zap.Error(err))
			}
			m.logger.Info("error monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Check scans output appended to the log since the last call and returns
// the new detections, most urgent first. A log that shrank is read again
// from the start.
func (m *Monitor) Check() ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	text, err := m.readNew()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	found := Prioritize(m.opts.Detector.DetectNew(text, m.opts.SessionID))
	if len(found) == 0 {
		return nil, nil
	}

	m.logger.Info("errors detected",
		zap.Int("count", len(found)),
		zap.String("top", found[0].ErrorType))

	m.active = append(m.active, found...)
	if over := len(m.active) - m.opts.MaxSuggestions; over > 0 {
		m.active = append([]Detection(nil), m.active[over:]...)
	}

	if err := m.saveSuggestions(); err != nil {
		return found, err
	}
	if notable(found) {
		if err := m.notify(found); err != nil {
			return found, err
		}
	}
	return found, nil
}

// notable reports whether detections deserve an interruption: anything
// critical, or several problems at once.
func notable(found []Detection) bool {
	if len(found) >= 2 {
		return true
	}
	for _, d := range found {
		if d.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func (m *Monitor) readNew() (string, error) {
	f, err := os.Open(m.opts.LogPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat session log: %w", err)
	}
	if info.Size() < m.offset {
		m.offset = 0
	}
	if info.Size() == m.offset {
		return "", nil
	}

	if _, err := f.Seek(m.offset, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek session log: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(f, info.Size()-m.offset))
	if err != nil {
		return "", fmt.Errorf("read session log: %w", err)
	}
	m.offset += int64(len(data))
	return strings.ToValidUTF8(string(data), ""), nil
}

// Active returns the current suggestions, oldest first. Only the newest
// MaxSuggestions are kept.
func (m *Monitor) Active() []Detection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Detection, len(m.active))
	copy(out, m.active)
	return out
}

// Clear forgets all suggestions and removes the published files.
func (m *Monitor) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = nil
	m.opts.Detector.Forget(m.opts.SessionID)
	return RemoveFiles(m.opts.Dir)
}

// RemoveFiles deletes the suggestions and notification files in dir.
func RemoveFiles(dir string) error {
	var errs []error
	for _, name := range []string{SuggestionsFile, NotificationFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Monitor) saveSuggestions() error {
	return writeJSON(filepath.Join(m.opts.Dir, SuggestionsFile), Suggestions{
		SessionID:   m.opts.SessionID,
		Updated:     m.opts.Now(),
		Suggestions: m.active,
	})
}

func (m *Monitor) notify(found []Detection) error {
	n := Notification{
		Timestamp:     m.opts.Now(),
		Type:          "error_detection",
		Summary:       fmt.Sprintf("Detected %d issue(s)", len(found)),
		TopSuggestion: found[0].Suggestion,
	}
	for _, d := range found {
		switch d.Severity {
		case SeverityCritical:
			n.CriticalCount++
		case SeverityError:
			n.ErrorCount++
		}
	}
	return writeJSON(filepath.Join(m.opts.Dir, NotificationFile), n)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadSuggestions loads the suggestions file from dir. A missing file is an
// empty list.
func ReadSuggestions(dir string) (*Suggestions, error) {
	data, err := os.ReadFile(filepath.Join(dir, SuggestionsFile))
	if errors.Is(err, os.ErrNotExist) {
		return &Suggestions{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read suggestions: %w", err)
	}
	var s Suggestions
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	return &s, nil
}

// TakeNotification reads and removes the pending notification in dir.
func TakeNotification(dir string) (*Notification, error) {
	path := filepath.Join(dir, NotificationFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoNotification
	}
	if err != nil {
		return nil, fmt.Errorf("read notification: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove notification: %w", err)
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parse notification: %w", err)
	}
	return &n, nil
}

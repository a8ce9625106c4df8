package errpattern

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestMonitor(t *testing.T, maxSuggestions int) (*Monitor, string, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session_20250501_093000.log")
	m, err := NewMonitor(MonitorOptions{
		LogPath:        logPath,
		Dir:            dir,
		SessionID:      "20250501_093000",
		Interval:       10 * time.Millisecond,
		MaxSuggestions: maxSuggestions,
		Now:            func() time.Time { return time.Date(2025, 5, 1, 9, 31, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return m, logPath, dir
}

func appendLog(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestNewMonitorRequiresPaths(t *testing.T) {
	_, err := NewMonitor(MonitorOptions{Dir: t.TempDir()})
	assert.Error(t, err)
	_, err = NewMonitor(MonitorOptions{LogPath: "session.log"})
	assert.Error(t, err)
}

func TestMonitorCheck(t *testing.T) {
	m, logPath, dir := newTestMonitor(t, 2)

	found, err := m.Check()
	require.NoError(t, err)
	assert.Empty(t, found, "missing log is not an error")

	appendLog(t, logPath, "$ python app.py\nKeyError: 'id'\n")
	found, err = m.Check()
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "key_error", found[0].ErrorType)
	assert.FileExists(t, filepath.Join(dir, SuggestionsFile))
	assert.NoFileExists(t, filepath.Join(dir, NotificationFile), "a single error does not interrupt")

	found, err = m.Check()
	require.NoError(t, err)
	assert.Empty(t, found, "nothing new since the last check")

	appendLog(t, logPath, "ZeroDivisionError: division by zero\nNameError: name 'foo' is not defined\n")
	found, err = m.Check()
	require.NoError(t, err)
	require.Len(t, found, 2)

	n, err := TakeNotification(dir)
	require.NoError(t, err)
	assert.Equal(t, "error_detection", n.Type)
	assert.Equal(t, "Detected 2 issue(s)", n.Summary)
	assert.Equal(t, 2, n.ErrorCount)
	assert.Zero(t, n.CriticalCount)
	assert.Equal(t, "Add check for zero before division: if denominator != 0:", n.TopSuggestion)

	_, err = TakeNotification(dir)
	assert.ErrorIs(t, err, ErrNoNotification)

	active := m.Active()
	require.Len(t, active, 2, "only the newest suggestions are kept")
	assert.Equal(t, "division_by_zero", active[0].ErrorType)
	assert.Equal(t, "name_error", active[1].ErrorType)

	saved, err := ReadSuggestions(dir)
	require.NoError(t, err)
	assert.Equal(t, "20250501_093000", saved.SessionID)
	assert.Len(t, saved.Suggestions, 2)
}

func TestMonitorRepeatedOutputReportedOnce(t *testing.T) {
	m, logPath, _ := newTestMonitor(t, 0)

	appendLog(t, logPath, "KeyError: 'id'\n")
	found, err := m.Check()
	require.NoError(t, err)
	require.Len(t, found, 1)

	appendLog(t, logPath, "KeyError: 'id'\n")
	found, err = m.Check()
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestMonitorRereadsTruncatedLog(t *testing.T) {
	m, logPath, _ := newTestMonitor(t, 0)

	appendLog(t, logPath, "lots of output before the error\nKeyError: 'id'\n")
	_, err := m.Check()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(logPath, []byte("IndexError: list index out of range\n"), 0644))
	found, err := m.Check()
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "index_error", found[0].ErrorType)
}

func TestMonitorNotifiesOnCritical(t *testing.T) {
	m, logPath, dir := newTestMonitor(t, 0)

	appendLog(t, logPath, "MemoryError\n")
	_, err := m.Check()
	require.NoError(t, err)

	n, err := TakeNotification(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n.CriticalCount)
	assert.Equal(t, "Detected 1 issue(s)", n.Summary)
}

func TestMonitorClear(t *testing.T) {
	m, logPath, dir := newTestMonitor(t, 0)

	appendLog(t, logPath, "MemoryError\n")
	_, err := m.Check()
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, SuggestionsFile))

	require.NoError(t, m.Clear())
	assert.Empty(t, m.Active())
	assert.NoFileExists(t, filepath.Join(dir, SuggestionsFile))
	assert.NoFileExists(t, filepath.Join(dir, NotificationFile))

	saved, err := ReadSuggestions(dir)
	require.NoError(t, err)
	assert.Empty(t, saved.Suggestions)
}

func TestMonitorRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, logPath, dir := newTestMonitor(t, 0)
	appendLog(t, logPath, "PermissionError: [Errno 13] Permission denied: '/etc/shadow'\n")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		s, err := ReadSuggestions(dir)
		return err == nil && len(s.Suggestions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.NoFileExists(t, filepath.Join(dir, SuggestionsFile))
}

func TestFormatNotification(t *testing.T) {
	out := FormatNotification(&Notification{
		Summary:       "Detected 2 issue(s)",
		ErrorCount:    2,
		TopSuggestion: "Install missing module: pip install requests",
	})
	assert.Contains(t, out, "⚠️  Detected 2 issue(s)")
	assert.Contains(t, out, "🟡 Errors: 2")
	assert.Contains(t, out, "💡 Quick Fix: Install missing module: pip install requests")
	assert.NotContains(t, out, "Critical")
	assert.Empty(t, FormatNotification(nil))
}

func TestFormatSuggestions(t *testing.T) {
	out := FormatSuggestions([]Detection{
		{Severity: SeverityCritical, Description: "Hardcoded secret detected", Suggestion: "Move token to environment variable or config file"},
		{Severity: SeverityError, Description: "Python syntax error detected", Suggestion: "Fix it", Line: 7},
	})
	assert.Contains(t, out, "🔴 1. Hardcoded secret detected")
	assert.Contains(t, out, "🟡 2. Python syntax error detected")
	assert.Contains(t, out, "📍 Line 7")
	assert.Empty(t, FormatSuggestions(nil))
}

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/errpattern"
	"github.com/codebuddy/buddy/internal/session"
)

// setupProject writes a small project outside any git repository and points
// the global flags at it.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"src/auth.py":     "def authenticate(user):\n    return check_password(user)\n",
		"src/models.py":   "class User:\n    pass\n",
		"config/app.yaml": "debug: true\n",
		"README.md":       "# demo\n",
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}

	resetGlobals(t, dir)
	return dir
}

func resetGlobals(t *testing.T, dir string) {
	t.Helper()
	workDir = dir
	outputFormat = "yaml"
	outputDensity = "medium"
	initForce = false
	rankTop = 20
	contextLogPath = ""
	contextChangesPath = ""
	contextGitChanges = false
	contextConversation = ""
	contextSession = ""
	sessionsLimit = 10
	historyLast = 0
	resetSessions = false
	resetForce = false
	suggestionsLog = ""
	suggestionsScan = false
	suggestionsClear = false
	applyDryRun = false
	askNoCache = false
	askApply = false
	askDryRun = false
	t.Setenv("GEMINI_API_KEY", "")
}

// runWith executes a run function against a command with captured output.
func runWith(t *testing.T, c *cobra.Command, run func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetErr(&buf)
	c.SetIn(strings.NewReader(""))
	c.SetContext(context.Background())
	err := run(c, args)
	return buf.String(), err
}

func TestRunInit(t *testing.T) {
	dir := setupProject(t)

	out, err := runWith(t, initCmd, runInit)
	if err != nil {
		t.Fatalf("runInit failed: %v", err)
	}
	if !strings.Contains(out, "Initialized buddy config at .buddy/config.yaml") {
		t.Errorf("unexpected output:\n%s", out)
	}
	for _, rel := range []string{".buddy/config.yaml", ".buddy/sessions/sessions.db"} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("expected %s to exist: %v", rel, err)
		}
	}

	out, err = runWith(t, initCmd, runInit)
	if err != nil {
		t.Fatalf("second runInit failed: %v", err)
	}
	if !strings.Contains(out, "Already initialized") {
		t.Errorf("second init should report existing config, got:\n%s", out)
	}

	initForce = true
	if _, err := runWith(t, initCmd, runInit); err != nil {
		t.Fatalf("forced runInit failed: %v", err)
	}
}

func TestRunAnalyze(t *testing.T) {
	setupProject(t)
	outputFormat = "json"

	out, err := runWith(t, analyzeCmd, runAnalyze, "AuthService", "throws", "an", "error,", "fix", "it")
	if err != nil {
		t.Fatalf("runAnalyze failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if decoded["intent"] != "debug" {
		t.Errorf("intent = %v, expected debug", decoded["intent"])
	}
	if decoded["query"] != "AuthService throws an error, fix it" {
		t.Errorf("query = %v", decoded["query"])
	}

	if _, err := runWith(t, analyzeCmd, runAnalyze, "  "); err == nil {
		t.Error("expected error for an empty question")
	}
}

func TestRunAnalyzeInvalidFormat(t *testing.T) {
	setupProject(t)
	outputFormat = "cgf"

	if _, err := runWith(t, analyzeCmd, runAnalyze, "hello"); err == nil {
		t.Error("expected error for an invalid format")
	}
}

func TestRunRank(t *testing.T) {
	setupProject(t)
	outputFormat = "text"

	out, err := runWith(t, rankCmd, runRank, "fix the auth bug")
	if err != nil {
		t.Fatalf("runRank failed: %v", err)
	}
	if !strings.HasPrefix(out, " 1. src/auth.py (score: ") {
		t.Errorf("auth.py should rank first, got:\n%s", out)
	}
	if !strings.Contains(out, "- Filename contains 'auth'") {
		t.Errorf("expected filename reason, got:\n%s", out)
	}

	rankTop = 0
	if _, err := runWith(t, rankCmd, runRank, "auth"); err == nil {
		t.Error("expected error for --top 0")
	}
}

func TestRunContext(t *testing.T) {
	dir := setupProject(t)
	outputFormat = "text"

	convPath := filepath.Join(dir, "conversation.txt")
	if err := os.WriteFile(convPath, []byte("Q: what is this?\nA: a demo\n"), 0644); err != nil {
		t.Fatal(err)
	}
	changesPath := filepath.Join(dir, "changes.txt")
	if err := os.WriteFile(changesPath, []byte("src/auth.py modified\n"), 0644); err != nil {
		t.Fatal(err)
	}
	contextConversation = convPath
	contextChangesPath = changesPath

	out, err := runWith(t, contextCmd, runContext, "why is authenticate failing?")
	if err != nil {
		t.Fatalf("runContext failed: %v", err)
	}

	conv := strings.Index(out, "### RECENT CONVERSATION ###\nQ: what is this?\nA: a demo")
	changes := strings.Index(out, "### RECENT CHANGES ###\nsrc/auth.py modified")
	files := strings.Index(out, "### RELEVANT PROJECT FILES ###")
	if conv < 0 || changes < 0 || files < 0 {
		t.Fatalf("missing sections:\n%s", out)
	}
	if !(conv < changes && changes < files) {
		t.Errorf("sections out of order:\n%s", out)
	}
	if !strings.Contains(out, "def authenticate(user):") {
		t.Errorf("auth.py content missing:\n%s", out)
	}
}

func TestRunContextSession(t *testing.T) {
	dir := setupProject(t)
	if _, err := runWith(t, initCmd, runInit); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	st, err := session.Open(filepath.Join(dir, ".buddy", "sessions", "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	s, err := st.CreateSession(ctx, dir)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := st.AddExchange(ctx, s.ID, "what does models.py hold?", "The User class."); err != nil {
		t.Fatalf("add exchange: %v", err)
	}
	st.Close()

	logPath := filepath.Join(dir, ".buddy", "sessions", s.LogFile())
	if err := os.WriteFile(logPath, []byte("Traceback: KeyError 'user'\n"), 0644); err != nil {
		t.Fatal(err)
	}

	outputFormat = "text"
	contextSession = s.ID

	out, err := runWith(t, contextCmd, runContext, "debug the login crash error")
	if err != nil {
		t.Fatalf("runContext failed: %v", err)
	}
	if !strings.Contains(out, "Exchange 1:\nQ: what does models.py hold?\nA: The User class....") {
		t.Errorf("session conversation missing:\n%s", out)
	}
	if !strings.Contains(out, "### RECENT SESSION LOG ###\nTraceback: KeyError 'user'") {
		t.Errorf("debug question should carry the session log:\n%s", out)
	}

	contextSession = "no-such-session"
	if _, err := runWith(t, contextCmd, runContext, "anything"); err == nil {
		t.Error("expected error for an unknown session")
	}
}

func TestRunSessionsAndHistory(t *testing.T) {
	dir := setupProject(t)

	outputFormat = "text"
	out, err := runWith(t, sessionsCmd, runSessions)
	if err != nil {
		t.Fatalf("runSessions failed: %v", err)
	}
	if !strings.Contains(out, "No previous sessions found.") {
		t.Errorf("expected empty listing, got:\n%s", out)
	}

	st, err := session.Open(filepath.Join(dir, ".buddy", "sessions", "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	s, _ := st.CreateSession(ctx, dir)
	st.AddExchange(ctx, s.ID, "first question", "first answer")
	st.AddExchange(ctx, s.ID, "second question", "second answer")
	st.Close()

	out, err = runWith(t, sessionsCmd, runSessions)
	if err != nil {
		t.Fatalf("runSessions failed: %v", err)
	}
	if !strings.Contains(out, "1. Session ID: "+s.ID) || !strings.Contains(out, "Has conversation: Yes") {
		t.Errorf("unexpected listing:\n%s", out)
	}

	out, err = runWith(t, historyCmd, runHistory, s.ID)
	if err != nil {
		t.Fatalf("runHistory failed: %v", err)
	}
	if !strings.Contains(out, "Q: first question") || !strings.Contains(out, "Q: second question") {
		t.Errorf("unexpected history:\n%s", out)
	}

	outputFormat = "json"
	historyLast = 1
	out, err = runWith(t, historyCmd, runHistory, s.ID)
	if err != nil {
		t.Fatalf("runHistory failed: %v", err)
	}
	var decoded struct {
		Exchanges []struct {
			Question string `json:"question"`
		} `json:"exchanges"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(decoded.Exchanges) != 1 || decoded.Exchanges[0].Question != "second question" {
		t.Errorf("--last 1 should keep the latest exchange, got %+v", decoded.Exchanges)
	}
}

func TestRunBlob(t *testing.T) {
	dir := setupProject(t)
	outPath := filepath.Join(dir, "repo_blob.txt")

	out, err := runWith(t, blobCmd, runBlob, outPath)
	if err != nil {
		t.Fatalf("runBlob failed: %v", err)
	}
	if !strings.Contains(out, "Wrote 4 files") {
		t.Errorf("unexpected summary: %s", out)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	blob := string(data)
	if !strings.Contains(blob, "--- START FILE: src/auth.py ---\ndef authenticate(user):") {
		t.Errorf("auth.py framing missing:\n%s", blob)
	}
	if strings.Contains(blob, "START FILE: repo_blob.txt") {
		t.Error("blob should not include itself")
	}
}

func TestRunReset(t *testing.T) {
	dir := setupProject(t)

	resetSessions = true
	if _, err := runWith(t, resetCmd, runReset); err == nil {
		t.Error("--sessions without --force should fail")
	}

	box := filepath.Join(dir, ".buddy", "sessions")
	if err := os.MkdirAll(box, 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(box, "buddy_request.tmp")
	if err := os.WriteFile(stale, []byte("old question"), 0644); err != nil {
		t.Fatal(err)
	}

	resetSessions = false
	if _, err := runWith(t, resetCmd, runReset); err != nil {
		t.Fatalf("runReset failed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale request should be removed")
	}
}

func TestRunSuggestions(t *testing.T) {
	dir := setupProject(t)

	type listing struct {
		Count       int `json:"count"`
		Suggestions []struct {
			ErrorType string `json:"error_type"`
			File      string `json:"file"`
			Line      int    `json:"line_number"`
		} `json:"suggestions"`
	}

	t.Run("transcript", func(t *testing.T) {
		resetGlobals(t, dir)
		outputFormat = "json"
		logPath := filepath.Join(dir, "term.log")
		transcript := "$ python app.py\nKeyError: 'user_id'\n$ python batch.py\nMemoryError\n"
		if err := os.WriteFile(logPath, []byte(transcript), 0644); err != nil {
			t.Fatal(err)
		}
		suggestionsLog = logPath

		out, err := runWith(t, suggestionsCmd, runSuggestions)
		if err != nil {
			t.Fatalf("runSuggestions failed: %v", err)
		}
		var got listing
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if got.Count != 2 || got.Suggestions[0].ErrorType != "memory_error" || got.Suggestions[1].ErrorType != "key_error" {
			t.Errorf("expected memory_error then key_error, got %+v", got)
		}
	})

	t.Run("agent suggestions and clear", func(t *testing.T) {
		resetGlobals(t, dir)
		outputFormat = "text"
		sessions := filepath.Join(dir, ".buddy", "sessions")
		if err := os.MkdirAll(sessions, 0755); err != nil {
			t.Fatal(err)
		}
		data, err := json.Marshal(errpattern.Suggestions{
			SessionID: "s1",
			Suggestions: []errpattern.Detection{{
				ErrorType:   "key_error",
				Severity:    errpattern.SeverityError,
				Category:    errpattern.CategoryRuntime,
				Description: "Dictionary key not found",
				Suggestion:  "Use dict.get('id', default) or check if 'id' in dict",
			}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(sessions, errpattern.SuggestionsFile), data, 0644); err != nil {
			t.Fatal(err)
		}

		out, err := runWith(t, suggestionsCmd, runSuggestions)
		if err != nil {
			t.Fatalf("runSuggestions failed: %v", err)
		}
		if !strings.Contains(out, "1. Dictionary key not found") {
			t.Errorf("expected the published suggestion, got:\n%s", out)
		}

		suggestionsClear = true
		if _, err := runWith(t, suggestionsCmd, runSuggestions); err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(sessions, errpattern.SuggestionsFile)); !os.IsNotExist(err) {
			t.Error("suggestions file should be removed")
		}

		suggestionsClear = false
		out, err = runWith(t, suggestionsCmd, runSuggestions)
		if err != nil {
			t.Fatalf("runSuggestions failed: %v", err)
		}
		if out != "No suggestions.\n" {
			t.Errorf("expected empty listing, got %q", out)
		}
	})

	t.Run("scan files", func(t *testing.T) {
		resetGlobals(t, dir)
		outputFormat = "json"
		settings := "import os\nAPI_TOKEN = \"abc123\"\nprint(API_TOKEN)\n"
		if err := os.WriteFile(filepath.Join(dir, "src", "settings.py"), []byte(settings), 0644); err != nil {
			t.Fatal(err)
		}

		suggestionsScan = true
		if _, err := runWith(t, suggestionsCmd, runSuggestions); err == nil {
			t.Error("--scan without files should fail")
		}

		out, err := runWith(t, suggestionsCmd, runSuggestions, "src/settings.py", "src/auth.py")
		if err != nil {
			t.Fatalf("runSuggestions failed: %v", err)
		}
		var got listing
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if got.Count != 2 {
			t.Fatalf("expected 2 findings, got %+v", got)
		}
		first := got.Suggestions[0]
		if first.ErrorType != "potential_hardcoded_secret" || first.File != "src/settings.py" || first.Line != 2 {
			t.Errorf("unexpected first finding %+v", first)
		}
	})
}

func TestRunApply(t *testing.T) {
	dir := setupProject(t)

	writePlan := func(t *testing.T, plan string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "plan.json")
		if err := os.WriteFile(path, []byte(plan), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	plan := `{"files": [
  {"operation": "create", "path": "docs/usage.md", "content": "# Usage\n", "description": "usage guide"},
  {"operation": "update", "path": "src/models.py", "content": "class User:\n    name = ''\n"},
  {"operation": "delete", "path": "config/app.yaml"}
], "summary": "Document usage", "warnings": ["check the model change"]}`

	t.Run("dry run", func(t *testing.T) {
		resetGlobals(t, dir)
		outputFormat = "text"
		applyDryRun = true

		out, err := runWith(t, applyCmd, runApply, writePlan(t, plan))
		if err != nil {
			t.Fatalf("runApply failed: %v", err)
		}
		for _, want := range []string{"Document usage", "warning: check the model change", "Would create docs/usage.md (usage guide)", "Would delete config/app.yaml"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if _, err := os.Stat(filepath.Join(dir, "docs", "usage.md")); !os.IsNotExist(err) {
			t.Error("dry run must not create files")
		}
	})

	t.Run("apply from stdin", func(t *testing.T) {
		resetGlobals(t, dir)
		outputFormat = "json"

		var buf bytes.Buffer
		applyCmd.SetOut(&buf)
		applyCmd.SetErr(&buf)
		applyCmd.SetIn(strings.NewReader("```json\n" + plan + "\n```"))
		applyCmd.SetContext(context.Background())
		if err := runApply(applyCmd, []string{"-"}); err != nil {
			t.Fatalf("runApply failed: %v\n%s", err, buf.String())
		}

		data, err := os.ReadFile(filepath.Join(dir, "docs", "usage.md"))
		if err != nil || string(data) != "# Usage\n" {
			t.Errorf("docs/usage.md = %q, %v", data, err)
		}
		data, _ = os.ReadFile(filepath.Join(dir, "src", "models.py"))
		if !strings.Contains(string(data), "name = ''") {
			t.Errorf("src/models.py not updated: %q", data)
		}
		if _, err := os.Stat(filepath.Join(dir, "config", "app.yaml")); !os.IsNotExist(err) {
			t.Error("config/app.yaml should be deleted")
		}
	})

	t.Run("failed operations", func(t *testing.T) {
		resetGlobals(t, dir)
		outputFormat = "text"

		out, err := runWith(t, applyCmd, runApply, writePlan(t, `{"files": [
  {"operation": "update", "path": "missing.py", "content": "x"},
  {"operation": "create", "path": "notes.txt", "content": "ok"}
]}`))
		if err == nil || err.Error() != "1 of 2 file operations failed" {
			t.Errorf("expected partial failure, got %v", err)
		}
		if !strings.Contains(out, "Created notes.txt") || !strings.Contains(out, "file does not exist: missing.py") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("unsafe path", func(t *testing.T) {
		resetGlobals(t, dir)

		_, err := runWith(t, applyCmd, runApply, writePlan(t, `{"files": [{"operation": "create", "path": ".git/hooks/pre-commit", "content": "x"}]}`))
		if err == nil || !strings.Contains(err.Error(), "unsafe path") {
			t.Errorf("expected unsafe path error, got %v", err)
		}
	})
}

func TestRunAskNeedsAPIKey(t *testing.T) {
	setupProject(t)

	_, err := runWith(t, askCmd, runAsk, "hello")
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY not set") {
		t.Errorf("expected missing key error, got %v", err)
	}
}

func TestParseTools(t *testing.T) {
	got := parseTools(" rank, buddy_context ,,analyze")
	want := []string{"buddy_rank", "buddy_context", "buddy_analyze"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("parseTools = %v, expected %v", got, want)
	}
	if parseTools("") != nil {
		t.Error("empty list should select the default tools")
	}
}

func TestBuildCommandInfo(t *testing.T) {
	info := buildCommandInfo(rootCmd)

	names := make(map[string]bool)
	for _, sub := range info.Subcommands {
		names[sub.Name] = true
	}
	for _, want := range []string{"init", "analyze", "rank", "context", "ask", "agent", "chat", "sessions", "history", "blob", "serve", "suggestions", "apply"} {
		if !names[want] {
			t.Errorf("command %q missing from agent discovery", want)
		}
	}
}

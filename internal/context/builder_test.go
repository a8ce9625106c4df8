package context

import (
	gocontext "context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScorer returns a fixed ranking.
type fakeScorer struct {
	files   []*FileRelevance
	gotMax  int
	gotCall *QueryAnalysis
}

func (f *fakeScorer) ScoreFiles(ctx gocontext.Context, analysis *QueryAnalysis, maxFiles int) []*FileRelevance {
	f.gotMax = maxFiles
	f.gotCall = analysis
	if len(f.files) > maxFiles {
		return f.files[:maxFiles]
	}
	return f.files
}

// memFiles serves file contents from a map keyed by path suffix.
func memFiles(files map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		for name, content := range files {
			if strings.HasSuffix(path, "/"+name) {
				return []byte(content), nil
			}
		}
		return nil, os.ErrNotExist
	}
}

func newTestBuilder(scorer Scorer, files map[string]string, mutate func(*Options)) *Builder {
	opts := DefaultOptions()
	opts.Scorer = scorer
	opts.ReadFile = memFiles(files)
	if mutate != nil {
		mutate(&opts)
	}
	return NewBuilder("/project", opts)
}

func TestBaseSize(t *testing.T) {
	tests := []struct {
		intent Intent
		want   int
	}{
		{IntentDebug, 80000},
		{IntentFeature, 60000},
		{IntentExplain, 40000},
		{IntentRefactor, 70000},
		{IntentTest, 50000},
		{IntentConfig, 30000},
		{IntentGeneral, 50000},
		{IntentDocument, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.intent.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, BaseSize(DefaultBaseSizes(), tt.intent))
		})
	}
}

func TestBuilder_BaseBudgetFollowsIntent(t *testing.T) {
	b := newTestBuilder(&fakeScorer{}, nil, nil)

	tests := []struct {
		query string
		want  int
	}{
		{"Fix the crash", 80000},
		{"Explain the data flow", 40000},
		{"How do I configure docker?", 30000},
		{"hello", 50000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Build(gocontext.Background(), Input{Query: tt.query}).BaseBudget, tt.query)
	}
}

func TestBuilder_SessionLogTail(t *testing.T) {
	var sb strings.Builder
	for i := 0; sb.Len() < 20000; i++ {
		fmt.Fprintf(&sb, "line %05d\n", i)
	}
	log := sb.String()[:20000]

	b := newTestBuilder(&fakeScorer{}, nil, nil)

	result := b.Build(gocontext.Background(), Input{Query: "Fix the crash", SessionLog: log})
	require.Equal(t, IntentDebug, result.Intent)
	assert.Equal(t, SessionLogHeader+log[len(log)-10000:]+"\n", result.Context)

	result = b.Build(gocontext.Background(), Input{Query: "Explain the data flow", SessionLog: log})
	assert.Empty(t, result.Context)
}

func TestBuilder_SessionLogTailCountsCharacters(t *testing.T) {
	b := newTestBuilder(&fakeScorer{}, nil, nil)

	tests := []struct {
		name string
		log  string
		want string
	}{
		{"box drawing", strings.Repeat("─", 20000), strings.Repeat("─", 10000)},
		{"mixed width", strings.Repeat("aé🙂", 5000), "🙂" + strings.Repeat("aé🙂", 3333)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := b.Build(gocontext.Background(), Input{Query: "Fix the crash", SessionLog: tt.log})
			require.Equal(t, IntentDebug, result.Intent)
			excerpt := strings.TrimSuffix(strings.TrimPrefix(result.Context, SessionLogHeader), "\n")
			assert.Equal(t, tt.want, excerpt)
			assert.Equal(t, 10000, utf8.RuneCountInString(excerpt))
		})
	}
}

func TestBuilder_SectionOrder(t *testing.T) {
	scorer := &fakeScorer{files: []*FileRelevance{{Path: "crash.go", Score: 20}}}
	b := newTestBuilder(scorer, map[string]string{"crash.go": "package main"}, nil)

	result := b.Build(gocontext.Background(), Input{
		Query:               "Fix the crash",
		SessionLog:          "panic: boom",
		ConversationHistory: "Exchange 1:\nQ: hi\nA: hello",
		ChangesLog:          "M crash.go",
	})

	want := ConversationHeader + "Exchange 1:\nQ: hi\nA: hello\n" +
		SessionLogHeader + "panic: boom\n" +
		ChangesHeader + "M crash.go\n" +
		FilesHeader +
		"\n--- FILE: crash.go (score: 20.0) ---\npackage main\n--- END FILE: crash.go ---\n"
	assert.Equal(t, want, result.Context)
	assert.Equal(t, []string{"crash.go"}, result.IncludedFiles)
	assert.Equal(t, len(want), result.Size)
	assert.Equal(t, DefaultMaxFiles, scorer.gotMax)
}

func TestBuilder_EmptyProject(t *testing.T) {
	root := t.TempDir()
	opts := DefaultOptions()
	opts.Scorer = NewFileScorer(root, ScorerOptions{Lister: WalkLister{Root: root}})
	b := NewBuilder(root, opts)

	result := b.Build(gocontext.Background(), Input{
		Query:               "Fix the authentication bug",
		ConversationHistory: "previous exchange",
	})

	assert.Equal(t, ConversationHeader+"previous exchange\n", result.Context)
	assert.NotNil(t, result.IncludedFiles)
	assert.Empty(t, result.IncludedFiles)
}

func TestBuilder_AuthenticationScenario(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "auth.py", "def authenticate():\n    return True\n")
	writeProjectFile(t, root, "unrelated.py", "print('hello')\n")

	opts := DefaultOptions()
	opts.Scorer = NewFileScorer(root, ScorerOptions{
		Lister: WalkLister{Root: root},
		Now:    func() time.Time { return oldTime.Add(365 * 24 * time.Hour) },
	})
	b := NewBuilder(root, opts)

	result := b.Build(gocontext.Background(), Input{Query: "Fix the authentication bug"})

	assert.Equal(t, IntentDebug, result.Intent)
	assert.Equal(t, []string{"auth.py"}, result.IncludedFiles)
	assert.Contains(t, result.Context, "--- FILE: auth.py (score: 15.0) ---")
	assert.Contains(t, result.Context, "def authenticate():")
	assert.NotContains(t, result.Context, "unrelated.py")
}

func TestBuilder_SoftIntentBudget(t *testing.T) {
	scorer := &fakeScorer{files: []*FileRelevance{
		{Path: "a.go", Score: 30},
		{Path: "b.go", Score: 20},
	}}
	files := map[string]string{"a.go": strings.Repeat("a", 80), "b.go": "b"}

	b := newTestBuilder(scorer, files, func(o *Options) {
		o.BaseSizes = map[Intent]int{IntentGeneral: 100}
	})

	// The check runs before each candidate, so the first file may push past
	// the soft budget but nothing is tried after that.
	result := b.Build(gocontext.Background(), Input{Query: "hello"})
	assert.Equal(t, []string{"a.go"}, result.IncludedFiles)
	assert.Greater(t, result.Size, 100)

	result = b.Build(gocontext.Background(), Input{Query: "hello", ConversationHistory: strings.Repeat("c", 120)})
	assert.Empty(t, result.IncludedFiles)
}

func TestBuilder_HardCeilingSkipsAndContinues(t *testing.T) {
	scorer := &fakeScorer{files: []*FileRelevance{
		{Path: "huge.go", Score: 90},
		{Path: "small.go", Score: 80},
	}}
	files := map[string]string{
		"huge.go":  strings.Repeat("x\n", 5000),
		"small.go": "package small",
	}

	b := newTestBuilder(scorer, files, func(o *Options) {
		o.MaxContextSize = 2000
		o.BaseSizes = map[Intent]int{IntentGeneral: 2000}
	})

	result := b.Build(gocontext.Background(), Input{Query: "hello"})
	assert.Equal(t, []string{"small.go"}, result.IncludedFiles)
	assert.LessOrEqual(t, len(result.Context), 2000)
	assert.NotContains(t, result.Context, "huge.go")
}

func TestBuilder_ExcerptsLargeLowScoreFiles(t *testing.T) {
	lines := numberedLines(1000)
	lines[499] = "needle := find()"
	large := strings.Join(lines, "\n")
	require.Greater(t, len(large), DefaultExcerptThreshold)

	t.Run("low score is excerpted", func(t *testing.T) {
		scorer := &fakeScorer{files: []*FileRelevance{{Path: "big.go", Score: 10}}}
		b := newTestBuilder(scorer, map[string]string{"big.go": large}, nil)

		result := b.Build(gocontext.Background(), Input{Query: "where is needle"})

		require.Equal(t, []string{"big.go"}, result.IncludedFiles)
		assert.Contains(t, result.Context, "500: needle := find()")
		assert.Contains(t, result.Context, TruncationMarker)
		assert.NotContains(t, result.Context, "filler 1\n")
		assert.Less(t, strings.Count(result.Context, "\n"), 100)
	})

	t.Run("high score is whole", func(t *testing.T) {
		scorer := &fakeScorer{files: []*FileRelevance{{Path: "big.go", Score: 50}}}
		b := newTestBuilder(scorer, map[string]string{"big.go": large}, nil)

		result := b.Build(gocontext.Background(), Input{Query: "where is needle"})

		assert.Contains(t, result.Context, "\n"+large+"\n")
	})
}

func TestBuilder_SkipsUnreadableAndBinaryFiles(t *testing.T) {
	scorer := &fakeScorer{files: []*FileRelevance{
		{Path: "missing.go", Score: 40},
		{Path: "image.png", Score: 30},
		{Path: "empty.go", Score: 25},
		{Path: "ok.go", Score: 20},
	}}
	files := map[string]string{
		"image.png": "\x89PNG\x00\x00",
		"empty.go":  "",
		"ok.go":     "package ok",
	}

	b := newTestBuilder(scorer, files, nil)
	result := b.Build(gocontext.Background(), Input{Query: "hello"})

	assert.Equal(t, []string{"ok.go"}, result.IncludedFiles)
}

func TestBuilder_ReadErrorsNeverSurface(t *testing.T) {
	scorer := &fakeScorer{files: []*FileRelevance{{Path: "a.go", Score: 5}}}
	opts := DefaultOptions()
	opts.Scorer = scorer
	opts.ReadFile = func(string) ([]byte, error) { return nil, errors.New("permission denied") }

	result := NewBuilder("/project", opts).Build(gocontext.Background(), Input{Query: "hello"})
	assert.Empty(t, result.IncludedFiles)
	assert.Empty(t, result.Context)
}

func TestBuilder_NeverExceedsMaxSize(t *testing.T) {
	var files []*FileRelevance
	contents := make(map[string]string)
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("f%02d.go", i)
		files = append(files, &FileRelevance{Path: name, Score: float64(100 - i)})
		contents[name] = strings.Repeat(fmt.Sprintf("line %d\n", i), 30*(i+1))
	}
	big := strings.Repeat("history ", 4000)

	for _, maxSize := range []int{10, 100, 1000, 5000, 20000, 100000} {
		for _, in := range []Input{
			{Query: "hello"},
			{Query: "Fix the crash", SessionLog: big, ConversationHistory: big, ChangesLog: big},
			{Query: "Fix the crash", ConversationHistory: "short"},
		} {
			scorer := &fakeScorer{files: files}
			b := newTestBuilder(scorer, contents, func(o *Options) { o.MaxContextSize = maxSize })

			result := b.Build(gocontext.Background(), in)

			assert.LessOrEqual(t, len(result.Context), maxSize, "max %d query %q", maxSize, in.Query)
			assert.Equal(t, len(result.Context), result.Size)
			assert.LessOrEqual(t, len(result.IncludedFiles), DefaultMaxFiles)
			for _, path := range result.IncludedFiles {
				assert.Contains(t, contents, path)
			}
		}
	}
}

func TestBuilder_TrimsOversizedSections(t *testing.T) {
	history := strings.Repeat("older ", 100) + "most recent"
	b := newTestBuilder(&fakeScorer{}, nil, func(o *Options) { o.MaxContextSize = 200 })

	result := b.Build(gocontext.Background(), Input{Query: "hello", ConversationHistory: history})

	assert.LessOrEqual(t, len(result.Context), 200)
	assert.True(t, strings.HasPrefix(result.Context, ConversationHeader+TruncationMarker+"\n"))
	assert.True(t, strings.HasSuffix(result.Context, "most recent\n"))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 10))
	assert.Equal(t, "bc", tail("abc", 2))
	// never splits a multi-byte rune
	assert.Equal(t, "b", tail("éb", 2))
	assert.Equal(t, "", tail("é", 1))
}

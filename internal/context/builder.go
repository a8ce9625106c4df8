package context

import (
	"bytes"
	gocontext "context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Section headers of the assembled context.
const (
	ConversationHeader = "### RECENT CONVERSATION ###\n"
	SessionLogHeader   = "### RECENT SESSION LOG ###\n"
	ChangesHeader      = "### RECENT CHANGES ###\n"
	FilesHeader        = "### RELEVANT PROJECT FILES ###\n"
)

// Builder defaults.
const (
	DefaultSessionLogTail   = 10000
	DefaultExcerptThreshold = 5000
	DefaultExcerptMaxScore  = 50.0
)

// Options configures a Builder. Sizes are measured in bytes of the assembled text.
type Options struct {
	// Enabled reports whether smart context is on; callers fall back to a
	// whole-repository dump when it is off
	Enabled bool

	// MaxContextSize is the hard ceiling on the assembled context (default: 100000)
	MaxContextSize int

	// MaxFiles is how many ranked files to consider (default: 50)
	MaxFiles int

	// BaseSizes is the per-intent soft budget for file inclusion (default: DefaultBaseSizes)
	BaseSizes map[Intent]int

	// SessionLogTail is how many characters of the session log a debug query gets (default: 10000)
	SessionLogTail int

	// ExcerptThreshold is the content length in characters above which low-scoring files are excerpted (default: 5000)
	ExcerptThreshold int

	// ExcerptMaxScore is the score at or above which files are always included whole (default: 50)
	ExcerptMaxScore float64

	// ExcerptRadius is the number of lines kept around each hit (default: 10)
	ExcerptRadius int

	// Scorer ranks files (default: FileScorer over the project root)
	Scorer Scorer

	// ReadFile loads a file by absolute path (default: os.ReadFile)
	ReadFile func(path string) ([]byte, error)

	Logger *zap.Logger
}

// DefaultOptions returns default builder options.
func DefaultOptions() Options {
	return Options{
		Enabled:          true,
		MaxContextSize:   DefaultMaxContextSize,
		MaxFiles:         DefaultMaxFiles,
		BaseSizes:        DefaultBaseSizes(),
		SessionLogTail:   DefaultSessionLogTail,
		ExcerptThreshold: DefaultExcerptThreshold,
		ExcerptMaxScore:  DefaultExcerptMaxScore,
		ExcerptRadius:    DefaultExcerptRadius,
	}
}

// Input is everything a single context build draws on besides the project tree.
type Input struct {
	Query string

	// SessionLog is the raw terminal transcript
	SessionLog string

	// ConversationHistory is pre-rendered prior exchanges
	ConversationHistory string

	// ChangesLog is an optional pre-rendered list of recent changes
	ChangesLog string
}

// Result is an assembled context.
type Result struct {
	Context       string             `yaml:"-" json:"context"`
	IncludedFiles []string           `yaml:"included_files" json:"included_files"`
	Intent        Intent             `yaml:"intent" json:"intent"`
	Keywords      []string           `yaml:"keywords" json:"keywords"`
	TechTerms     map[string]float64 `yaml:"tech_terms,omitempty" json:"tech_terms,omitempty"`
	Size          int                `yaml:"size" json:"size"`
	BaseBudget    int                `yaml:"base_budget" json:"base_budget"`
	MaxSize       int                `yaml:"max_size" json:"max_size"`
}

// Builder assembles bounded-size context for queries against one project.
// Build keeps all of its working state local, so a Builder may serve
// concurrent queries.
type Builder struct {
	root     string
	analyzer *QueryAnalyzer
	scorer   Scorer
	readFile func(string) ([]byte, error)
	opts     Options
	logger   *zap.Logger
}

// NewBuilder creates a builder for the project root, filling unset options with defaults.
func NewBuilder(root string, opts Options) *Builder {
	defaults := DefaultOptions()
	if opts.MaxContextSize <= 0 {
		opts.MaxContextSize = defaults.MaxContextSize
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = defaults.MaxFiles
	}
	if opts.BaseSizes == nil {
		opts.BaseSizes = defaults.BaseSizes
	}
	if opts.SessionLogTail <= 0 {
		opts.SessionLogTail = defaults.SessionLogTail
	}
	if opts.ExcerptThreshold <= 0 {
		opts.ExcerptThreshold = defaults.ExcerptThreshold
	}
	if opts.ExcerptMaxScore <= 0 {
		opts.ExcerptMaxScore = defaults.ExcerptMaxScore
	}
	if opts.ExcerptRadius <= 0 {
		opts.ExcerptRadius = defaults.ExcerptRadius
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Scorer == nil {
		opts.Scorer = NewFileScorer(root, ScorerOptions{Logger: opts.Logger})
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}

	return &Builder{
		root:     root,
		analyzer: NewQueryAnalyzer(opts.Logger),
		scorer:   opts.Scorer,
		readFile: opts.ReadFile,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Enabled reports whether smart context is switched on.
func (b *Builder) Enabled() bool {
	return b.opts.Enabled
}

// Analyzer returns the builder's query analyzer.
func (b *Builder) Analyzer() *QueryAnalyzer {
	return b.analyzer
}

// Scorer returns the builder's file scorer.
func (b *Builder) Scorer() Scorer {
	return b.scorer
}

// Build assembles context for the input. It never fails: missing or
// unreadable files are skipped and an exhausted budget just ends the file
// section. The result never exceeds MaxContextSize.
func (b *Builder) Build(ctx gocontext.Context, in Input) *Result {
	analysis := b.analyzer.Analyze(in.Query)
	ranked := b.scorer.ScoreFiles(ctx, analysis, b.opts.MaxFiles)
	base := BaseSize(b.opts.BaseSizes, analysis.Intent)
	maxSize := b.opts.MaxContextSize

	result := &Result{
		IncludedFiles: []string{},
		Intent:        analysis.Intent,
		Keywords:      analysis.Keywords,
		TechTerms:     analysis.TechTerms,
		BaseBudget:    base,
		MaxSize:       maxSize,
	}

	var sb strings.Builder
	appendSection := func(header, body string) {
		if body == "" {
			return
		}
		section := fitSection(header, body, maxSize-sb.Len())
		if section == "" {
			b.logger.Warn("no room for section", zap.String("section", strings.Trim(header, "# \n")))
			return
		}
		sb.WriteString(section)
	}

	appendSection(ConversationHeader, in.ConversationHistory)
	if analysis.Intent == IntentDebug && in.SessionLog != "" {
		appendSection(SessionLogHeader, tailRunes(in.SessionLog, b.opts.SessionLogTail))
	}
	appendSection(ChangesHeader, in.ChangesLog)

	filesHeader := FilesHeader
	for _, file := range ranked {
		if sb.Len() >= base {
			b.logger.Debug("intent budget reached",
				zap.Int("size", sb.Len()), zap.Int("budget", base))
			break
		}

		content, ok := b.loadFile(file.Path)
		if !ok {
			continue
		}
		if utf8.RuneCountInString(content) > b.opts.ExcerptThreshold && file.Score < b.opts.ExcerptMaxScore {
			content = ExtractRelevant(content, analysis.Keywords, analysis.TechTerms, b.opts.ExcerptRadius)
		}
		if content == "" {
			continue
		}

		section := fileSection(file, content)
		if sb.Len()+len(filesHeader)+len(section) > maxSize {
			b.logger.Debug("file does not fit",
				zap.String("path", file.Path), zap.Int("section", len(section)))
			continue
		}

		sb.WriteString(filesHeader)
		filesHeader = ""
		sb.WriteString(section)
		result.IncludedFiles = append(result.IncludedFiles, file.Path)

		reasons := file.Reasons
		if len(reasons) > 2 {
			reasons = reasons[:2]
		}
		b.logger.Info("included file",
			zap.String("path", file.Path),
			zap.Float64("score", file.Score),
			zap.Strings("reasons", reasons),
		)
	}

	result.Context = sb.String()
	result.Size = sb.Len()

	b.logger.Info("built context",
		zap.String("intent", analysis.Intent.String()),
		zap.Int("size", result.Size),
		zap.Int("files", len(result.IncludedFiles)),
	)
	return result
}

// loadFile reads a project file as text. Unreadable, empty and binary files
// are reported as not ok.
func (b *Builder) loadFile(rel string) (string, bool) {
	data, err := b.readFile(filepath.Join(b.root, filepath.FromSlash(rel)))
	if err != nil {
		b.logger.Error("read file", zap.String("path", rel), zap.Error(err))
		return "", false
	}
	if len(data) == 0 {
		return "", false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		b.logger.Debug("skipping binary file", zap.String("path", rel))
		return "", false
	}
	return strings.ToValidUTF8(string(data), ""), true
}

// fileSection wraps content in the FILE header and footer.
func fileSection(file *FileRelevance, content string) string {
	return fmt.Sprintf("\n--- FILE: %s (score: %.1f) ---\n", file.Path, file.Score) +
		content +
		fmt.Sprintf("\n--- END FILE: %s ---\n", file.Path)
}

// fitSection renders header+body, keeping only the most recent part of the
// body when the whole would not fit in room. It returns "" if not even the
// header fits.
func fitSection(header, body string, room int) string {
	full := header + body + "\n"
	if len(full) <= room {
		return full
	}
	prefix := header + TruncationMarker + "\n"
	keep := room - len(prefix) - 1
	if keep <= 0 {
		return ""
	}
	return prefix + tail(body, keep) + "\n"
}

// tailRunes returns the last n characters of s.
func tailRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s)
	for i := 0; i < n && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:start])
		start -= size
	}
	return s[start:]
}

// tail returns at most n bytes from the end of s, starting on a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

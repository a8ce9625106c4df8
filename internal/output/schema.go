package output

import (
	"fmt"
	"strings"
	"time"

	cxcontext "github.com/codebuddy/buddy/internal/context"
	"github.com/codebuddy/buddy/internal/errpattern"
	"github.com/codebuddy/buddy/internal/session"
)

// Texter is implemented by outputs with a plain text rendering.
type Texter interface {
	Text() string
}

// AnalysisOutput represents a query analysis for buddy analyze.
type AnalysisOutput struct {
	// Query is the analyzed text
	Query string `yaml:"query" json:"query"`

	// Intent is the detected intent category
	Intent string `yaml:"intent" json:"intent"`

	// Keywords are the extracted search keywords, in first-seen order
	Keywords []string `yaml:"keywords" json:"keywords"`

	// TechTerms maps technical terms to confidence (medium and dense)
	TechTerms map[string]float64 `yaml:"tech_terms,omitempty" json:"tech_terms,omitempty"`

	// IntentCounts holds the matched pattern count per intent (dense only)
	IntentCounts map[string]int `yaml:"intent_counts,omitempty" json:"intent_counts,omitempty"`
}

// NewAnalysisOutput builds the analysis output for a query.
func NewAnalysisOutput(query string, analysis *cxcontext.QueryAnalysis) *AnalysisOutput {
	out := &AnalysisOutput{
		Query:     query,
		Intent:    analysis.Intent.String(),
		Keywords:  analysis.Keywords,
		TechTerms: analysis.TechTerms,
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}

	counts := cxcontext.IntentCounts(query)
	if len(counts) > 0 {
		out.IntentCounts = make(map[string]int, len(counts))
		for intent, n := range counts {
			out.IntentCounts[intent.String()] = n
		}
	}
	return out
}

// Text renders the analysis as plain lines.
func (a *AnalysisOutput) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Intent: %s\n", a.Intent)
	fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(a.Keywords, ", "))
	if len(a.TechTerms) > 0 {
		sb.WriteString("Tech terms:\n")
		for _, term := range sortedKeys(a.TechTerms) {
			fmt.Fprintf(&sb, "  %s (%.1f)\n", term, a.TechTerms[term])
		}
	}
	return sb.String()
}

// RankOutput represents ranked project files for buddy rank.
type RankOutput struct {
	// Query is the ranked query
	Query string `yaml:"query" json:"query"`

	// Intent is the detected intent category
	Intent string `yaml:"intent" json:"intent"`

	// Files are the scored files, most relevant first
	Files []*RankedFile `yaml:"files" json:"files"`

	// Count is the number of files returned
	Count int `yaml:"count" json:"count"`
}

// RankedFile is one scored file.
type RankedFile struct {
	// Path is relative to the project root
	Path string `yaml:"path" json:"path"`

	// Score is the relevance score
	Score float64 `yaml:"score" json:"score"`

	// Reasons explain the score (medium and dense)
	Reasons []string `yaml:"reasons,omitempty" json:"reasons,omitempty"`

	// Size in bytes (dense only)
	Size int64 `yaml:"size,omitempty" json:"size,omitempty"`

	// Modified is the modification time in RFC3339 (dense only)
	Modified string `yaml:"modified,omitempty" json:"modified,omitempty"`
}

// NewRankOutput builds the rank output for scored files.
func NewRankOutput(query string, analysis *cxcontext.QueryAnalysis, files []*cxcontext.FileRelevance) *RankOutput {
	out := &RankOutput{
		Query:  query,
		Intent: analysis.Intent.String(),
		Files:  make([]*RankedFile, 0, len(files)),
	}
	for _, f := range files {
		rf := &RankedFile{
			Path:    f.Path,
			Score:   f.Score,
			Reasons: f.Reasons,
			Size:    f.Size,
		}
		if !f.LastModified.IsZero() {
			rf.Modified = f.LastModified.UTC().Format(time.RFC3339)
		}
		out.Files = append(out.Files, rf)
	}
	out.Count = len(out.Files)
	return out
}

// Text renders one line per file.
func (r *RankOutput) Text() string {
	if len(r.Files) == 0 {
		return "No relevant files found.\n"
	}
	var sb strings.Builder
	for i, f := range r.Files {
		fmt.Fprintf(&sb, "%2d. %s (score: %.1f)\n", i+1, f.Path, f.Score)
		for _, reason := range f.Reasons {
			fmt.Fprintf(&sb, "      - %s\n", reason)
		}
	}
	return sb.String()
}

// ContextOutput represents an assembled context for buddy context.
type ContextOutput struct {
	// Context contains metadata about the assembly
	Context *ContextMetadata `yaml:"context" json:"context"`

	// IncludedFiles lists the files in the context, in inclusion order
	IncludedFiles []string `yaml:"included_files" json:"included_files"`

	// Content is the assembled text (omitted at sparse density)
	Content string `yaml:"content,omitempty" json:"content,omitempty"`
}

// ContextMetadata contains metadata about a context assembly.
type ContextMetadata struct {
	// Query is the question the context was built for
	Query string `yaml:"query" json:"query"`

	// Intent is the detected intent category
	Intent string `yaml:"intent" json:"intent"`

	// Keywords are the extracted keywords
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`

	// Size is the assembled size in bytes
	Size int `yaml:"size" json:"size"`

	// BaseBudget is the intent's soft budget
	BaseBudget int `yaml:"base_budget" json:"base_budget"`

	// MaxSize is the hard ceiling
	MaxSize int `yaml:"max_size" json:"max_size"`
}

// NewContextOutput builds the context output for a builder result.
func NewContextOutput(query string, result *cxcontext.Result) *ContextOutput {
	return &ContextOutput{
		Context: &ContextMetadata{
			Query:      query,
			Intent:     result.Intent.String(),
			Keywords:   result.Keywords,
			Size:       result.Size,
			BaseBudget: result.BaseBudget,
			MaxSize:    result.MaxSize,
		},
		IncludedFiles: result.IncludedFiles,
		Content:       result.Context,
	}
}

// Text returns the assembled context itself.
func (c *ContextOutput) Text() string {
	return c.Content
}

// SessionListOutput represents stored sessions for buddy sessions.
type SessionListOutput struct {
	Sessions []*session.Session `yaml:"sessions" json:"sessions"`
	Count    int                `yaml:"count" json:"count"`
}

// NewSessionListOutput wraps a session listing.
func NewSessionListOutput(sessions []*session.Session) *SessionListOutput {
	if sessions == nil {
		sessions = []*session.Session{}
	}
	return &SessionListOutput{Sessions: sessions, Count: len(sessions)}
}

// Text renders the listing for display.
func (s *SessionListOutput) Text() string {
	return session.FormatSessionList(s.Sessions) + "\n"
}

// SuggestionsOutput represents detected problems for buddy suggestions.
type SuggestionsOutput struct {
	// Source is the log or files that were examined
	Source string `yaml:"source" json:"source"`

	// Suggestions are the detections, most urgent first
	Suggestions []errpattern.Detection `yaml:"suggestions" json:"suggestions"`

	Count int `yaml:"count" json:"count"`
}

// NewSuggestionsOutput orders detections by urgency.
func NewSuggestionsOutput(source string, dets []errpattern.Detection) *SuggestionsOutput {
	ordered := errpattern.Prioritize(dets)
	return &SuggestionsOutput{Source: source, Suggestions: ordered, Count: len(ordered)}
}

// Text renders the numbered suggestion list.
func (s *SuggestionsOutput) Text() string {
	if len(s.Suggestions) == 0 {
		return "No suggestions.\n"
	}
	return errpattern.FormatSuggestions(s.Suggestions)
}

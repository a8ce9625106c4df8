package context

import (
	gocontext "context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Score contributions for each rule.
const (
	filenameKeywordScore = 10.0
	pathKeywordScore     = 5.0
	testFileScore        = 15.0
	configFileScore      = 12.0
	docFileScore         = 10.0
	logFileScore         = 8.0
	extensionTermScore   = 5.0
	pathTermScore        = 8.0
)

// minStemLen is the shortest file stem that may match inside a longer keyword.
const minStemLen = 3

var configNameParts = []string{".env", "config", "settings", "docker", "compose", ".yml", ".yaml", ".json", ".toml"}

var docExtensions = map[string]bool{".md": true, ".rst": true, ".txt": true}

// Scorer ranks project files against an analyzed query.
type Scorer interface {
	ScoreFiles(ctx gocontext.Context, analysis *QueryAnalysis, maxFiles int) []*FileRelevance
}

// ScorerOptions configures a FileScorer.
type ScorerOptions struct {
	// Lister enumerates candidate files (default: RepoLister on the root)
	Lister Lister

	// Now supplies the reference time for recency bonuses (default: time.Now)
	Now func() time.Time

	Logger *zap.Logger
}

// FileScorer scores the files of one project root. Every ScoreFiles call
// enumerates and stats the tree afresh; nothing is retained between calls.
type FileScorer struct {
	root   string
	lister Lister
	now    func() time.Time
	logger *zap.Logger
}

// NewFileScorer creates a scorer for the project root.
func NewFileScorer(root string, opts ScorerOptions) *FileScorer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Lister == nil {
		opts.Lister = NewRepoLister(root, opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &FileScorer{
		root:   root,
		lister: opts.Lister,
		now:    opts.Now,
		logger: opts.Logger,
	}
}

// Root returns the project root.
func (s *FileScorer) Root() string {
	return s.root
}

// ScoreFiles ranks every candidate file by relevance, descending. Files that
// cannot be stat'ed or that score zero are left out. At most maxFiles entries
// are returned; maxFiles <= 0 means DefaultMaxFiles.
func (s *FileScorer) ScoreFiles(ctx gocontext.Context, analysis *QueryAnalysis, maxFiles int) []*FileRelevance {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if analysis == nil {
		analysis = &QueryAnalysis{Intent: IntentGeneral}
	}

	terms := sortedTerms(analysis.TechTerms)
	now := s.now()
	stats := newStatCache(s.root)

	var results []*FileRelevance
	for _, rel := range s.lister.ListFiles(ctx) {
		info, err := stats.stat(rel)
		if err != nil {
			s.logger.Warn("skipping unreadable file", zap.String("path", rel), zap.Error(err))
			continue
		}
		if info.IsDir() {
			continue
		}

		score, reasons := scoreFile(rel, info.ModTime(), now, analysis.Intent, analysis.Keywords, terms)
		if score <= 0 {
			continue
		}
		results = append(results, &FileRelevance{
			Path:         rel,
			Score:        score,
			Reasons:      reasons,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxFiles {
		results = results[:maxFiles]
	}

	s.logger.Debug("scored files",
		zap.String("intent", analysis.Intent.String()),
		zap.Int("stat_calls", stats.len()),
		zap.Int("relevant", len(results)),
	)
	return results
}

type techTerm struct {
	term       string
	confidence float64
}

// sortedTerms orders terms by key so reasons and float sums are reproducible.
func sortedTerms(terms map[string]float64) []techTerm {
	out := make([]techTerm, 0, len(terms))
	for term, conf := range terms {
		out = append(out, techTerm{term: term, confidence: conf})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].term < out[j].term })
	return out
}

// scoreFile applies every rule to one file. Each rule only ever adds.
func scoreFile(rel string, modTime, now time.Time, intent Intent, keywords []string, terms []techTerm) (float64, []string) {
	var score float64
	var reasons []string

	name := path.Base(rel)
	nameLower := strings.ToLower(name)
	relLower := strings.ToLower(rel)

	for _, kw := range keywords {
		if nameMatches(nameLower, strings.ToLower(kw)) {
			score += filenameKeywordScore
			reasons = append(reasons, fmt.Sprintf("Filename contains '%s'", kw))
		}
	}

	for _, kw := range keywords {
		if pathMatches(relLower, strings.ToLower(kw)) {
			score += pathKeywordScore
			reasons = append(reasons, fmt.Sprintf("Path contains '%s'", kw))
		}
	}

	if bonus, reason := intentBonus(intent, nameLower, relLower); bonus > 0 {
		score += bonus
		reasons = append(reasons, reason)
	}

	ext := strings.ToLower(path.Ext(name))
	for _, t := range terms {
		if strings.HasPrefix(t.term, "*.") {
			if ext != "" && ext == strings.ToLower(t.term[1:]) {
				score += extensionTermScore * t.confidence
				reasons = append(reasons, fmt.Sprintf("File type matches %s", t.term))
			}
		} else if strings.Contains(rel, t.term) {
			score += pathTermScore * t.confidence
			reasons = append(reasons, fmt.Sprintf("Path contains technical term '%s'", t.term))
		}
	}

	if bonus, reason := recencyBonus(now.Sub(modTime)); bonus > 0 {
		score += bonus
		reasons = append(reasons, reason)
	}

	return score, reasons
}

// nameMatches reports whether a lowercase filename and keyword overlap in
// either direction. The reverse direction compares the extension-less stem
// so "auth.py" matches "authentication".
func nameMatches(name, kw string) bool {
	if kw == "" {
		return false
	}
	if strings.Contains(name, kw) {
		return true
	}
	return stemIn(name, kw)
}

// pathMatches is nameMatches applied to every component of a relative path.
func pathMatches(rel, kw string) bool {
	if kw == "" {
		return false
	}
	if strings.Contains(rel, kw) {
		return true
	}
	for _, part := range strings.Split(rel, "/") {
		if stemIn(part, kw) {
			return true
		}
	}
	return false
}

func stemIn(name, kw string) bool {
	stem := strings.TrimSuffix(name, path.Ext(name))
	return len(stem) >= minStemLen && strings.Contains(kw, stem)
}

// intentBonus returns the single intent-specific bonus that applies, if any.
func intentBonus(intent Intent, nameLower, relLower string) (float64, string) {
	switch intent {
	case IntentTest:
		if strings.Contains(relLower, "test") {
			return testFileScore, "Test file"
		}
	case IntentConfig:
		for _, part := range configNameParts {
			if strings.Contains(nameLower, part) {
				return configFileScore, "Configuration file"
			}
		}
	case IntentDocument:
		if docExtensions[path.Ext(nameLower)] || strings.Contains(nameLower, "readme") {
			return docFileScore, "Documentation file"
		}
	case IntentDebug:
		if strings.Contains(nameLower, "log") || strings.Contains(nameLower, "error") {
			return logFileScore, "Log/error related file"
		}
	}
	return 0, ""
}

// recencyBonus picks exactly one modification-age bucket.
func recencyBonus(age time.Duration) (float64, string) {
	switch {
	case age < time.Hour:
		return 5, "Modified in last hour"
	case age < 24*time.Hour:
		return 3, "Modified in last 24 hours"
	case age < 7*24*time.Hour:
		return 1, "Modified in last week"
	}
	return 0, ""
}

// statCache memoizes stat results for the duration of one scoring pass.
type statCache struct {
	root  string
	infos map[string]fs.FileInfo
}

func newStatCache(root string) *statCache {
	return &statCache{root: root, infos: make(map[string]fs.FileInfo)}
}

func (c *statCache) stat(rel string) (fs.FileInfo, error) {
	if info, ok := c.infos[rel]; ok {
		return info, nil
	}
	info, err := os.Stat(filepath.Join(c.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	c.infos[rel] = info
	return info, nil
}

func (c *statCache) len() int {
	return len(c.infos)
}

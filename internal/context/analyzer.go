package context

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// intentPatterns holds each intent's pattern set, matched against the lowercased query.
// An intent's count is the number of its patterns that match at least once.
// IntentDocument has no patterns: the analyzer never picks it, but callers may
// score files for it directly.
var intentPatterns = []struct {
	intent   Intent
	patterns []*regexp.Regexp
}{
	{IntentDebug, compileAll(
		`\b(error|bug|fail|failing|broken|fix|issue|problem|crash|exception)\b`,
		`\b(not work|doesn't work|won't work)\b`,
		`\b(debug|troubleshoot|investigate)\b`,
	)},
	{IntentFeature, compileAll(
		`\b(add|implement|create|build|feature|new|enhance|extend)\b`,
		`\b(want|need|should|could)\s+\w+\s+(to|that|which)`,
		`\b(functionality|capability)\b`,
	)},
	{IntentExplain, compileAll(
		`\b(what|how|why|explain|understand|tell me|show me)\b`,
		`\b(does|work|mean|purpose)\b`,
		`\b(documentation|docs|comment)\b`,
	)},
	{IntentRefactor, compileAll(
		`\b(refactor|improve|optimize|clean|reorganize|restructure)\b`,
		`\b(better|efficient|readable|maintainable)\b`,
		`\b(code smell|duplicate|redundant)\b`,
	)},
	{IntentTest, compileAll(
		`\b(test|testing|unit test|integration test|pytest|jest)\b`,
		`\b(coverage|mock|assert|fixture)\b`,
		`\b(tdd|test-driven)\b`,
	)},
	{IntentConfig, compileAll(
		`\b(config|configure|setup|install|deploy|environment)\b`,
		`\b(settings|options|parameters)\b`,
		`\b(docker|kubernetes|ci|cd|github actions)\b`,
	)},
}

var stopWords = map[string]bool{
	"the": true, "is": true, "at": true, "which": true, "on": true,
	"a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "with": true, "to": true, "for": true, "of": true,
	"as": true, "by": true, "that": true, "this": true, "it": true,
	"from": true, "be": true, "are": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "can": true, "need": true,
	"my": true, "our": true, "we": true, "i": true, "me": true,
}

// sourceExtensions are the file extensions recognized as source code in queries.
var sourceExtensions = map[string]bool{
	"py": true, "js": true, "ts": true, "jsx": true, "tsx": true,
	"java": true, "cpp": true, "c": true, "h": true, "go": true, "rs": true,
}

var (
	wordPattern        = regexp.MustCompile(`\b\w+\b`)
	doubleQuotePattern = regexp.MustCompile(`"([^"]+)"`)
	singleQuotePattern = regexp.MustCompile(`'([^']+)'`)
	pathPattern        = regexp.MustCompile(`[\w/\\.-]+\.\w+`)

	identifierPattern = regexp.MustCompile(`\b([a-z_]+[A-Z]\w+|[a-z]+_[a-z_]+)\b`)
	extensionPattern  = regexp.MustCompile(`\b\w+\.(\w+)\b`)
	pascalPattern     = regexp.MustCompile(`\b[A-Z][a-z]+[A-Z]\w*\b`)
	importPattern     = regexp.MustCompile(`\b(import|from|require)\s+(\S+)`)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(expr)
	}
	return out
}

// QueryAnalyzer classifies queries and extracts the terms used for file scoring.
// It holds no per-query state and is safe for concurrent use.
type QueryAnalyzer struct {
	logger *zap.Logger
}

// NewQueryAnalyzer creates an analyzer. A nil logger disables logging.
func NewQueryAnalyzer(logger *zap.Logger) *QueryAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryAnalyzer{logger: logger}
}

// Analyze classifies the query and extracts its keywords and technical terms.
func (a *QueryAnalyzer) Analyze(query string) *QueryAnalysis {
	analysis := &QueryAnalysis{
		Intent:    DetectIntent(query),
		Keywords:  ExtractKeywords(query),
		TechTerms: ExtractTechTerms(query),
	}

	a.logger.Debug("analyzed query",
		zap.String("intent", analysis.Intent.String()),
		zap.Strings("keywords", analysis.Keywords),
		zap.Int("tech_terms", len(analysis.TechTerms)),
	)

	return analysis
}

// IntentCounts returns how many of each intent's patterns match the query.
// Intents with no matching pattern are omitted.
func IntentCounts(query string) map[Intent]int {
	lower := strings.ToLower(query)
	counts := make(map[Intent]int)
	for _, ip := range intentPatterns {
		for _, re := range ip.patterns {
			if re.MatchString(lower) {
				counts[ip.intent]++
			}
		}
	}
	return counts
}

// DetectIntent returns the intent with the highest pattern count.
// Ties go to the intent declared first; no match at all yields IntentGeneral.
func DetectIntent(query string) Intent {
	counts := IntentCounts(query)

	best := IntentGeneral
	bestCount := 0
	for _, ip := range intentPatterns {
		if counts[ip.intent] > bestCount {
			best = ip.intent
			bestCount = counts[ip.intent]
		}
	}
	return best
}

// ExtractKeywords returns the query's significant lowercase words, followed by
// quoted substrings and path-like substrings verbatim. Order is first-seen and
// duplicates are dropped.
func ExtractKeywords(query string) []string {
	var keywords []string
	seen := make(map[string]bool)
	add := func(kw string) {
		if kw == "" || seen[kw] {
			return
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}

	for _, word := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if len(word) > 2 && !stopWords[word] {
			add(word)
		}
	}

	for _, re := range []*regexp.Regexp{doubleQuotePattern, singleQuotePattern} {
		for _, m := range re.FindAllStringSubmatch(query, -1) {
			add(m[1])
		}
	}

	for _, path := range pathPattern.FindAllString(query, -1) {
		add(path)
	}

	return keywords
}

// ExtractTechTerms scans the raw query for identifier-shaped terms and source
// extensions. Later scans override earlier ones when they produce the same key.
func ExtractTechTerms(query string) map[string]float64 {
	terms := make(map[string]float64)

	for _, m := range identifierPattern.FindAllStringSubmatch(query, -1) {
		terms[m[1]] = 0.8
	}

	for _, m := range extensionPattern.FindAllStringSubmatch(query, -1) {
		ext := strings.ToLower(m[1])
		if sourceExtensions[ext] {
			terms["*."+ext] = 0.9
		}
	}

	for _, m := range pascalPattern.FindAllString(query, -1) {
		terms[m] = 0.7
	}

	for _, m := range importPattern.FindAllStringSubmatch(query, -1) {
		terms[m[2]] = 0.9
	}

	return terms
}

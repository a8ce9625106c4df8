package errpattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Detection is one recognized problem.
type Detection struct {
	ErrorType   string   `yaml:"error_type" json:"error_type"`
	File        string   `yaml:"file,omitempty" json:"file,omitempty"`
	Category    Category `yaml:"category" json:"category"`
	Severity    Severity `yaml:"severity" json:"severity"`
	Line        int      `yaml:"line_number,omitempty" json:"line_number,omitempty"`
	Description string   `yaml:"description" json:"description"`
	Suggestion  string   `yaml:"suggestion" json:"suggestion"`
	Context     string   `yaml:"context" json:"context"`
}

// key identifies a detection for de-duplication within a session.
func (d Detection) key() string {
	ctx := d.Context
	if len(ctx) > 50 {
		ctx = ctx[:50]
	}
	return fmt.Sprintf("%s:%d:%s", d.ErrorType, d.Line, ctx)
}

// contextRadius is how many lines around a single-line hit are kept as context.
const contextRadius = 2

// Detector scans text for known error patterns. It remembers what it has
// already reported per session so repeated output is reported once.
type Detector struct {
	patterns []*Pattern

	mu   sync.Mutex
	seen map[string]map[string]bool
}

// NewDetector creates a detector. A nil or empty pattern list uses DefaultPatterns.
func NewDetector(patterns []*Pattern) *Detector {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Detector{patterns: patterns, seen: make(map[string]map[string]bool)}
}

// Detect returns every match in text. Multiline patterns are reported first,
// then single-line matches in line order.
func (d *Detector) Detect(text string) []Detection {
	var found []Detection

	for _, p := range d.patterns {
		if !p.Multiline {
			continue
		}
		if m := p.Regexp.FindStringSubmatch(text); m != nil {
			found = append(found, p.detection(m, m[0]))
		}
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		for _, p := range d.patterns {
			if p.Multiline {
				continue
			}
			m := p.Regexp.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			start := max(0, i-contextRadius)
			end := min(len(lines), i+contextRadius+1)
			found = append(found, p.detection(m, strings.Join(lines[start:end], "\n")))
		}
	}
	return found
}

// DetectNew is Detect without the detections already reported for sessionID.
func (d *Detector) DetectNew(text, sessionID string) []Detection {
	all := d.Detect(text)

	d.mu.Lock()
	defer d.mu.Unlock()

	seen := d.seen[sessionID]
	if seen == nil {
		seen = make(map[string]bool)
		d.seen[sessionID] = seen
	}

	var fresh []Detection
	for _, det := range all {
		k := det.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		fresh = append(fresh, det)
	}
	return fresh
}

// Forget drops what was reported for sessionID.
func (d *Detector) Forget(sessionID string) {
	d.mu.Lock()
	delete(d.seen, sessionID)
	d.mu.Unlock()
}

func (p *Pattern) detection(match []string, context string) Detection {
	return Detection{
		ErrorType:   p.Name,
		Category:    p.Category,
		Severity:    p.Severity,
		Line:        p.line(match),
		Description: p.Description,
		Suggestion:  p.suggest(match),
		Context:     context,
	}
}

// Prioritize sorts detections by severity, then category importance. The
// order within a rank is preserved. The input is not modified.
func Prioritize(dets []Detection) []Detection {
	out := make([]Detection, len(dets))
	copy(out, dets)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Severity.rank(), out[j].Severity.rank()
		if si != sj {
			return si < sj
		}
		return out[i].Category.rank() < out[j].Category.rank()
	})
	return out
}

var (
	secretAssignment = regexp.MustCompile(`(?i)(password|api_key|secret|token)\s*=\s*["'][^"']+["']`)
	printCall        = regexp.MustCompile(`^\s*print\s*\(`)
	bareExcept       = regexp.MustCompile(`^\s*except\s*:`)
)

// ScanFile looks for code smells in a source file: hardcoded secrets, print
// calls outside tests and bare except clauses. Lines are 1-based.
func ScanFile(content, path string) []Detection {
	var found []Detection
	isTest := strings.HasSuffix(path, "_test.py")

	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if secretAssignment.MatchString(line) {
			found = append(found, Detection{
				ErrorType:   "potential_hardcoded_secret",
				File:        path,
				Category:    CategorySecurity,
				Severity:    SeverityWarning,
				Line:        i + 1,
				Description: "Potential hardcoded secret",
				Suggestion:  "Consider moving this to environment variables",
				Context:     trimmed,
			})
		}
		if !isTest && printCall.MatchString(line) {
			found = append(found, Detection{
				ErrorType:   "print_statement",
				File:        path,
				Category:    CategoryStyle,
				Severity:    SeverityInfo,
				Line:        i + 1,
				Description: "Print statement in code",
				Suggestion:  "Consider using logging instead of print",
				Context:     trimmed,
			})
		}
		if bareExcept.MatchString(line) {
			found = append(found, Detection{
				ErrorType:   "bare_except",
				File:        path,
				Category:    CategoryStyle,
				Severity:    SeverityWarning,
				Line:        i + 1,
				Description: "Bare except clause",
				Suggestion:  "Specify exception type: except Exception:",
				Context:     trimmed,
			})
		}
	}
	return found
}

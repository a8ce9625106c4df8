// Package context provides intent-aware project context assembly for LLM questions.
// A query is classified into an intent, keywords and technical terms are extracted,
// project files are scored by relevance, and the best files are packed into a
// context string that never exceeds the configured size budget.
package context

import (
	"fmt"
	"strings"
	"time"
)

// Intent is the coarse category of what a query wants to accomplish.
type Intent string

const (
	IntentDebug    Intent = "debug"
	IntentFeature  Intent = "feature"
	IntentExplain  Intent = "explain"
	IntentRefactor Intent = "refactor"
	IntentTest     Intent = "test"
	IntentDocument Intent = "document"
	IntentConfig   Intent = "config"
	IntentGeneral  Intent = "general"
)

// AllIntents lists every intent in declaration order. Detection ties are
// resolved in favor of the intent declared first.
var AllIntents = []Intent{
	IntentDebug,
	IntentFeature,
	IntentExplain,
	IntentRefactor,
	IntentTest,
	IntentDocument,
	IntentConfig,
	IntentGeneral,
}

// ParseIntent parses an intent name (case-insensitive).
func ParseIntent(s string) (Intent, error) {
	name := Intent(strings.ToLower(strings.TrimSpace(s)))
	for _, intent := range AllIntents {
		if intent == name {
			return intent, nil
		}
	}
	return "", fmt.Errorf("invalid intent: %q", s)
}

// String returns the intent name.
func (i Intent) String() string {
	return string(i)
}

// FileRelevance is a file's relevance to a query, produced fresh by each scoring pass.
type FileRelevance struct {
	// Path is relative to the project root
	Path string `yaml:"path" json:"path"`

	// Score is the sum of every matching rule's contribution
	Score float64 `yaml:"score" json:"score"`

	// Reasons holds one human-readable entry per contributing rule, in rule order
	Reasons []string `yaml:"reasons" json:"reasons"`

	Size         int64     `yaml:"size" json:"size"`
	LastModified time.Time `yaml:"last_modified" json:"last_modified"`
}

// QueryAnalysis is the result of analyzing a query.
type QueryAnalysis struct {
	Intent    Intent             `yaml:"intent" json:"intent"`
	Keywords  []string           `yaml:"keywords" json:"keywords"`
	TechTerms map[string]float64 `yaml:"tech_terms" json:"tech_terms"`
}

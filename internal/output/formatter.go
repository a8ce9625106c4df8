package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/codebuddy/buddy/internal/errpattern"
)

// Formatter is the interface for formatting command output in different formats.
type Formatter interface {
	// Format formats an output value according to the specified density level.
	// Returns the formatted string or an error.
	Format(v interface{}, density Density) (string, error)

	// FormatToWriter writes formatted output directly to a writer.
	FormatToWriter(w io.Writer, v interface{}, density Density) error
}

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Format formats a value as YAML.
func (f *YAMLFormatter) Format(v interface{}, density Density) (string, error) {
	var buf bytes.Buffer
	if err := f.FormatToWriter(&buf, v, density); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatToWriter writes YAML output to a writer.
func (f *YAMLFormatter) FormatToWriter(w io.Writer, v interface{}, density Density) error {
	// Apply density filtering before marshaling
	filtered := applyDensityFilter(v, density)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	return encoder.Encode(filtered)
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format formats a value as JSON.
func (f *JSONFormatter) Format(v interface{}, density Density) (string, error) {
	var buf bytes.Buffer
	if err := f.FormatToWriter(&buf, v, density); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatToWriter writes JSON output to a writer.
func (f *JSONFormatter) FormatToWriter(w io.Writer, v interface{}, density Density) error {
	// Apply density filtering before marshaling
	filtered := applyDensityFilter(v, density)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(filtered)
}

// TextFormatter renders outputs that implement Texter.
type TextFormatter struct{}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{}
}

// Format renders a value as text.
func (f *TextFormatter) Format(v interface{}, density Density) (string, error) {
	var buf bytes.Buffer
	if err := f.FormatToWriter(&buf, v, density); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatToWriter writes text output to a writer.
func (f *TextFormatter) FormatToWriter(w io.Writer, v interface{}, density Density) error {
	texter, ok := applyDensityFilter(v, density).(Texter)
	if !ok {
		return fmt.Errorf("text formatter does not support type %T", v)
	}
	_, err := io.WriteString(w, texter.Text())
	return err
}

// applyDensityFilter returns a copy of the output with fields above the
// density level cleared. The input is not modified.
func applyDensityFilter(v interface{}, density Density) interface{} {
	switch out := v.(type) {
	case *AnalysisOutput:
		filtered := *out
		if !density.IncludesTechTerms() {
			filtered.TechTerms = nil
		}
		if !density.IncludesIntentCounts() {
			filtered.IntentCounts = nil
		}
		return &filtered

	case *RankOutput:
		filtered := *out
		filtered.Files = make([]*RankedFile, len(out.Files))
		for i, f := range out.Files {
			file := *f
			effective := GetEffectiveDensity(density, f.Score)
			if !effective.IncludesReasons() {
				file.Reasons = nil
			}
			if !effective.IncludesFileStats() {
				file.Size = 0
				file.Modified = ""
			}
			filtered.Files[i] = &file
		}
		return &filtered

	case *ContextOutput:
		filtered := *out
		if density == DensitySparse {
			filtered.Content = ""
		}
		return &filtered

	case *SuggestionsOutput:
		filtered := *out
		if density == DensitySparse {
			filtered.Suggestions = make([]errpattern.Detection, len(out.Suggestions))
			for i, d := range out.Suggestions {
				d.Context = ""
				filtered.Suggestions[i] = d
			}
		}
		return &filtered

	default:
		return v
	}
}

// GetFormatter returns a formatter for the specified format.
func GetFormatter(format Format) (Formatter, error) {
	switch format {
	case FormatYAML:
		return NewYAMLFormatter(), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatText:
		return NewTextFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

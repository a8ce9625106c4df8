package output

import (
	"fmt"
	"strings"
)

// Format represents the output format type.
type Format string

const (
	// FormatYAML is the self-documenting YAML output
	FormatYAML Format = "yaml"

	// FormatJSON is the JSON output format
	FormatJSON Format = "json"

	// FormatText is plain text, the raw context for buddy context
	FormatText Format = "text"
)

// ParseFormat parses a format string into a Format value.
// Accepts: "yaml", "json", "text" (case-insensitive)
// Returns an error for invalid format values.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("invalid format: %q (expected yaml, json, or text)", s)
	}
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// IsStructured reports whether the format is YAML or JSON.
func (f Format) IsStructured() bool {
	return f == FormatYAML || f == FormatJSON
}

// Density represents the level of detail in output.
//   - Sparse: paths and scores only
//   - Medium: adds reasons and tech terms (default)
//   - Dense: adds sizes, modification times and intent counts
//   - Smart: per-file density chosen by score
type Density string

const (
	// DensitySparse provides minimal one-line entries
	// Example: src/auth.py: 15.0
	DensitySparse Density = "sparse"

	// DensityMedium provides balanced detail (default)
	DensityMedium Density = "medium"

	// DensityDense provides full detail
	DensityDense Density = "dense"

	// DensitySmart provides score-based density
	// Strong matches (score >= 20) get dense format
	// Normal matches (score >= 10) get medium format
	// Weak matches get sparse format
	DensitySmart Density = "smart"
)

// ParseDensity parses a density string into a Density value.
// Accepts: "sparse", "medium", "dense", "smart" (case-insensitive)
// Returns an error for invalid density values.
func ParseDensity(s string) (Density, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sparse":
		return DensitySparse, nil
	case "medium":
		return DensityMedium, nil
	case "dense":
		return DensityDense, nil
	case "smart":
		return DensitySmart, nil
	default:
		return "", fmt.Errorf("invalid density: %q (expected sparse, medium, dense, or smart)", s)
	}
}

// String returns the string representation of the density.
func (d Density) String() string {
	return string(d)
}

// IncludesReasons returns true if this density level includes match reasons.
func (d Density) IncludesReasons() bool {
	return d == DensityMedium || d == DensityDense || d == DensitySmart
}

// IncludesTechTerms returns true if this density level includes tech term confidences.
func (d Density) IncludesTechTerms() bool {
	return d == DensityMedium || d == DensityDense || d == DensitySmart
}

// IncludesFileStats returns true if this density level includes sizes and modification times.
func (d Density) IncludesFileStats() bool {
	return d == DensityDense
}

// IncludesIntentCounts returns true if this density level includes per-intent pattern counts.
func (d Density) IncludesIntentCounts() bool {
	return d == DensityDense
}

// DefaultFormat is the default structured output format.
const DefaultFormat = FormatYAML

// DefaultDensity is the default density level when none is specified.
const DefaultDensity = DensityMedium

// ValidateFormat checks if a format value is valid.
func ValidateFormat(f Format) bool {
	switch f {
	case FormatYAML, FormatJSON, FormatText:
		return true
	default:
		return false
	}
}

// ValidateDensity checks if a density value is valid.
func ValidateDensity(d Density) bool {
	switch d {
	case DensitySparse, DensityMedium, DensityDense, DensitySmart:
		return true
	default:
		return false
	}
}

// GetEffectiveDensity returns the effective density for a file with the
// given relevance score when using smart density mode. For other modes,
// returns the same density.
//
// Smart mode rules:
//   - score >= 20: Dense (several independent matches)
//   - score >= 10: Medium
//   - score < 10: Sparse
func GetEffectiveDensity(d Density, score float64) Density {
	if d != DensitySmart {
		return d
	}

	if score >= 20 {
		return DensityDense
	} else if score >= 10 {
		return DensityMedium
	}
	return DensitySparse
}

package output

import (
	"testing"
)

// TestGetFormatter tests that GetFormatter returns the matching formatter
func TestGetFormatter(t *testing.T) {
	tests := []struct {
		format Format
		check  func(Formatter) bool
	}{
		{FormatYAML, func(f Formatter) bool { _, ok := f.(*YAMLFormatter); return ok }},
		{FormatJSON, func(f Formatter) bool { _, ok := f.(*JSONFormatter); return ok }},
		{FormatText, func(f Formatter) bool { _, ok := f.(*TextFormatter); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			formatter, err := GetFormatter(tt.format)
			if err != nil {
				t.Fatalf("GetFormatter(%s) failed: %v", tt.format, err)
			}
			if !tt.check(formatter) {
				t.Errorf("unexpected formatter type %T", formatter)
			}
		})
	}
}

// TestGetFormatterInvalid tests that GetFormatter returns error for invalid format
func TestGetFormatterInvalid(t *testing.T) {
	_, err := GetFormatter(Format("invalid"))
	if err == nil {
		t.Error("GetFormatter should return error for invalid format")
	}
}

// TestParseFormat tests parsing format strings
func TestParseFormat(t *testing.T) {
	tests := []struct {
		input     string
		expected  Format
		expectErr bool
	}{
		{"yaml", FormatYAML, false},
		{"YAML", FormatYAML, false},
		{" json ", FormatJSON, false},
		{"text", FormatText, false},
		{"txt", FormatText, false},
		{"cgf", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseFormat(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Errorf("ParseFormat(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseFormat(%q) unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("ParseFormat(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

// TestFormatIsStructured tests the IsStructured() method
func TestFormatIsStructured(t *testing.T) {
	if !FormatYAML.IsStructured() || !FormatJSON.IsStructured() {
		t.Error("yaml and json should be structured")
	}
	if FormatText.IsStructured() {
		t.Error("text should not be structured")
	}
}

// TestParseDensity tests parsing density strings
func TestParseDensity(t *testing.T) {
	tests := []struct {
		input     string
		expected  Density
		expectErr bool
	}{
		{"sparse", DensitySparse, false},
		{"Medium", DensityMedium, false},
		{"DENSE", DensityDense, false},
		{"smart", DensitySmart, false},
		{"verbose", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseDensity(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Errorf("ParseDensity(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseDensity(%q) unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("ParseDensity(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

// TestDensityIncludes tests the per-density detail switches
func TestDensityIncludes(t *testing.T) {
	tests := []struct {
		density      Density
		reasons      bool
		techTerms    bool
		fileStats    bool
		intentCounts bool
	}{
		{DensitySparse, false, false, false, false},
		{DensityMedium, true, true, false, false},
		{DensityDense, true, true, true, true},
		{DensitySmart, true, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.density.String(), func(t *testing.T) {
			if got := tt.density.IncludesReasons(); got != tt.reasons {
				t.Errorf("IncludesReasons() = %v, expected %v", got, tt.reasons)
			}
			if got := tt.density.IncludesTechTerms(); got != tt.techTerms {
				t.Errorf("IncludesTechTerms() = %v, expected %v", got, tt.techTerms)
			}
			if got := tt.density.IncludesFileStats(); got != tt.fileStats {
				t.Errorf("IncludesFileStats() = %v, expected %v", got, tt.fileStats)
			}
			if got := tt.density.IncludesIntentCounts(); got != tt.intentCounts {
				t.Errorf("IncludesIntentCounts() = %v, expected %v", got, tt.intentCounts)
			}
		})
	}
}

// TestGetEffectiveDensity tests smart density by score
func TestGetEffectiveDensity(t *testing.T) {
	tests := []struct {
		density  Density
		score    float64
		expected Density
	}{
		{DensitySmart, 35, DensityDense},
		{DensitySmart, 20, DensityDense},
		{DensitySmart, 15, DensityMedium},
		{DensitySmart, 10, DensityMedium},
		{DensitySmart, 5, DensitySparse},
		{DensityMedium, 100, DensityMedium},
		{DensitySparse, 100, DensitySparse},
	}

	for _, tt := range tests {
		if got := GetEffectiveDensity(tt.density, tt.score); got != tt.expected {
			t.Errorf("GetEffectiveDensity(%s, %.0f) = %s, expected %s", tt.density, tt.score, got, tt.expected)
		}
	}
}

// TestValidate tests format and density validation
func TestValidate(t *testing.T) {
	for _, f := range []Format{FormatYAML, FormatJSON, FormatText} {
		if !ValidateFormat(f) {
			t.Errorf("ValidateFormat(%s) should be true", f)
		}
	}
	if ValidateFormat("cgf") {
		t.Error("ValidateFormat(cgf) should be false")
	}

	for _, d := range []Density{DensitySparse, DensityMedium, DensityDense, DensitySmart} {
		if !ValidateDensity(d) {
			t.Errorf("ValidateDensity(%s) should be true", d)
		}
	}
	if ValidateDensity("full") {
		t.Error("ValidateDensity(full) should be false")
	}
}

// TestDefaultConstants tests the default values
func TestDefaultConstants(t *testing.T) {
	if DefaultFormat != FormatYAML {
		t.Errorf("DefaultFormat = %v, expected %v", DefaultFormat, FormatYAML)
	}
	if DefaultDensity != DensityMedium {
		t.Errorf("DefaultDensity = %v, expected %v", DefaultDensity, DensityMedium)
	}
}

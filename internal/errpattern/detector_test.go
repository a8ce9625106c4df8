package errpattern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantType   string
		wantSev    Severity
		wantCat    Category
		wantLine   int
		suggestion string
	}{
		{
			name: "missing module",
			text: "Traceback (most recent call last):\n" +
				"  File \"app.py\", line 12, in <module>\n" +
				"    main()\n" +
				"ModuleNotFoundError: No module named 'requests'",
			wantType:   "import_error",
			wantSev:    SeverityError,
			wantCat:    CategoryImport,
			suggestion: "Install missing module: pip install requests",
		},
		{
			name: "syntax error with caret",
			text: "  File \"src/parser.py\", line 7\n" +
				"    def parse(x\n" +
				"              ^\n" +
				"SyntaxError: '(' was never closed",
			wantType:   "python_syntax_error",
			wantSev:    SeverityError,
			wantCat:    CategorySyntax,
			wantLine:   7,
			suggestion: "Fix syntax error in src/parser.py at line 7: SyntaxError - '(' was never closed",
		},
		{
			name:       "missing key",
			text:       "KeyError: 'user_id'",
			wantType:   "key_error",
			wantSev:    SeverityError,
			wantCat:    CategoryRuntime,
			suggestion: "Use dict.get('user_id', default) or check if 'user_id' in dict",
		},
		{
			name:       "secret in output",
			text:       `API_KEY = "sk-123"`,
			wantType:   "hardcoded_secret",
			wantSev:    SeverityCritical,
			wantCat:    CategorySecurity,
			suggestion: "Move API_KEY to environment variable or config file",
		},
		{
			name:       "operand types",
			text:       "TypeError: unsupported operand type(s) for +: 'int' and 'str'",
			wantType:   "type_error_operation",
			wantSev:    SeverityError,
			wantCat:    CategoryType,
			suggestion: "Cannot use + between int and str - ensure compatible types",
		},
		{
			name:       "pytest failure",
			text:       "FAILED tests/test_auth.py::test_login - assert 401 == 200",
			wantType:   "pytest_failed",
			wantSev:    SeverityWarning,
			wantCat:    CategoryRuntime,
			suggestion: "Test tests/test_auth.py::test_login failed: assert 401 == 200",
		},
	}

	d := NewDetector(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := d.Detect(tt.text)
			require.Len(t, found, 1)
			got := found[0]
			assert.Equal(t, tt.wantType, got.ErrorType)
			assert.Equal(t, tt.wantSev, got.Severity)
			assert.Equal(t, tt.wantCat, got.Category)
			assert.Equal(t, tt.wantLine, got.Line)
			assert.Equal(t, tt.suggestion, got.Suggestion)
		})
	}
}

func TestDetectKeepsSurroundingLines(t *testing.T) {
	text := "one\ntwo\nthree\nZeroDivisionError: division by zero\nfive\nsix\nseven"

	found := NewDetector(nil).Detect(text)
	require.Len(t, found, 1)
	assert.Equal(t, "two\nthree\nZeroDivisionError: division by zero\nfive\nsix", found[0].Context)
}

func TestDetectCleanOutput(t *testing.T) {
	assert.Empty(t, NewDetector(nil).Detect("$ make test\nok  \tall tests passed\n"))
}

func TestDetectNewReportsOncePerSession(t *testing.T) {
	d := NewDetector(nil)
	text := "NameError: name 'foo' is not defined\n"

	assert.Len(t, d.DetectNew(text, "s1"), 1)
	assert.Empty(t, d.DetectNew(text, "s1"))
	assert.Len(t, d.DetectNew(text, "s2"), 1)

	d.Forget("s1")
	assert.Len(t, d.DetectNew(text, "s1"), 1)
}

func TestPrioritize(t *testing.T) {
	in := []Detection{
		{ErrorType: "assertion_error", Severity: SeverityWarning, Category: CategoryRuntime},
		{ErrorType: "import_error", Severity: SeverityError, Category: CategoryImport},
		{ErrorType: "hardcoded_secret", Severity: SeverityCritical, Category: CategorySecurity},
		{ErrorType: "key_error", Severity: SeverityError, Category: CategoryRuntime},
		{ErrorType: "name_error", Severity: SeverityError, Category: CategoryRuntime},
	}

	got := Prioritize(in)

	var order []string
	for _, d := range got {
		order = append(order, d.ErrorType)
	}
	assert.Equal(t, []string{"hardcoded_secret", "key_error", "name_error", "import_error", "assertion_error"}, order)
	assert.Equal(t, "assertion_error", in[0].ErrorType, "input must not be reordered")
}

func TestScanFile(t *testing.T) {
	content := strings.Join([]string{
		"import os",
		`password = "hunter2"`,
		`print("debug")`,
		"try:",
		"    run()",
		"except:",
		"    pass",
	}, "\n")

	found := ScanFile(content, "app.py")
	require.Len(t, found, 3)

	assert.Equal(t, "potential_hardcoded_secret", found[0].ErrorType)
	assert.Equal(t, 2, found[0].Line)
	assert.Equal(t, "app.py", found[0].File)
	assert.Equal(t, "print_statement", found[1].ErrorType)
	assert.Equal(t, 3, found[1].Line)
	assert.Equal(t, SeverityInfo, found[1].Severity)
	assert.Equal(t, "bare_except", found[2].ErrorType)
	assert.Equal(t, 6, found[2].Line)
	assert.Equal(t, "except:", found[2].Context)

	inTest := ScanFile(content, "app_test.py")
	require.Len(t, inTest, 2)
	for _, d := range inTest {
		assert.NotEqual(t, "print_statement", d.ErrorType)
	}
}

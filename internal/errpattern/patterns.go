// Package errpattern recognizes well-known errors in terminal output and
// turns them into fix suggestions.
package errpattern

import (
	"regexp"
	"strconv"
	"strings"
)

// Severity ranks how urgent a detection is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// rank orders severities, most urgent first.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityError:
		return 1
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 3
	}
	return 999
}

// Category groups detections by kind of problem.
type Category string

const (
	CategorySyntax      Category = "syntax"
	CategoryRuntime     Category = "runtime"
	CategoryImport      Category = "import"
	CategoryType        Category = "type"
	CategorySecurity    Category = "security"
	CategoryPerformance Category = "performance"
	CategoryStyle       Category = "style"
)

// rank orders categories by importance, security first.
func (c Category) rank() int {
	switch c {
	case CategorySecurity:
		return 0
	case CategoryRuntime:
		return 1
	case CategorySyntax:
		return 2
	case CategoryType:
		return 3
	case CategoryImport:
		return 4
	case CategoryPerformance:
		return 5
	case CategoryStyle:
		return 6
	}
	return 999
}

// Pattern is one recognizable error. Suggestion may reference capture
// groups by the names in Groups, written as {name}.
type Pattern struct {
	Name        string
	Category    Category
	Severity    Severity
	Regexp      *regexp.Regexp
	Description string
	Suggestion  string
	Groups      []string

	// Multiline patterns run over the whole text instead of line by line
	Multiline bool
}

// suggest fills the suggestion template from a submatch slice.
func (p *Pattern) suggest(match []string) string {
	if len(p.Groups) == 0 || len(match) < 2 {
		return p.Suggestion
	}
	pairs := make([]string, 0, 2*len(p.Groups))
	for i, name := range p.Groups {
		if i+1 < len(match) {
			pairs = append(pairs, "{"+name+"}", match[i+1])
		}
	}
	return strings.NewReplacer(pairs...).Replace(p.Suggestion)
}

// line returns the value of the "line" group, or 0.
func (p *Pattern) line(match []string) int {
	for i, name := range p.Groups {
		if name != "line" || i+1 >= len(match) {
			continue
		}
		n, err := strconv.Atoi(match[i+1])
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// DefaultPatterns covers common Python tracebacks, test failures and
// hardcoded secrets.
var DefaultPatterns = []*Pattern{
	{
		Name:        "python_syntax_error",
		Category:    CategorySyntax,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`(?s)File "([^"]+)", line (\d+).*?\^.*?(\w+Error): ([^\n]+)`),
		Description: "Python syntax error detected",
		Suggestion:  "Fix syntax error in {file} at line {line}: {error_type} - {message}",
		Groups:      []string{"file", "line", "error_type", "message"},
		Multiline:   true,
	},
	{
		Name:        "import_error",
		Category:    CategoryImport,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`ModuleNotFoundError: No module named ['"]([^'"]+)['"]`),
		Description: "Missing module import",
		Suggestion:  "Install missing module: pip install {module}",
		Groups:      []string{"module"},
	},
	{
		Name:        "import_attribute_error",
		Category:    CategoryImport,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`ImportError: cannot import name ['"]([^'"]+)['"] from ['"]([^'"]+)['"]`),
		Description: "Cannot import specific attribute",
		Suggestion:  "Check if '{name}' exists in module '{module}' or fix the import statement",
		Groups:      []string{"name", "module"},
	},
	{
		Name:        "type_error_none",
		Category:    CategoryType,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`AttributeError: 'NoneType' object has no attribute ['"]([^'"]+)['"]`),
		Description: "Attempting to access attribute on None",
		Suggestion:  "Add null check before accessing '.{attribute}' - the object might be None",
		Groups:      []string{"attribute"},
	},
	{
		Name:        "type_error_operation",
		Category:    CategoryType,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`TypeError: unsupported operand type\(s\) for ([^:]+): '([^']+)' and '([^']+)'`),
		Description: "Type mismatch in operation",
		Suggestion:  "Cannot use {operation} between {type1} and {type2} - ensure compatible types",
		Groups:      []string{"operation", "type1", "type2"},
	},
	{
		Name:        "division_by_zero",
		Category:    CategoryRuntime,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`ZeroDivisionError: division by zero`),
		Description: "Division by zero error",
		Suggestion:  "Add check for zero before division: if denominator != 0:",
	},
	{
		Name:        "index_error",
		Category:    CategoryRuntime,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`IndexError: list index out of range`),
		Description: "List index out of range",
		Suggestion:  "Check list length before accessing: if index < len(list):",
	},
	{
		Name:        "key_error",
		Category:    CategoryRuntime,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`KeyError: ['"]([^'"]+)['"]`),
		Description: "Dictionary key not found",
		Suggestion:  "Use dict.get('{key}', default) or check if '{key}' in dict",
		Groups:      []string{"key"},
	},
	{
		Name:        "hardcoded_secret",
		Category:    CategorySecurity,
		Severity:    SeverityCritical,
		Regexp:      regexp.MustCompile(`(?i)(password|api_key|secret|token)\s*=\s*["']([^"']+)["']`),
		Description: "Hardcoded secret detected",
		Suggestion:  "Move {secret_type} to environment variable or config file",
		Groups:      []string{"secret_type", "value"},
	},
	{
		Name:        "memory_error",
		Category:    CategoryPerformance,
		Severity:    SeverityCritical,
		Regexp:      regexp.MustCompile(`MemoryError`),
		Description: "Out of memory error",
		Suggestion:  "Optimize memory usage: process data in chunks, use generators, or increase memory limit",
	},
	{
		Name:        "indentation_error",
		Category:    CategorySyntax,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`IndentationError: (.+)`),
		Description: "Indentation error",
		Suggestion:  "Fix indentation: {message}",
		Groups:      []string{"message"},
	},
	{
		Name:        "name_error",
		Category:    CategoryRuntime,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`NameError: name ['"]([^'"]+)['"] is not defined`),
		Description: "Undefined variable",
		Suggestion:  "Variable '{name}' is not defined - check spelling or import it",
		Groups:      []string{"name"},
	},
	{
		Name:        "file_not_found",
		Category:    CategoryRuntime,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`FileNotFoundError: \[Errno 2\] No such file or directory: ['"]([^'"]+)['"]`),
		Description: "File not found",
		Suggestion:  "File '{file}' not found - check path or create the file",
		Groups:      []string{"file"},
	},
	{
		Name:        "permission_denied",
		Category:    CategoryRuntime,
		Severity:    SeverityError,
		Regexp:      regexp.MustCompile(`PermissionError: \[Errno 13\] Permission denied: ['"]([^'"]+)['"]`),
		Description: "Permission denied",
		Suggestion:  "Permission denied for '{file}' - check file permissions or run with appropriate privileges",
		Groups:      []string{"file"},
	},
	{
		Name:        "assertion_error",
		Category:    CategoryRuntime,
		Severity:    SeverityWarning,
		Regexp:      regexp.MustCompile(`AssertionError: (.+)`),
		Description: "Test assertion failed",
		Suggestion:  "Assertion failed: {message} - update test or fix implementation",
		Groups:      []string{"message"},
	},
	{
		Name:        "pytest_failed",
		Category:    CategoryRuntime,
		Severity:    SeverityWarning,
		Regexp:      regexp.MustCompile(`FAILED (.+) - (.+)`),
		Description: "Pytest test failed",
		Suggestion:  "Test {test} failed: {reason}",
		Groups:      []string{"test", "reason"},
	},
}

package exclude

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// DefaultDirectories are directory names skipped wherever they appear.
var DefaultDirectories = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	"node_modules": true,
	".venv":        true,
	"venv":         true,
	".buddy":       true,
}

// Matcher combines the fixed directory names, auto-detected dependency
// directories and the dotfile rule into one walk filter.
type Matcher struct {
	auto *AutoExcludeResult
}

// NewMatcher builds a matcher for the given project root.
func NewMatcher(projectRoot string) *Matcher {
	return &Matcher{auto: DetectAutoExcludes(projectRoot)}
}

// AutoExcluded returns the auto-detected directories and their reasons.
func (m *Matcher) AutoExcluded() *AutoExcludeResult {
	return m.auto
}

// SkipDir reports whether a directory (relative, slash-separated) should not be walked.
// Dot-directories (.pytest_cache, .mypy_cache, .idea) are always skipped.
func (m *Matcher) SkipDir(relPath string) bool {
	name := relPath
	if i := strings.LastIndex(relPath, "/"); i >= 0 {
		name = relPath[i+1:]
	}
	return DefaultDirectories[name] || strings.HasPrefix(name, ".") || m.auto.covers(relPath)
}

// SkipFile reports whether a file (relative, slash-separated) should be ignored.
// Dotfiles are always ignored.
func (m *Matcher) SkipFile(relPath string) bool {
	name := relPath
	if i := strings.LastIndex(relPath, "/"); i >= 0 {
		name = relPath[i+1:]
	}
	return strings.HasPrefix(name, ".")
}

// Walk visits every non-excluded regular file under root in lexical order,
// passing its slash-separated path relative to root. Unreadable directories
// are skipped.
func (m *Matcher) Walk(root string, fn func(relPath string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if m.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || m.SkipFile(rel) {
			return nil
		}
		return fn(rel, d)
	})
}

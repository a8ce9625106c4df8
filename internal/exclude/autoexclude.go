// Package exclude decides which parts of a project tree are never offered as
// context: version-control metadata, caches, dependency directories, virtual
// environments and dotfiles.
package exclude

import (
	"os"
	"path/filepath"
	"strings"
)

// AutoExcludeResult contains the directories to exclude and why.
type AutoExcludeResult struct {
	// Directories to exclude (relative to project root, slash-separated)
	Directories []string
	// Reasons maps each directory to why it was excluded
	Reasons map[string]string
}

// marker ties a project manifest to the dependency directory it implies.
type marker struct {
	// sibling is the directory next to the manifest; empty means the manifest's own directory
	sibling string
	// evidence must exist inside the directory; empty means the directory itself must exist
	evidence string
	reason   string
}

var markers = map[string]marker{
	"Cargo.toml":    {sibling: "target", reason: "Rust build artifacts (Cargo.toml detected)"},
	"package.json":  {sibling: "node_modules", reason: "Node.js dependencies (package.json detected)"},
	"go.mod":        {sibling: "vendor", evidence: "modules.txt", reason: "Go vendored dependencies (vendor/modules.txt detected)"},
	"composer.json": {sibling: "vendor", evidence: "autoload.php", reason: "PHP Composer dependencies (vendor/autoload.php detected)"},
	"pyvenv.cfg":    {reason: "Python virtual environment (pyvenv.cfg detected)"},
}

// DetectAutoExcludes scans the project root for dependency directories that should be excluded.
// Detection is by manifest presence only, at any depth, so nested projects are covered.
func DetectAutoExcludes(projectRoot string) *AutoExcludeResult {
	result := &AutoExcludeResult{
		Directories: []string{},
		Reasons:     make(map[string]string),
	}

	_ = filepath.WalkDir(projectRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || path == projectRoot {
			return nil
		}

		relPath, err := filepath.Rel(projectRoot, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if result.covers(relPath) || DefaultDirectories[d.Name()] {
				return filepath.SkipDir
			}
			if d.Name() == "target" || d.Name() == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}

		m, ok := markers[d.Name()]
		if !ok {
			return nil
		}

		relDir := filepath.ToSlash(filepath.Dir(relPath))
		candidate := relDir
		if m.sibling != "" {
			candidate = joinRel(relDir, m.sibling)
		}
		if candidate == "." || contains(result.Directories, candidate) {
			return nil
		}

		absCandidate := filepath.Join(projectRoot, filepath.FromSlash(candidate))
		present := dirExists(absCandidate)
		if m.evidence != "" {
			present = fileExists(filepath.Join(absCandidate, m.evidence))
		}
		if present {
			result.Directories = append(result.Directories, candidate)
			result.Reasons[candidate] = m.reason
		}
		return nil
	})

	return result
}

// covers reports whether relPath is, or lives under, an excluded directory.
func (r *AutoExcludeResult) covers(relPath string) bool {
	for _, dir := range r.Directories {
		if relPath == dir || strings.HasPrefix(relPath, dir+"/") {
			return true
		}
	}
	return false
}

func joinRel(dir, name string) string {
	if dir == "." {
		return name
	}
	return dir + "/" + name
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// contains checks if a string is in a slice.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Package blob flattens a whole repository into one text document. It is the
// context used when smart context selection is switched off.
package blob

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	cxcontext "github.com/codebuddy/buddy/internal/context"
)

// ExcludePatterns are path substrings that keep a file out of the blob.
var ExcludePatterns = []string{
	".buddy/",
	"__pycache__/",
	".git/",
	"node_modules/",
	".venv/",
	"venv/",
	"env/",
	".env",
	".pyc",
}

// sniffLen is how much of a file is inspected to decide if it is text.
const sniffLen = 1024

// Stats summarizes a generated blob.
type Stats struct {
	Files   int   `yaml:"files" json:"files"`
	Skipped int   `yaml:"skipped" json:"skipped"`
	Bytes   int64 `yaml:"bytes" json:"bytes"`
}

// Generator writes repository blobs.
type Generator struct {
	root   string
	lister cxcontext.Lister
	now    func() time.Time
	logger *zap.Logger
}

// NewGenerator creates a generator for the project root. A nil lister lists
// git-tracked files with a directory walk fallback.
func NewGenerator(root string, lister cxcontext.Lister, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lister == nil {
		lister = cxcontext.NewRepoLister(root, logger)
	}
	return &Generator{root: root, lister: lister, now: time.Now, logger: logger}
}

// Excluded reports whether a relative path matches an exclusion pattern.
func Excluded(relPath string) bool {
	for _, pattern := range ExcludePatterns {
		if strings.Contains(relPath, pattern) {
			return true
		}
	}
	return false
}

// IsText reports whether a file looks like text: no NUL byte and valid
// UTF-8 in its first kilobyte.
func IsText(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false
	}
	chunk := buf[:n]
	if bytes.IndexByte(chunk, 0) >= 0 {
		return false
	}
	// A multi-byte rune may straddle the cut
	if n == sniffLen {
		for i := len(chunk) - 1; i >= 0 && i >= len(chunk)-utf8.UTFMax; i-- {
			if utf8.RuneStart(chunk[i]) {
				if !utf8.FullRune(chunk[i:]) {
					chunk = chunk[:i]
				}
				break
			}
		}
	}
	return utf8.Valid(chunk)
}

// Write streams the blob to w.
func (g *Generator) Write(ctx context.Context, w io.Writer) (*Stats, error) {
	return g.write(ctx, w, "")
}

// String returns the blob as a string.
func (g *Generator) String(ctx context.Context) (string, error) {
	var sb strings.Builder
	if _, err := g.write(ctx, &sb, ""); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteFile writes the blob to path. The output file itself is left out when
// it lives inside the project.
func (g *Generator) WriteFile(ctx context.Context, path string) (*Stats, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create blob file: %w", err)
	}

	skip := ""
	if abs, err := filepath.Abs(path); err == nil {
		if root, err := filepath.Abs(g.root); err == nil {
			if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
				skip = filepath.ToSlash(rel)
			}
		}
	}

	stats, werr := g.write(ctx, f, skip)
	if cerr := f.Close(); werr == nil && cerr != nil {
		werr = fmt.Errorf("close blob file: %w", cerr)
	}
	if werr != nil {
		return nil, werr
	}
	return stats, nil
}

func (g *Generator) write(ctx context.Context, w io.Writer, skip string) (*Stats, error) {
	root, err := filepath.Abs(g.root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "=== PROJECT: %s ===\n", filepath.Base(root))
	fmt.Fprintf(bw, "=== Generated: %s ===\n", g.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(bw, "=== Root: %s ===\n\n", root)

	files := g.lister.ListFiles(ctx)
	sort.Strings(files)

	stats := &Stats{}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rel == skip || Excluded(rel) {
			stats.Skipped++
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if info, err := os.Stat(abs); err != nil || !info.Mode().IsRegular() || !IsText(abs) {
			stats.Skipped++
			continue
		}
		n := g.addFile(bw, abs, rel)
		stats.Files++
		stats.Bytes += n
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}

	g.logger.Info("generated repo blob",
		zap.String("root", root),
		zap.Int("files", stats.Files),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

// addFile frames one file. Read failures are noted inline rather than
// aborting the blob.
func (g *Generator) addFile(w *bufio.Writer, abs, rel string) int64 {
	fmt.Fprintf(w, "--- START FILE: %s ---\n", rel)

	data, err := os.ReadFile(abs)
	if err != nil {
		g.logger.Warn("could not read file", zap.String("path", rel), zap.Error(err))
		fmt.Fprintf(w, "[Could not read file: %v]\n", err)
		fmt.Fprintf(w, "--- END FILE: %s ---\n\n", rel)
		return 0
	}

	content := strings.ToValidUTF8(string(data), "�")
	w.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		w.WriteByte('\n')
	}
	fmt.Fprintf(w, "--- END FILE: %s ---\n\n", rel)
	return int64(len(data))
}

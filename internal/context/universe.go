package context

import (
	"bytes"
	gocontext "context"
	"io/fs"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/codebuddy/buddy/internal/exclude"
)

// Lister enumerates the candidate files of a project, relative to its root
// and slash-separated.
type Lister interface {
	ListFiles(ctx gocontext.Context) []string
}

// DefaultListTimeout bounds the git subprocess.
const DefaultListTimeout = 10 * time.Second

// RepoLister lists git-tracked files, falling back to a filtered directory
// walk when the root is not a repository or git is unavailable.
type RepoLister struct {
	root    string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRepoLister creates a lister for the project root.
func NewRepoLister(root string, logger *zap.Logger) *RepoLister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepoLister{root: root, timeout: DefaultListTimeout, logger: logger}
}

// ListFiles returns the project's candidate files. Enumeration failures are
// never surfaced; the worst case is an empty list.
func (l *RepoLister) ListFiles(ctx gocontext.Context) []string {
	files, err := l.gitFiles(ctx)
	if err == nil {
		return files
	}
	l.logger.Debug("git ls-files unavailable, walking directory",
		zap.String("root", l.root), zap.Error(err))
	return WalkFiles(l.root, l.logger)
}

func (l *RepoLister) gitFiles(ctx gocontext.Context) ([]string, error) {
	ctx, cancel := gocontext.WithTimeout(ctx, l.timeout)
	defer cancel()

	// -z keeps paths unquoted so non-ASCII names survive
	cmd := exec.CommandContext(ctx, "git", "ls-files", "-z")
	cmd.Dir = l.root
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var files []string
	for _, name := range bytes.Split(out, []byte{0}) {
		if len(name) > 0 {
			files = append(files, string(name))
		}
	}
	return files, nil
}

// WalkLister always walks the directory tree.
type WalkLister struct {
	Root   string
	Logger *zap.Logger
}

// ListFiles walks the root.
func (l WalkLister) ListFiles(ctx gocontext.Context) []string {
	return WalkFiles(l.Root, l.Logger)
}

// WalkFiles returns every non-excluded file under root in lexical order.
func WalkFiles(root string, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}
	var files []string
	err := exclude.NewMatcher(root).Walk(root, func(rel string, d fs.DirEntry) error {
		files = append(files, rel)
		return nil
	})
	if err != nil {
		logger.Warn("walk project files", zap.String("root", root), zap.Error(err))
	}
	return files
}

// StaticLister returns a fixed file list.
type StaticLister []string

// ListFiles returns the list.
func (s StaticLister) ListFiles(ctx gocontext.Context) []string {
	return []string(s)
}

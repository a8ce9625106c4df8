package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxFileSize caps the content of a created or updated file.
const DefaultMaxFileSize = 1024 * 1024

// Record describes one operation that was performed.
type Record struct {
	Operation    Operation `yaml:"operation" json:"operation"`
	Path         string    `yaml:"path" json:"path"`
	Description  string    `yaml:"description,omitempty" json:"description,omitempty"`
	OriginalSize int       `yaml:"original_size,omitempty" json:"original_size,omitempty"`
	NewSize      int       `yaml:"new_size,omitempty" json:"new_size,omitempty"`
}

// Result is the outcome of a plan. One failed command does not stop the
// others.
type Result struct {
	Success   bool     `yaml:"success" json:"success"`
	DryRun    bool     `yaml:"dry_run,omitempty" json:"dry_run,omitempty"`
	Performed []Record `yaml:"operations_performed" json:"operations_performed"`
	Errors    []string `yaml:"errors" json:"errors"`
	Created   []string `yaml:"files_created" json:"files_created"`
	Updated   []string `yaml:"files_updated" json:"files_updated"`
	Deleted   []string `yaml:"files_deleted" json:"files_deleted"`
}

// Text renders the result for display.
func (r *Result) Text() string {
	var sb strings.Builder
	verb := map[Operation]string{OpCreate: "Created", OpUpdate: "Updated", OpDelete: "Deleted"}
	if r.DryRun {
		verb = map[Operation]string{OpCreate: "Would create", OpUpdate: "Would update", OpDelete: "Would delete"}
	}
	for _, rec := range r.Performed {
		fmt.Fprintf(&sb, "%s %s", verb[rec.Operation], rec.Path)
		if rec.Description != "" {
			fmt.Fprintf(&sb, " (%s)", rec.Description)
		}
		sb.WriteString("\n")
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&sb, "Error: %s\n", e)
	}
	if len(r.Performed) == 0 && len(r.Errors) == 0 {
		sb.WriteString("No file operations.\n")
	}
	return sb.String()
}

// Executor applies plans inside a project root.
type Executor struct {
	root        string
	maxFileSize int
	logger      *zap.Logger
}

// NewExecutor creates an executor for root. A maxFileSize of zero or less
// uses DefaultMaxFileSize.
func NewExecutor(root string, maxFileSize int, logger *zap.Logger) (*Executor, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{root: resolved, maxFileSize: maxFileSize, logger: logger}, nil
}

// Execute applies every command of the plan in order.
func (e *Executor) Execute(plan *Plan) *Result {
	return e.run(plan, false)
}

// DryRun checks every command of the plan without touching the disk.
func (e *Executor) DryRun(plan *Plan) *Result {
	return e.run(plan, true)
}

func (e *Executor) run(plan *Plan, dryRun bool) *Result {
	r := &Result{
		Success:   true,
		DryRun:    dryRun,
		Performed: []Record{},
		Errors:    []string{},
		Created:   []string{},
		Updated:   []string{},
		Deleted:   []string{},
	}
	for _, c := range plan.Files {
		rec, err := e.apply(c, dryRun)
		if err != nil {
			msg := fmt.Sprintf("Error with %s: %v", c.Path, err)
			e.logger.Error("file operation failed",
				zap.String("operation", string(c.Operation)),
				zap.String("path", c.Path),
				zap.Error(err))
			r.Errors = append(r.Errors, msg)
			r.Success = false
			continue
		}
		r.Performed = append(r.Performed, rec)
		switch rec.Operation {
		case OpCreate:
			r.Created = append(r.Created, rec.Path)
		case OpUpdate:
			r.Updated = append(r.Updated, rec.Path)
		case OpDelete:
			r.Deleted = append(r.Deleted, rec.Path)
		}
	}
	return r
}

func (e *Executor) apply(c Command, dryRun bool) (Record, error) {
	rel, err := CleanPath(c.Path)
	if err != nil {
		return Record{}, err
	}
	path, err := e.resolve(rel)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Operation: c.Operation, Path: rel, Description: c.Description}

	info, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return Record{}, statErr
	}

	switch c.Operation {
	case OpCreate:
		if exists && !c.Overwrite {
			return Record{}, fmt.Errorf("file already exists: %s", rel)
		}
		if err := e.checkContent(c); err != nil {
			return Record{}, err
		}
		if dryRun {
			return rec, nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return Record{}, fmt.Errorf("create directories: %w", err)
		}
		if err := os.WriteFile(path, []byte(c.Content), 0644); err != nil {
			return Record{}, err
		}
		e.logger.Info("created file", zap.String("path", rel))

	case OpUpdate:
		if !exists {
			return Record{}, fmt.Errorf("file does not exist: %s", rel)
		}
		if info.IsDir() {
			return Record{}, fmt.Errorf("cannot update directory: %s", rel)
		}
		if err := e.checkContent(c); err != nil {
			return Record{}, err
		}
		rec.OriginalSize = int(info.Size())
		rec.NewSize = len(c.Content)
		if dryRun {
			return rec, nil
		}
		if err := os.WriteFile(path, []byte(c.Content), info.Mode().Perm()); err != nil {
			return Record{}, err
		}
		e.logger.Info("updated file", zap.String("path", rel),
			zap.Int("original_size", rec.OriginalSize), zap.Int("new_size", rec.NewSize))

	case OpDelete:
		if !exists {
			return Record{}, fmt.Errorf("file does not exist: %s", rel)
		}
		if info.IsDir() {
			return Record{}, fmt.Errorf("cannot delete directory: %s", rel)
		}
		if dryRun {
			return rec, nil
		}
		if err := os.Remove(path); err != nil {
			return Record{}, err
		}
		e.logger.Info("deleted file", zap.String("path", rel))

	default:
		return Record{}, fmt.Errorf("unknown operation %q", c.Operation)
	}
	return rec, nil
}

func (e *Executor) checkContent(c Command) error {
	if c.Content == "" {
		return fmt.Errorf("content is required for %s operation", c.Operation)
	}
	if len(c.Content) > e.maxFileSize {
		return fmt.Errorf("file content exceeds maximum size of %d bytes", e.maxFileSize)
	}
	return nil
}

// resolve maps a clean relative path into the root. The deepest existing
// ancestor is resolved through symlinks so links cannot lead outside.
func (e *Executor) resolve(rel string) (string, error) {
	full := filepath.Join(e.root, filepath.FromSlash(rel))
	for p := full; ; p = filepath.Dir(p) {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			if !e.within(resolved) {
				return "", fmt.Errorf("%w: path escapes project root: %s", ErrUnsafePath, rel)
			}
			rest, err := filepath.Rel(p, full)
			if err != nil {
				return "", err
			}
			return filepath.Join(resolved, rest), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(p); lerr == nil {
			// dangling symlink
			return "", fmt.Errorf("%w: broken link in path: %s", ErrUnsafePath, rel)
		}
		if p == e.root || filepath.Dir(p) == p {
			return "", fmt.Errorf("%w: %s", ErrUnsafePath, rel)
		}
	}
}

func (e *Executor) within(path string) bool {
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Package diff reports what changed in a project recently, for inclusion in
// the RECENT CHANGES section of an assembled context.
package diff

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// FileChange represents a changed file from git.
type FileChange struct {
	// Path is the relative file path.
	Path string `yaml:"path" json:"path"`
	// Status is the change type: A (added), M (modified), D (deleted), R (renamed), ? (untracked).
	Status string `yaml:"status" json:"status"`
	// OldPath is set for renamed files.
	OldPath string `yaml:"old_path,omitempty" json:"old_path,omitempty"`
}

// DiffOptions configures git diff parsing.
type DiffOptions struct {
	// Staged only includes staged changes (git diff --cached).
	Staged bool
	// CommitRange specifies a commit range (e.g., "HEAD~3", "main..feature").
	CommitRange string
	// Path filters diff to specific path.
	Path string
}

// GitDiff runs git in a project root and parses what it reports.
type GitDiff struct {
	projectRoot string
}

// NewGitDiff creates a new GitDiff parser.
func NewGitDiff(projectRoot string) *GitDiff {
	return &GitDiff{
		projectRoot: projectRoot,
	}
}

func (gd *GitDiff) git(ctx context.Context, args ...string) (string, error) {
	// Unquoted paths keep non-ASCII names intact
	cmd := exec.CommandContext(ctx, "git", append([]string{"-c", "core.quotepath=off"}, args...)...)
	cmd.Dir = gd.projectRoot
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return string(out), nil
}

// GetChangedFiles returns files changed according to the diff options.
func (gd *GitDiff) GetChangedFiles(ctx context.Context, opts DiffOptions) ([]FileChange, error) {
	args := []string{"diff", "--name-status"}

	if opts.Staged {
		args = append(args, "--cached")
	} else if opts.CommitRange != "" {
		args = append(args, opts.CommitRange)
	}

	if opts.Path != "" {
		args = append(args, "--", opts.Path)
	}

	out, err := gd.git(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseNameStatus(out), nil
}

// GetUncommittedChanges returns all uncommitted changes: staged, unstaged and
// untracked. A file that is both staged and modified again reports its staged status.
func (gd *GitDiff) GetUncommittedChanges(ctx context.Context) ([]FileChange, error) {
	staged, err := gd.GetChangedFiles(ctx, DiffOptions{Staged: true})
	if err != nil {
		return nil, err
	}

	unstaged, err := gd.GetChangedFiles(ctx, DiffOptions{})
	if err != nil {
		return nil, err
	}

	untrackedOut, err := gd.git(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var result []FileChange

	for _, group := range [][]FileChange{staged, unstaged, parseUntracked(untrackedOut)} {
		for _, fc := range group {
			if seen[fc.Path] {
				continue
			}
			seen[fc.Path] = true
			result = append(result, fc)
		}
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// parseNameStatus parses git diff --name-status output.
func parseNameStatus(output string) []FileChange {
	var changes []FileChange

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			parts = strings.Fields(line)
		}
		if len(parts) < 2 {
			continue
		}

		status := parts[0]
		fc := FileChange{
			Path:   parts[1],
			Status: status[:1],
		}

		// Renames and copies carry a similarity score and two paths (R100 old new)
		if (strings.HasPrefix(status, "R") || strings.HasPrefix(status, "C")) && len(parts) >= 3 {
			fc.OldPath = parts[1]
			fc.Path = parts[2]
		}

		changes = append(changes, fc)
	}

	return changes
}

func parseUntracked(output string) []FileChange {
	var changes []FileChange
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			changes = append(changes, FileChange{Path: line, Status: "?"})
		}
	}
	return changes
}

// StatusDescription returns a human-readable description of a status code.
func StatusDescription(status string) string {
	switch status {
	case "A":
		return "added"
	case "M":
		return "modified"
	case "D":
		return "deleted"
	case "R":
		return "renamed"
	case "C":
		return "copied"
	case "U":
		return "unmerged"
	case "?":
		return "untracked"
	default:
		return "changed"
	}
}

// Render formats changes one per line, as "path status" or
// "old -> new renamed", for the RECENT CHANGES context section.
func Render(changes []FileChange) string {
	var sb strings.Builder
	for _, fc := range changes {
		if fc.OldPath != "" {
			fmt.Fprintf(&sb, "%s -> %s %s\n", fc.OldPath, fc.Path, StatusDescription(fc.Status))
			continue
		}
		fmt.Fprintf(&sb, "%s %s\n", fc.Path, StatusDescription(fc.Status))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

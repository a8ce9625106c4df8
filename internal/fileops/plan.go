// Package fileops applies file create, update and delete plans produced by
// the model, confined to the project directory.
package fileops

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Operation is the kind of change a command makes.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Command is one file operation.
type Command struct {
	Operation   Operation `yaml:"operation" json:"operation"`
	Path        string    `yaml:"path" json:"path"`
	Content     string    `yaml:"content,omitempty" json:"content,omitempty"`
	Description string    `yaml:"description" json:"description"`

	// Overwrite lets create replace an existing file
	Overwrite bool `yaml:"overwrite,omitempty" json:"overwrite,omitempty"`
}

// Plan is a set of file operations with a summary for the user.
type Plan struct {
	Files    []Command `yaml:"files" json:"files"`
	Summary  string    `yaml:"summary" json:"summary"`
	Warnings []string  `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}

var (
	// ErrUnsafePath is returned for paths outside the project or touching
	// protected files.
	ErrUnsafePath = errors.New("unsafe path")

	// ErrNoPlan is returned by ParsePlan when the text holds no JSON object.
	ErrNoPlan = errors.New("no file operation plan found")
)

// protectedPatterns may not appear anywhere in a target path.
var protectedPatterns = []string{".git/", ".env", ".ssh", "node_modules/", ".buddy/"}

// CleanPath validates a project-relative path and returns it without
// leading slashes.
func CleanPath(p string) (string, error) {
	p = strings.TrimLeft(strings.TrimSpace(p), "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	if strings.Contains(p, "..") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, p)
	}
	for _, pattern := range protectedPatterns {
		if strings.Contains(p+"/", pattern) {
			return "", fmt.Errorf("%w: cannot modify system files: %s", ErrUnsafePath, p)
		}
	}
	return p, nil
}

// Validate checks every command and cleans its path in place.
func (p *Plan) Validate() error {
	if len(p.Files) == 0 {
		return errors.New("plan has no file operations")
	}
	for i := range p.Files {
		c := &p.Files[i]
		if !c.Operation.Valid() {
			return fmt.Errorf("file %d: unknown operation %q", i+1, c.Operation)
		}
		clean, err := CleanPath(c.Path)
		if err != nil {
			return fmt.Errorf("file %d: %w", i+1, err)
		}
		c.Path = clean
	}
	return nil
}

// ParsePlan extracts the JSON plan from a model response. Markdown code
// fences and text around the object are ignored.
func ParsePlan(text string) (*Plan, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, ErrNoPlan
	}

	var plan Plan
	if err := json.Unmarshal([]byte(text[start:end+1]), &plan); err != nil {
		return nil, fmt.Errorf("parse file operation plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

var requestPhrases = []string{
	"create file", "make file", "generate file",
	"write file", "add file", "new file",
	"create documentation", "generate documentation",
	"write readme", "make readme", "create readme",
	"update file", "modify file", "change file",
	"delete file", "remove file",
	"generate config", "create config",
	"write test", "create test", "generate test",
	"create script", "write script", "generate script",
}

// DetectRequest reports whether a question asks for files to be written.
func DetectRequest(question string) bool {
	q := strings.ToLower(question)
	for _, phrase := range requestPhrases {
		if strings.Contains(q, phrase) {
			return true
		}
	}
	return false
}

// PlanInstructions ask the model to answer with a file operation plan.
const PlanInstructions = `### RESPONSE FORMAT ###
Respond with a single JSON object and nothing else:
{
  "files": [
    {
      "operation": "create" | "update" | "delete",
      "path": "path relative to the project root",
      "content": "full file content (create and update only)",
      "description": "what this file does or why the change is needed",
      "overwrite": false
    }
  ],
  "summary": "what the changes do",
  "warnings": ["anything the user should check"]
}
Paths must stay inside the project. Never touch .git, .env, .ssh or node_modules.`

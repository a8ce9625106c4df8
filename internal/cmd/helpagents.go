// Package cmd implements the help-agents command for buddy CLI.
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/mcp"
)

// helpAgentsCmd represents the help-agents command
var helpAgentsCmd = &cobra.Command{
	Use:   "help-agents",
	Short: "Output agent-optimized command reference",
	Long: `Output a concise command reference for AI agents.

This command outputs a curated reference sized for an agent's context window:
which buddy command answers which question, and the MCP tools that expose the
same capabilities.

Examples:
  buddy help-agents                # Markdown output (default)
  buddy help-agents --format json  # JSON output for parsing`,
	RunE: runHelpAgents,
}

func init() {
	rootCmd.AddCommand(helpAgentsCmd)
}

func runHelpAgents(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		data, err := json.MarshalIndent(agentReference(), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err := fmt.Fprint(out, generateAgentReference())
	return err
}

func generateAgentReference() string {
	return `# buddy Command Reference for AI Agents

> Ask for the context a question needs instead of reading the whole project.

## Quick Start Workflow

` + "```bash" + `
# 1. What kind of question is this?
buddy analyze "why does login return 500?"

# 2. Which files matter for it?
buddy rank "why does login return 500?" --top 10

# 3. The bounded context itself
buddy context --format text "why does login return 500?" --git-changes
` + "```" + `

---

## Essential Commands

### buddy context
Conversation, session log (debugging only), recent changes and ranked files,
never larger than max_context_size.

**Key flags:**
- ` + "`--session <id>`" + ` - Take conversation and terminal log from a stored session
- ` + "`--log <file>`" + ` - Terminal transcript
- ` + "`--git-changes`" + ` - Add uncommitted git changes
- ` + "`--format text`" + ` - Only the assembled context

### buddy rank
Files scored by keywords in names and paths, intent, technical terms and recency.
` + "`--density dense`" + ` adds size and modification time.

### buddy analyze
Intent (debug, feature, explain, refactor, test, config or general),
keywords and technical terms.

### buddy ask
One question straight to Gemini with smart context. Needs GEMINI_API_KEY.

### buddy suggestions
Fix suggestions for errors in a terminal transcript, most urgent first.
` + "`--log <file>`" + ` scans a transcript, ` + "`--scan <files>`" + ` checks source files.

### buddy apply
Create, update or delete files from a JSON plan, inside the project only.
` + "`--dry-run`" + ` validates without writing.

### buddy serve --mcp
MCP tools: ` + fmt.Sprint(mcp.AllTools) + `

---

## Global Flags
- ` + "`--format yaml|json|text`" + ` (default: yaml)
- ` + "`--density sparse|medium|dense|smart`" + ` (default: medium)
- ` + "`-C <dir>`" + ` - Project directory
`
}

// agentReference is the JSON form of the reference.
func agentReference() map[string]interface{} {
	return map[string]interface{}{
		"version": Version,
		"purpose": "Select and bound project context for questions about the current project.",
		"workflow": map[string]string{
			"1_classify": "buddy analyze \"<question>\"",
			"2_rank":     "buddy rank \"<question>\" --top 10",
			"3_context":  "buddy context --format text \"<question>\"",
		},
		"commands": map[string]interface{}{
			"context": map[string]interface{}{
				"purpose": "Size-bounded context for a question (MOST IMPORTANT)",
				"usage":   "buddy context \"<question>\"",
				"flags":   []string{"--session", "--log", "--changes", "--git-changes", "--conversation"},
			},
			"rank": map[string]interface{}{
				"purpose": "Project files ranked by relevance",
				"usage":   "buddy rank \"<question>\"",
				"flags":   []string{"--top"},
			},
			"analyze": map[string]interface{}{
				"purpose": "Intent, keywords and technical terms",
				"usage":   "buddy analyze \"<question>\"",
			},
			"ask": map[string]interface{}{
				"purpose": "One-shot answer from Gemini",
				"usage":   "buddy ask \"<question>\"",
				"flags":   []string{"--session", "--no-cache", "--apply", "--dry-run"},
			},
			"suggestions": map[string]interface{}{
				"purpose": "Fix suggestions for errors in terminal output",
				"usage":   "buddy suggestions --log <file>",
				"flags":   []string{"--log", "--scan", "--clear"},
			},
			"apply": map[string]interface{}{
				"purpose": "Apply a JSON file operation plan inside the project",
				"usage":   "buddy apply plan.json",
				"flags":   []string{"--dry-run"},
			},
			"diff": map[string]interface{}{
				"purpose": "Changed files feeding RECENT CHANGES",
				"usage":   "buddy diff [commit-range]",
				"flags":   []string{"--staged", "--path"},
			},
			"serve": map[string]interface{}{
				"purpose":   "MCP server for AI IDE integration",
				"usage":     "buddy serve --mcp",
				"flags":     []string{"--tools", "--timeout", "--list-tools", "--status", "--stop"},
				"mcp_tools": mcp.AllTools,
			},
		},
		"global_flags": map[string]string{
			"--format":  "yaml|json|text (default: yaml)",
			"--density": "sparse|medium|dense|smart (default: medium)",
			"--dir":     "Project directory",
			"--verbose": "Debug logging",
		},
	}
}

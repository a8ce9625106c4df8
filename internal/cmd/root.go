// Package cmd contains all CLI commands for buddy.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is the current version of buddy
	Version = "0.1.0"

	// Global flags
	verbose       bool
	workDir       string
	forAgents     bool
	outputFormat  string
	outputDensity string

	// logger is built before every command runs
	logger = zap.NewNop()
)

// logLevelAnnotation lets long-running commands log at info level by default.
const logLevelAnnotation = "buddy.log-level"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "buddy",
	Short: "Terminal coding buddy with smart project context",
	Long: `buddy answers questions about the project you are working in.

For every question it selects the most relevant parts of the project (files
ranked by keywords, technical terms, intent and recency, plus your recent
conversation, terminal session log and changes) and keeps the assembled
context under a size budget before asking Gemini.

Output Format:
  Structured commands output YAML by default.
  Use --format to switch to JSON or plain text.
  Use --density to control detail level (sparse|medium|dense|smart).

Main capabilities:
  - Analyze a question's intent, keywords and technical terms
  - Rank project files by relevance to a question
  - Assemble bounded context for a question
  - Relay questions from a chat terminal to a background agent
  - Serve the same capabilities to AI agents over MCP

Examples:
  buddy init                                  # Create .buddy/config.yaml
  buddy analyze "why does login fail?"        # Show intent and keywords
  buddy rank "fix the auth bug"               # Rank relevant files
  buddy context "add a logout button"         # Print assembled context
  buddy agent                                 # Start the answering agent
  buddy chat                                  # Ask questions interactively

See 'buddy <command> --help' for command-specific options.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zapcore.WarnLevel
		if cmd.Annotations[logLevelAnnotation] == "info" {
			level = zapcore.InfoLevel
		}
		if verbose {
			level = zapcore.DebugLevel
		}

		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		built, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = built
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "Project directory (searched upwards for .buddy)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "yaml", "Output format (yaml|json|text)")
	rootCmd.PersistentFlags().StringVar(&outputDensity, "density", "medium", "Output density (sparse|medium|dense|smart)")
	rootCmd.Flags().BoolVar(&forAgents, "for-agents", false, "Output machine-readable capability discovery JSON")

	// Set custom help function to intercept --for-agents flag
	originalHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if forAgents {
			outputAgentHelp(cmd)
			return
		}
		originalHelp(cmd, args)
	})
}

// CommandInfo represents a command for agent discovery
type CommandInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Usage       string        `json:"usage"`
	Flags       []FlagInfo    `json:"flags,omitempty"`
	Subcommands []CommandInfo `json:"subcommands,omitempty"`
	Examples    []string      `json:"examples,omitempty"`
}

// FlagInfo represents a command flag for agent discovery
type FlagInfo struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
}

// outputAgentHelp outputs machine-readable JSON describing all commands
func outputAgentHelp(cmd *cobra.Command) {
	root := buildCommandInfo(cmd.Root())

	output := map[string]interface{}{
		"version":      Version,
		"commands":     root.Subcommands,
		"global_flags": root.Flags,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(output)
}

// buildCommandInfo recursively builds command information for agent discovery
func buildCommandInfo(cmd *cobra.Command) CommandInfo {
	info := CommandInfo{
		Name:        cmd.Name(),
		Description: cmd.Short,
		Usage:       cmd.UseLine(),
	}

	// Collect flags
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		info.Flags = append(info.Flags, FlagInfo{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Description: f.Usage,
			Type:        f.Value.Type(),
			Default:     f.DefValue,
		})
	})

	// Collect subcommands
	for _, sub := range cmd.Commands() {
		if !sub.Hidden {
			info.Subcommands = append(info.Subcommands, buildCommandInfo(sub))
		}
	}

	// Extract examples from Example field if available
	if cmd.Example != "" {
		lines := strings.Split(cmd.Example, "\n")
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				info.Examples = append(info.Examples, trimmed)
			}
		}
	}

	return info
}

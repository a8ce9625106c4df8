package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/config"
	"github.com/codebuddy/buddy/internal/errpattern"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent, mailbox and session status",
	Long: `Show what buddy sees in the current project.

Displays information about:
- The project root and config file
- Whether smart context is on and its size limits
- Whether an agent is running (heartbeat age) and any pending question
- Fix suggestions the agent has published for the session log
- Stored sessions

Examples:
  buddy status                 # YAML status
  buddy status --format text   # Human-readable
  buddy status --format json   # For scripts`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// StatusOutput represents the status output structure
type StatusOutput struct {
	Project  ProjectStatus  `yaml:"project" json:"project"`
	Agent    AgentStatus    `yaml:"agent" json:"agent"`
	Sessions SessionsStatus `yaml:"sessions" json:"sessions"`
}

// ProjectStatus describes the project and its context settings.
type ProjectStatus struct {
	Root           string `yaml:"root" json:"root"`
	ConfigFile     string `yaml:"config_file,omitempty" json:"config_file,omitempty"`
	SmartContext   bool   `yaml:"smart_context" json:"smart_context"`
	MaxContextSize int    `yaml:"max_context_size" json:"max_context_size"`
	MaxFiles       int    `yaml:"max_files" json:"max_files"`
	Model          string `yaml:"model" json:"model"`
	APIKeySet      bool   `yaml:"api_key_set" json:"api_key_set"`
}

// AgentStatus describes the relay mailbox.
type AgentStatus struct {
	Running      bool   `yaml:"running" json:"running"`
	LastBeat     string `yaml:"last_heartbeat,omitempty" json:"last_heartbeat,omitempty"`
	PendingQuery bool   `yaml:"pending_question" json:"pending_question"`
	Processing   bool   `yaml:"processing" json:"processing"`
	MailboxDir   string `yaml:"mailbox_dir" json:"mailbox_dir"`
	Suggestions  int    `yaml:"suggestions" json:"suggestions"`
	TopIssue     string `yaml:"top_issue,omitempty" json:"top_issue,omitempty"`
}

// SessionsStatus describes the session database.
type SessionsStatus struct {
	Database string `yaml:"database" json:"database"`
	Count    int    `yaml:"recent" json:"recent"`
	Latest   string `yaml:"latest,omitempty" json:"latest,omitempty"`
}

// Text renders the status for display.
func (s *StatusOutput) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project:       %s\n", s.Project.Root)
	if s.Project.ConfigFile != "" {
		fmt.Fprintf(&sb, "Config:        %s\n", s.Project.ConfigFile)
	} else {
		sb.WriteString("Config:        defaults (run 'buddy init')\n")
	}
	mode := "smart context"
	if !s.Project.SmartContext {
		mode = "whole repository"
	}
	fmt.Fprintf(&sb, "Context:       %s (max %d bytes, %d files)\n", mode, s.Project.MaxContextSize, s.Project.MaxFiles)
	fmt.Fprintf(&sb, "Model:         %s (api key set: %v)\n", s.Project.Model, s.Project.APIKeySet)

	agent := "not running"
	if s.Agent.Running {
		agent = "running"
	}
	if s.Agent.LastBeat != "" {
		agent += ", last heartbeat " + s.Agent.LastBeat
	}
	fmt.Fprintf(&sb, "Agent:         %s\n", agent)
	if s.Agent.Processing {
		sb.WriteString("               answering a question\n")
	} else if s.Agent.PendingQuery {
		sb.WriteString("               question waiting\n")
	}
	if s.Agent.Suggestions > 0 {
		fmt.Fprintf(&sb, "Suggestions:   %d (top: %s)\n", s.Agent.Suggestions, s.Agent.TopIssue)
	}

	fmt.Fprintf(&sb, "Sessions:      %d recent", s.Sessions.Count)
	if s.Sessions.Latest != "" {
		fmt.Fprintf(&sb, " (latest %s)", s.Sessions.Latest)
	}
	sb.WriteString("\n")
	return sb.String()
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	out := &StatusOutput{
		Project: ProjectStatus{
			Root:           p.root,
			SmartContext:   p.cfg.SmartContext.IsEnabled(),
			MaxContextSize: p.cfg.SmartContext.MaxContextSize,
			MaxFiles:       p.cfg.SmartContext.MaxFiles,
			Model:          p.cfg.Gemini.Model,
			APIKeySet:      p.cfg.Gemini.APIKey != "",
		},
	}
	if configDir, err := config.FindConfigDir(p.root); err == nil {
		out.Project.ConfigFile = filepath.Join(configDir, config.ConfigFileName)
	}

	box := p.mailbox()
	out.Agent = AgentStatus{
		Running:      box.AgentAlive(3 * p.cfg.Relay.HeartbeatInterval),
		PendingQuery: box.HasRequest(),
		Processing:   box.IsProcessing(),
		MailboxDir:   box.Dir(),
	}
	if beat, err := box.LastBeat(); err == nil {
		out.Agent.LastBeat = beat.Format(time.RFC3339)
	}
	if s, err := errpattern.ReadSuggestions(box.Dir()); err == nil && len(s.Suggestions) > 0 {
		top := errpattern.Prioritize(s.Suggestions)[0]
		out.Agent.Suggestions = len(s.Suggestions)
		out.Agent.TopIssue = top.Description
	}

	st, err := p.openSessions()
	if err != nil {
		return err
	}
	defer st.Close()

	out.Sessions.Database = st.Path()
	recent, err := st.ListRecent(commandContext(cmd), 100)
	if err != nil {
		return err
	}
	out.Sessions.Count = len(recent)
	if len(recent) > 0 {
		out.Sessions.Latest = recent[0].ID
	}

	return writeOutput(cmd.OutOrStdout(), out)
}

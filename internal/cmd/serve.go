package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codebuddy/buddy/internal/mcp"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server for AI agent integration",
	Long: `Start an MCP (Model Context Protocol) server for AI agent integration.

This lets AI agents request the same smart context buddy assembles for its
own questions, through MCP tools instead of spawning CLI commands.

Available Tools:
  buddy_context   Assemble size-bounded context for a question
  buddy_analyze   Intent, keywords and technical terms of a question
  buddy_rank      Project files ranked by relevance
  buddy_changes   Uncommitted git changes
  buddy_errors    Fix suggestions for errors in terminal output

Examples:
  buddy serve --mcp                          # Start with all tools
  buddy serve --mcp --tools context,rank     # Start with specific tools only
  buddy serve --mcp --timeout 30m            # Auto-stop after 30 minutes idle
  buddy serve --status                       # Check if server is running
  buddy serve --stop                         # Stop running server
  buddy serve --list-tools                   # Show available tools`,
	Annotations: map[string]string{logLevelAnnotation: "info"},
	RunE:        runServe,
}

var (
	serveMCP       bool
	serveTools     string
	serveTimeout   string
	serveStatus    bool
	serveStop      bool
	serveListTools bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "Start MCP server (stdio transport)")
	serveCmd.Flags().StringVar(&serveTools, "tools", "", "Comma-separated list of tools to expose (default: all)")
	serveCmd.Flags().StringVar(&serveTimeout, "timeout", "30m", "Inactivity timeout (0 for no timeout)")
	serveCmd.Flags().BoolVar(&serveStatus, "status", false, "Check if server is running")
	serveCmd.Flags().BoolVar(&serveStop, "stop", false, "Stop running server")
	serveCmd.Flags().BoolVar(&serveListTools, "list-tools", false, "List available tools")
}

func runServe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Handle --list-tools
	if serveListTools {
		fmt.Fprintln(out, "Available MCP tools:")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  buddy_context   Assemble size-bounded context for a question")
		fmt.Fprintln(out, "  buddy_analyze   Intent, keywords and technical terms of a question")
		fmt.Fprintln(out, "  buddy_rank      Project files ranked by relevance")
		fmt.Fprintln(out, "  buddy_changes   Uncommitted git changes")
		fmt.Fprintln(out, "  buddy_errors    Fix suggestions for errors in terminal output")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Default set: %s\n", strings.Join(mcp.DefaultTools, ", "))
		return nil
	}

	p, err := loadProject()
	if err != nil {
		return err
	}

	// Handle --status
	if serveStatus {
		return checkServerStatus(p)
	}

	// Handle --stop
	if serveStop {
		return stopServer(p)
	}

	// Start MCP server
	if !serveMCP {
		return fmt.Errorf("use --mcp to start the MCP server, or --help for usage")
	}

	// Parse timeout
	timeout, err := parseDuration(serveTimeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	server, err := mcp.New(mcp.Config{
		ProjectRoot: p.root,
		Builder:     p.builder(),
		Tools:       parseTools(serveTools),
		Timeout:     timeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Write PID file
	if err := writePIDFile(p); err != nil {
		logger.Warn("could not write PID file", zap.Error(err))
	}
	defer removePIDFile(p)

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintf(os.Stderr, "\nbuddy serve: shutting down\n")
		removePIDFile(p)
		_ = logger.Sync()
		os.Exit(0)
	}()

	// Log startup info to stderr (stdout is for MCP protocol)
	if timeout > 0 {
		logger.Info("inactivity timeout", zap.Duration("timeout", timeout))
	}

	// Start serving
	return server.ServeStdio()
}

// parseTools splits --tools, allowing shorthand (rank -> buddy_rank).
func parseTools(list string) []string {
	var tools []string
	for _, t := range strings.Split(list, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "buddy_") {
			t = "buddy_" + t
		}
		tools = append(tools, t)
	}
	return tools
}

func parseDuration(s string) (time.Duration, error) {
	if s == "0" || s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func getPIDFilePath(p *project) (string, error) {
	dir := p.sessionsDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "serve.pid"), nil
}

func writePIDFile(p *project) error {
	pidPath, err := getPIDFilePath(p)
	if err != nil {
		return err
	}
	return os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func removePIDFile(p *project) {
	pidPath, err := getPIDFilePath(p)
	if err != nil {
		return
	}
	os.Remove(pidPath)
}

func checkServerStatus(p *project) error {
	pidPath, err := getPIDFilePath(p)
	if err != nil {
		fmt.Println("Status: not running (sessions dir unavailable)")
		return nil
	}

	data, err := os.ReadFile(pidPath)
	if err != nil {
		fmt.Println("Status: not running")
		return nil
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		fmt.Println("Status: not running (invalid PID file)")
		return nil
	}

	// Check if process exists
	process, err := os.FindProcess(pid)
	if err != nil {
		fmt.Println("Status: not running")
		removePIDFile(p)
		return nil
	}

	// On Unix, FindProcess always succeeds, so we need to send signal 0 to check
	err = process.Signal(syscall.Signal(0))
	if err != nil {
		fmt.Println("Status: not running (stale PID file)")
		removePIDFile(p)
		return nil
	}

	fmt.Printf("Status: running (PID %d)\n", pid)
	return nil
}

func stopServer(p *project) error {
	pidPath, err := getPIDFilePath(p)
	if err != nil {
		return fmt.Errorf("sessions dir unavailable: %w", err)
	}

	data, err := os.ReadFile(pidPath)
	if err != nil {
		fmt.Println("No server running")
		return nil
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		removePIDFile(p)
		return fmt.Errorf("invalid PID file")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		removePIDFile(p)
		fmt.Println("No server running")
		return nil
	}

	// Send SIGTERM for graceful shutdown
	err = process.Signal(syscall.SIGTERM)
	if err != nil {
		removePIDFile(p)
		fmt.Println("Server already stopped")
		return nil
	}

	fmt.Printf("Stopped server (PID %d)\n", pid)
	return nil
}

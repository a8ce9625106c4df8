// Package mcp provides an MCP (Model Context Protocol) server for buddy.
// This allows AI agents to request smart project context through MCP tools
// instead of CLI commands.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	cxcontext "github.com/codebuddy/buddy/internal/context"
	"github.com/codebuddy/buddy/internal/diff"
	"github.com/codebuddy/buddy/internal/errpattern"
	"github.com/codebuddy/buddy/internal/output"
)

// Server wraps the MCP server with buddy-specific functionality
type Server struct {
	mcpServer    *server.MCPServer
	builder      *cxcontext.Builder
	gitDiff      *diff.GitDiff
	detector     *errpattern.Detector
	projectRoot  string
	tools        map[string]bool
	lastActivity time.Time
	timeout      time.Duration
	logger       *zap.Logger
	mu           sync.RWMutex
}

// Config holds server configuration
type Config struct {
	ProjectRoot string
	Builder     *cxcontext.Builder // Context builder (default: built over ProjectRoot with default options)
	Tools       []string           // Which tools to expose (empty = all)
	Timeout     time.Duration      // Inactivity timeout (0 = no timeout)
	Logger      *zap.Logger
}

// DefaultRankLimit is how many files buddy_rank returns by default.
const DefaultRankLimit = 20

// AllTools lists all available tools
var AllTools = []string{"buddy_context", "buddy_analyze", "buddy_rank", "buddy_changes", "buddy_errors"}

// DefaultTools is the default set of tools to expose
var DefaultTools = AllTools

// New creates a new MCP server for buddy
func New(cfg Config) (*Server, error) {
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("project root is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	builder := cfg.Builder
	if builder == nil {
		opts := cxcontext.DefaultOptions()
		opts.Logger = cfg.Logger
		builder = cxcontext.NewBuilder(cfg.ProjectRoot, opts)
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"buddy",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcpServer:    mcpServer,
		builder:      builder,
		gitDiff:      diff.NewGitDiff(cfg.ProjectRoot),
		detector:     errpattern.NewDetector(nil),
		projectRoot:  cfg.ProjectRoot,
		tools:        make(map[string]bool),
		lastActivity: time.Now(),
		timeout:      cfg.Timeout,
		logger:       cfg.Logger,
	}

	// Determine which tools to register
	toolsToRegister := cfg.Tools
	if len(toolsToRegister) == 0 {
		toolsToRegister = DefaultTools
	}

	// Register tools
	for _, toolName := range toolsToRegister {
		if err := s.registerTool(toolName); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", toolName, err)
		}
		s.tools[toolName] = true
	}

	return s, nil
}

// registerTool registers a single tool with the MCP server
func (s *Server) registerTool(name string) error {
	switch name {
	case "buddy_context":
		return s.registerContextTool()
	case "buddy_analyze":
		return s.registerAnalyzeTool()
	case "buddy_rank":
		return s.registerRankTool()
	case "buddy_changes":
		return s.registerChangesTool()
	case "buddy_errors":
		return s.registerErrorsTool()
	default:
		return fmt.Errorf("unknown tool: %s", name)
	}
}

// ServeStdio starts the server using stdio transport
func (s *Server) ServeStdio() error {
	// Start timeout checker if timeout is set
	if s.timeout > 0 {
		go s.timeoutChecker()
	}

	s.logger.Info("serving MCP over stdio",
		zap.String("root", s.projectRoot),
		zap.Strings("tools", s.ListTools()))
	return server.ServeStdio(s.mcpServer)
}

// timeoutChecker monitors for inactivity and exits if timeout exceeded
func (s *Server) timeoutChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.RLock()
		elapsed := time.Since(s.lastActivity)
		s.mu.RUnlock()

		if elapsed > s.timeout {
			fmt.Fprintf(os.Stderr, "buddy serve: timeout after %v of inactivity\n", s.timeout)
			os.Exit(0)
		}
	}
}

// updateActivity updates the last activity timestamp
func (s *Server) updateActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// ListTools returns the registered tools in sorted order
func (s *Server) ListTools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]string, 0, len(s.tools))
	for t := range s.tools {
		tools = append(tools, t)
	}
	sort.Strings(tools)
	return tools
}

// ToolSchema describes a tool's name, description, and parameters.
type ToolSchema struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Parameters  []ParameterSchema `json:"parameters" yaml:"parameters"`
}

// ParameterSchema describes a single tool parameter.
type ParameterSchema struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
}

// toolSchemaRegistry holds the schema definitions for all tools.
// These mirror the mcp.NewTool() definitions in the register*Tool() functions.
var toolSchemaRegistry = map[string]ToolSchema{
	"buddy_context": {
		Name:        "buddy_context",
		Description: "Assemble size-bounded project context for a question: recent conversation, session log tail for debugging, recent changes, and the most relevant files.",
		Parameters: []ParameterSchema{
			{Name: "query", Type: "string", Description: "The question to build context for", Required: true},
			{Name: "conversation", Type: "string", Description: "Pre-rendered recent conversation"},
			{Name: "session_log", Type: "string", Description: "Terminal session transcript (only used for debugging questions)"},
			{Name: "changes", Type: "string", Description: "Pre-rendered list of recent changes"},
			{Name: "git_changes", Type: "boolean", Description: "Add uncommitted git changes to the changes section"},
		},
	},
	"buddy_analyze": {
		Name:        "buddy_analyze",
		Description: "Classify a question's intent and extract its keywords and technical terms.",
		Parameters: []ParameterSchema{
			{Name: "query", Type: "string", Description: "The question to analyze", Required: true},
		},
	},
	"buddy_rank": {
		Name:        "buddy_rank",
		Description: "Rank project files by relevance to a question, with the reasons for each score.",
		Parameters: []ParameterSchema{
			{Name: "query", Type: "string", Description: "The question to rank files for", Required: true},
			{Name: "limit", Type: "number", Description: "Maximum files (default: 20)"},
			{Name: "density", Type: "string", Description: "Detail level: sparse, medium, dense, smart (default: medium)"},
		},
	},
	"buddy_changes": {
		Name:        "buddy_changes",
		Description: "List uncommitted changes in the project (staged, unstaged and untracked).",
		Parameters:  []ParameterSchema{},
	},
	"buddy_errors": {
		Name:        "buddy_errors",
		Description: "Find well-known errors in terminal output (tracebacks, missing modules, failed tests, hardcoded secrets) and suggest fixes, most urgent first.",
		Parameters: []ParameterSchema{
			{Name: "log", Type: "string", Description: "Terminal output to examine", Required: true},
		},
	},
}

// GetToolSchemas returns schemas for all registered tools.
func (s *Server) GetToolSchemas() []ToolSchema {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schemas := make([]ToolSchema, 0, len(s.tools))
	for name := range s.tools {
		if schema, ok := toolSchemaRegistry[name]; ok {
			schemas = append(schemas, schema)
		}
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// contextArgs are the arguments of buddy_context.
type contextArgs struct {
	query        string
	conversation string
	sessionLog   string
	changes      string
	gitChanges   bool
}

func parseContextArgs(args map[string]interface{}) contextArgs {
	var a contextArgs
	a.query, _ = args["query"].(string)
	a.conversation, _ = args["conversation"].(string)
	a.sessionLog, _ = args["session_log"].(string)
	a.changes, _ = args["changes"].(string)
	a.gitChanges, _ = args["git_changes"].(bool)
	return a
}

func parseRankArgs(args map[string]interface{}) (string, int, string) {
	query, _ := args["query"].(string)
	limit := DefaultRankLimit
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	density, _ := args["density"].(string)
	if density == "" {
		density = string(output.DefaultDensity)
	}
	return query, limit, density
}

// CallTool dispatches a tool call by name with the given arguments.
// Returns the JSON result string or an error.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	s.mu.RLock()
	registered := s.tools[name]
	s.mu.RUnlock()

	if !registered {
		return "", fmt.Errorf("unknown tool: %s (run 'buddy serve --list-tools' to see available tools)", name)
	}

	switch name {
	case "buddy_context":
		a := parseContextArgs(args)
		if a.query == "" {
			return "", fmt.Errorf("query parameter is required")
		}
		return s.executeContext(ctx, a)

	case "buddy_analyze":
		query, _ := args["query"].(string)
		if query == "" {
			return "", fmt.Errorf("query parameter is required")
		}
		return s.executeAnalyze(query)

	case "buddy_rank":
		query, limit, density := parseRankArgs(args)
		if query == "" {
			return "", fmt.Errorf("query parameter is required")
		}
		return s.executeRank(ctx, query, limit, density)

	case "buddy_changes":
		return s.executeChanges(ctx)

	case "buddy_errors":
		log, _ := args["log"].(string)
		if log == "" {
			return "", fmt.Errorf("log parameter is required")
		}
		return s.executeErrors(log)

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// registerContextTool registers the buddy_context tool
func (s *Server) registerContextTool() error {
	tool := mcp.NewTool("buddy_context",
		mcp.WithDescription(toolSchemaRegistry["buddy_context"].Description),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to build context for"),
		),
		mcp.WithString("conversation",
			mcp.Description("Pre-rendered recent conversation"),
		),
		mcp.WithString("session_log",
			mcp.Description("Terminal session transcript (only used for debugging questions)"),
		),
		mcp.WithString("changes",
			mcp.Description("Pre-rendered list of recent changes"),
		),
		mcp.WithBoolean("git_changes",
			mcp.Description("Add uncommitted git changes to the changes section"),
		),
	)

	s.mcpServer.AddTool(tool, s.handleContext)
	return nil
}

// registerAnalyzeTool registers the buddy_analyze tool
func (s *Server) registerAnalyzeTool() error {
	tool := mcp.NewTool("buddy_analyze",
		mcp.WithDescription(toolSchemaRegistry["buddy_analyze"].Description),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to analyze"),
		),
	)

	s.mcpServer.AddTool(tool, s.handleAnalyze)
	return nil
}

// registerRankTool registers the buddy_rank tool
func (s *Server) registerRankTool() error {
	tool := mcp.NewTool("buddy_rank",
		mcp.WithDescription(toolSchemaRegistry["buddy_rank"].Description),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to rank files for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum files (default: 20)"),
		),
		mcp.WithString("density",
			mcp.Description("Detail level: sparse, medium, dense, smart (default: medium)"),
		),
	)

	s.mcpServer.AddTool(tool, s.handleRank)
	return nil
}

// registerChangesTool registers the buddy_changes tool
func (s *Server) registerChangesTool() error {
	tool := mcp.NewTool("buddy_changes",
		mcp.WithDescription(toolSchemaRegistry["buddy_changes"].Description),
	)

	s.mcpServer.AddTool(tool, s.handleChanges)
	return nil
}

// registerErrorsTool registers the buddy_errors tool
func (s *Server) registerErrorsTool() error {
	tool := mcp.NewTool("buddy_errors",
		mcp.WithDescription(toolSchemaRegistry["buddy_errors"].Description),
		mcp.WithString("log",
			mcp.Required(),
			mcp.Description("Terminal output to examine"),
		),
	)

	s.mcpServer.AddTool(tool, s.handleErrors)
	return nil
}

func (s *Server) handleContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.updateActivity()

	a := parseContextArgs(req.GetArguments())
	if a.query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	result, err := s.executeContext(ctx, a)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.updateActivity()

	args := req.GetArguments()
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	result, err := s.executeAnalyze(query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleRank(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.updateActivity()

	query, limit, density := parseRankArgs(req.GetArguments())
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	result, err := s.executeRank(ctx, query, limit, density)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleChanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.updateActivity()

	result, err := s.executeChanges(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleErrors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.updateActivity()

	log, _ := req.GetArguments()["log"].(string)
	if log == "" {
		return mcp.NewToolResultError("log parameter is required"), nil
	}

	result, err := s.executeErrors(log)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(result), nil
}

func (s *Server) executeContext(ctx context.Context, a contextArgs) (string, error) {
	changes := a.changes
	if a.gitChanges {
		uncommitted, err := s.gitDiff.GetUncommittedChanges(ctx)
		if err != nil {
			s.logger.Warn("git changes unavailable", zap.Error(err))
		} else if rendered := diff.Render(uncommitted); rendered != "" {
			if changes != "" {
				changes += "\n"
			}
			changes += rendered
		}
	}

	result := s.builder.Build(ctx, cxcontext.Input{
		Query:               a.query,
		SessionLog:          a.sessionLog,
		ConversationHistory: a.conversation,
		ChangesLog:          changes,
	})
	return toJSON(output.NewContextOutput(a.query, result))
}

func (s *Server) executeAnalyze(query string) (string, error) {
	analysis := s.builder.Analyzer().Analyze(query)
	return format(output.NewAnalysisOutput(query, analysis), output.DensityDense)
}

func (s *Server) executeRank(ctx context.Context, query string, limit int, densityName string) (string, error) {
	density, err := output.ParseDensity(densityName)
	if err != nil {
		return "", err
	}

	analysis := s.builder.Analyzer().Analyze(query)
	ranked := s.builder.Scorer().ScoreFiles(ctx, analysis, limit)
	return format(output.NewRankOutput(query, analysis, ranked), density)
}

func (s *Server) executeChanges(ctx context.Context) (string, error) {
	changes, err := s.gitDiff.GetUncommittedChanges(ctx)
	if err != nil {
		return "", err
	}
	if changes == nil {
		changes = []diff.FileChange{}
	}
	return toJSON(map[string]interface{}{
		"changes": changes,
		"count":   len(changes),
	})
}

func (s *Server) executeErrors(log string) (string, error) {
	found := s.detector.Detect(log)
	return format(output.NewSuggestionsOutput("log", found), output.DensityMedium)
}

// Helper functions

func toJSON(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func format(v interface{}, density output.Density) (string, error) {
	return output.NewJSONFormatter().Format(v, density)
}

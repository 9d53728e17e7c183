package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/operad/internal/logging"
	"github.com/aretw0/operad/internal/presentation/graph"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/runner"
	"github.com/aretw0/operad/pkg/session"
	"github.com/aretw0/operad/pkg/workflow"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// KernelsURI is the resource listing registered kernels.
const KernelsURI = "operad://kernels"

// Engine defines the interface required by the MCP server.
type Engine interface {
	ParseClause(id, text string) (domain.Clause, error)
	CompileWorkflow(def *workflow.Definition) (*domain.KernelObject, domain.Vars, error)
	Decide(kernelID string, d domain.Decision) error
}

// CompileResponse is returned by compile_workflow.
type CompileResponse struct {
	KernelID string      `json:"kernel_id" jsonschema_description:"Id to pass to execute_kernel"`
	Nodes    []string    `json:"nodes" jsonschema_description:"Node ids in execution order"`
	Vars     domain.Vars `json:"vars,omitempty" jsonschema_description:"Initial context declared by the workflow"`
	Mermaid  string      `json:"mermaid" jsonschema_description:"Mermaid flowchart of the kernel"`
}

// RunResponse summarizes an execute or resume call.
type RunResponse struct {
	RunID     string                      `json:"run_id"`
	KernelID  string                      `json:"kernel_id"`
	Status    domain.ExecutionStatus      `json:"status"`
	Success   bool                        `json:"success"`
	Completed []string                    `json:"completed"`
	Excised   []string                    `json:"excised,omitempty"`
	Outputs   domain.Vars                 `json:"outputs,omitempty"`
	Error     string                      `json:"error,omitempty"`
	Decision  *domain.UserDecisionRequest `json:"decision,omitempty" jsonschema_description:"Set when the run froze; answer with decide then resume_run"`
}

// ParseArgs are the arguments of parse_clause.
type ParseArgs struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// CompileArgs are the arguments of compile_workflow.
type CompileArgs struct {
	Workflow string `json:"workflow"`
}

// ExecuteArgs are the arguments of execute_kernel.
type ExecuteArgs struct {
	KernelID      string `json:"kernel_id"`
	Context       string `json:"context,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// ResumeArgs are the arguments of resume_run.
type ResumeArgs struct {
	RunID         string `json:"run_id"`
	Context       string `json:"context,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// DecideArgs are the arguments of decide.
type DecideArgs struct {
	KernelID string `json:"kernel_id"`
	Decision string `json:"decision"`
}

// Server exposes kernel compilation and execution as MCP tools.
type Server struct {
	engine    Engine
	manager   *session.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, manager *session.Manager, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		manager:   manager,
		mcpServer: server.NewMCPServer("operad-mcp", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, e.g. for in-process transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("parse_clause",
		mcp.WithDescription("Parse one WHEN <lhs> <op> <rhs> THEN <action> clause and return its structure."),
		mcp.WithString("id", mcp.Description("Clause id (optional)")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Clause text")),
	), mcp.NewStructuredToolHandler(s.handleParseClause))

	s.mcpServer.AddTool(mcp.NewTool("compile_workflow",
		mcp.WithDescription("Compile a YAML workflow document into a kernel and register it for execution."),
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Workflow YAML: id, clauses, loop, reflex, composition, context")),
		mcp.WithOutputSchema[CompileResponse](),
	), mcp.NewStructuredToolHandler(s.handleCompileWorkflow))

	s.mcpServer.AddTool(mcp.NewTool("execute_kernel",
		mcp.WithDescription("Start a new run of a registered kernel."),
		mcp.WithString("kernel_id", mcp.Required(), mcp.Description("Kernel id returned by compile_workflow")),
		mcp.WithString("context", mcp.Description("JSON object of initial variables (optional)")),
		mcp.WithNumber("max_iterations", mcp.Description("Iteration bound override (optional)")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleExecuteKernel))

	s.mcpServer.AddTool(mcp.NewTool("resume_run",
		mcp.WithDescription("Resume a frozen, cancelled or unfinished run. Completed nodes are not executed again."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run id")),
		mcp.WithString("context", mcp.Description("JSON object of variables to merge (optional)")),
		mcp.WithNumber("max_iterations", mcp.Description("Iteration bound override (optional)")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleResumeRun))

	s.mcpServer.AddTool(mcp.NewTool("decide",
		mcp.WithDescription("Answer an entropy freeze of a kernel: continue, freeze or reset."),
		mcp.WithString("kernel_id", mcp.Required(), mcp.Description("Kernel whose run is frozen")),
		mcp.WithString("decision", mcp.Required(), mcp.Enum("continue", "freeze", "reset")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args DecideArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		d, err := s.decide(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(d)), nil
	})
}

func (s *Server) handleParseClause(_ context.Context, _ mcp.CallToolRequest, args ParseArgs) (domain.Clause, error) {
	text, err := runner.SanitizeInput(args.Text)
	if err != nil {
		return domain.Clause{}, fmt.Errorf("input rejected: %w", err)
	}
	return s.engine.ParseClause(args.ID, text)
}

func (s *Server) handleCompileWorkflow(ctx context.Context, _ mcp.CallToolRequest, args CompileArgs) (CompileResponse, error) {
	def, err := workflow.Parse([]byte(args.Workflow))
	if err != nil {
		return CompileResponse{}, err
	}
	ko, vars, err := s.engine.CompileWorkflow(def)
	if err != nil {
		return CompileResponse{}, err
	}
	if err := s.manager.Register(ctx, ko); err != nil {
		return CompileResponse{}, err
	}
	s.logger.Info("MCP: kernel registered", "ko", ko.ID, "nodes", len(ko.Nodes))
	return CompileResponse{
		KernelID: ko.ID,
		Nodes:    ko.NodeIDs(),
		Vars:     vars,
		Mermaid:  graph.GenerateMermaid(ko, nil),
	}, nil
}

func (s *Server) handleExecuteKernel(ctx context.Context, _ mcp.CallToolRequest, args ExecuteArgs) (RunResponse, error) {
	if args.KernelID == "" {
		return RunResponse{}, errors.New("kernel_id is required")
	}
	vars, err := parseContext(args.Context)
	if err != nil {
		return RunResponse{}, err
	}
	res, err := s.manager.Start(ctx, args.KernelID, vars, args.MaxIterations)
	if err != nil {
		return RunResponse{}, err
	}
	return summarize(res), nil
}

func (s *Server) handleResumeRun(ctx context.Context, _ mcp.CallToolRequest, args ResumeArgs) (RunResponse, error) {
	vars, err := parseContext(args.Context)
	if err != nil {
		return RunResponse{}, err
	}
	res, err := s.manager.Resume(ctx, args.RunID, vars, args.MaxIterations)
	if err != nil {
		return RunResponse{}, err
	}
	return summarize(res), nil
}

func (s *Server) decide(args DecideArgs) (domain.Decision, error) {
	d, err := runner.ParseDecision(args.Decision)
	if err != nil {
		return "", err
	}
	if args.KernelID == "" {
		return "", errors.New("kernel_id is required")
	}
	if err := s.engine.Decide(args.KernelID, d); err != nil {
		return "", err
	}
	s.logger.Info("MCP: freeze decision", "ko", args.KernelID, "decision", d)
	return d, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(KernelsURI, "Registered kernels",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.manager.ListKernels(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list kernels: %w", err)
		}
		data, err := json.Marshal(ids)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      KernelsURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// parseContext decodes an optional JSON object of variables.
func parseContext(raw string) (domain.Vars, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("context must be a JSON object: %w", err)
	}
	return domain.VarsFromMap(m)
}

func summarize(res *domain.KOExecutionResult) RunResponse {
	out := RunResponse{
		Success:  res.Success,
		Outputs:  res.Outputs,
		Error:    res.ErrorMessage,
		Decision: res.Decision,
	}
	if res.State != nil {
		out.RunID = res.State.RunID
		out.KernelID = res.State.KernelID
		out.Status = res.State.Status
		out.Completed = res.State.CompletedNodes
		out.Excised = res.State.Excised
	}
	return out
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/operad/internal/logging"
	"github.com/aretw0/operad/internal/presentation/graph"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/runner"
	"github.com/aretw0/operad/pkg/session"
	"github.com/aretw0/operad/pkg/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// MaxBodySize bounds request bodies.
const MaxBodySize = 1 << 20

// Engine defines what the HTTP adapter needs from the kernel engine.
type Engine interface {
	runner.Engine
	ParseClause(id, text string) (domain.Clause, error)
	Compile(id string, inputs []domain.ClauseInput) (*domain.KernelObject, error)
	CompileYields(id string, inputs []domain.ClauseInput, yields, kernelInputs []string) (*domain.KernelObject, error)
	CompileWorkflow(def *workflow.Definition) (*domain.KernelObject, domain.Vars, error)
}

// Server serves kernel compilation and run management over HTTP.
type Server struct {
	Engine  Engine
	Manager *session.Manager
	Streams *StreamManager

	events  *runner.Runner
	metrics http.Handler
	version string
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithEventRate bounds reflex event intake.
func WithEventRate(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		s.events = runner.New(s.Engine, runner.WithEventRate(limit, burst), runner.WithLogger(s.logger))
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger configures the structured logger. Apply it before WithEventRate.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for engine and its run manager.
func NewHandler(engine Engine, manager *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Manager: manager,
		Streams: NewStreamManager(),
		version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = runner.New(engine, runner.WithLogger(s.logger))
	}
	s.Streams.logger = s.logger

	r := chi.NewRouter()
	r.Use(enableCORS)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Post("/clauses/parse", s.ParseClause)
	r.Post("/workflows", s.CompileWorkflow)

	r.Route("/kernels", func(r chi.Router) {
		r.Get("/", s.ListKernels)
		r.Post("/", s.CompileKernel)
		r.Get("/{kernelID}", s.GetKernel)
		r.Get("/{kernelID}/graph", s.GetGraph)
		r.Post("/{kernelID}/runs", s.StartRun)
		r.Post("/{kernelID}/events", s.PostEvent)
		r.Post("/{kernelID}/decision", s.Decide)
	})
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Get("/{runID}", s.GetRun)
		r.Delete("/{runID}", s.DeleteRun)
		r.Post("/{runID}/resume", s.ResumeRun)
		r.Get("/{runID}/stream", s.StreamRun)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ParseRequest is the body of POST /clauses/parse.
type ParseRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// CompileRequest is the body of POST /kernels. Yields switches dependency
// inference to symbol matching.
type CompileRequest struct {
	ID           string               `json:"id"`
	Clauses      []domain.ClauseInput `json:"clauses"`
	Yields       []string             `json:"yields,omitempty"`
	KernelInputs []string             `json:"kernel_inputs,omitempty"`
}

// RunRequest is the body of run start and resume calls.
type RunRequest struct {
	Vars          domain.Vars `json:"vars,omitempty"`
	MaxIterations int         `json:"max_iterations,omitempty"`
}

// DecisionRequest is the body of POST /kernels/{kernelID}/decision.
type DecisionRequest struct {
	Decision domain.Decision `json:"decision"`
}

// WorkflowResponse is returned by POST /workflows.
type WorkflowResponse struct {
	Kernel *domain.KernelObject `json:"kernel"`
	Vars   domain.Vars          `json:"vars,omitempty"`
}

// RunUpdate is broadcast to run stream subscribers.
type RunUpdate struct {
	RunID     string                 `json:"run_id"`
	KernelID  string                 `json:"kernel_id"`
	Status    domain.ExecutionStatus `json:"status"`
	Completed []string               `json:"completed"`
	Excised   []string               `json:"excised,omitempty"`
	Iteration int                    `json:"iteration"`
	Entropy   float64                `json:"entropy"`
}

// ParseClause handles POST /clauses/parse.
func (s *Server) ParseClause(w http.ResponseWriter, r *http.Request) {
	var body ParseRequest
	if !s.decode(w, r, &body) {
		return
	}
	text, err := runner.SanitizeInput(body.Text)
	if err != nil {
		s.fail(w, fmt.Errorf("invalid input: %w", err), http.StatusBadRequest)
		return
	}
	c, err := s.Engine.ParseClause(body.ID, text)
	if err != nil {
		s.fail(w, err, 0)
		return
	}
	s.respond(w, http.StatusOK, c)
}

// CompileKernel handles POST /kernels.
func (s *Server) CompileKernel(w http.ResponseWriter, r *http.Request) {
	var body CompileRequest
	if !s.decode(w, r, &body) {
		return
	}
	for i, c := range body.Clauses {
		clean, err := runner.SanitizeInput(c.Text)
		if err != nil {
			s.fail(w, fmt.Errorf("clause %s: invalid input: %w", c.ID, err), http.StatusBadRequest)
			return
		}
		body.Clauses[i].Text = clean
	}

	var ko *domain.KernelObject
	var err error
	if len(body.Yields) > 0 || len(body.KernelInputs) > 0 {
		ko, err = s.Engine.CompileYields(body.ID, body.Clauses, body.Yields, body.KernelInputs)
	} else {
		ko, err = s.Engine.Compile(body.ID, body.Clauses)
	}
	if err != nil {
		s.fail(w, err, 0)
		return
	}
	if err := s.Manager.Register(r.Context(), ko); err != nil {
		s.fail(w, err, 0)
		return
	}
	s.logger.Info("kernel registered", "ko", ko.ID, "nodes", len(ko.Nodes))
	s.respond(w, http.StatusCreated, ko)
}

// CompileWorkflow handles POST /workflows with a YAML workflow document.
func (s *Server) CompileWorkflow(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	def, err := workflow.Parse(data)
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	ko, vars, err := s.Engine.CompileWorkflow(def)
	if err != nil {
		s.fail(w, err, 0)
		return
	}
	if err := s.Manager.Register(r.Context(), ko); err != nil {
		s.fail(w, err, 0)
		return
	}
	s.logger.Info("workflow registered", "ko", ko.ID, "nodes", len(ko.Nodes))
	s.respond(w, http.StatusCreated, WorkflowResponse{Kernel: ko, Vars: vars})
}

// ListKernels handles GET /kernels.
func (s *Server) ListKernels(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Manager.ListKernels(r.Context())
	if err != nil {
		s.fail(w, err, 0)
		return
	}
	s.respond(w, http.StatusOK, ids)
}

// GetKernel handles GET /kernels/{kernelID}.
func (s *Server) GetKernel(w http.ResponseWriter, r *http.Request) {
	ko, err := s.Manager.GetKernel(r.Context(), chi.URLParam(r, "kernelID"))
	if err != nil {
		s.fail(w, err, 0)
		return
	}
	s.respond(w, http.StatusOK, ko)
}

// GetGraph handles GET /kernels/{kernelID}/graph. With ?run=<id> the
// run's kernel is drawn with its progress overlaid.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var overlay *graph.Overlay
	ko, err := s.Manager.GetKernel(ctx, chi.URLParam(r, "kernelID"))
	if runID := r.URL.Query().Get("run"); runID != "" && err == nil {
		var state *domain.ExecutionState
		state, err = s.Manager.Load(ctx, runID)
		if err == nil {
			ko, err = s.Manager.GetKernel(ctx, state.KernelID)
			overlay = graph.OverlayFromState(state)
		}
	}
	if err != nil {
		s.fail(w, err, 0)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, graph.GenerateMermaid(ko, overlay))
}

// StartRun handles POST /kernels/{kernelID}/runs.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if !s.decodeOptional(w, r, &body) {
		return
	}
	res, err := s.Manager.Start(r.Context(), chi.URLParam(r, "kernelID"), body.Vars, body.MaxIterations)
	if err != nil {
		s.fail(w, err, 0)
		return
	}
	s.publish(res.State)
	s.respond(w, http.StatusOK, res)
}

// ResumeRun handles POST /runs/{runID}/resume.
func (s *Server) ResumeRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if !s.decodeOptional(w, r, &body) {
		return
	}
	res, err := s.Manager.Resume(r.Context(), chi.URLParam(r, "runID"), body.Vars, body.MaxIterations)
	if err != nil {
		s.fail(w, err, 0)
		return
	}
	s.publish(res.State)
	s.respond(w, http.StatusOK, res)
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Manager.List(r.Context())
	if err != nil {
		s.fail(w, err, 0)
		return
	}
	s.respond(w, http.StatusOK, ids)
}

// GetRun handles GET /runs/{runID}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	state, err := s.Manager.Load(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.fail(w, err, 0)
		return
	}
	s.respond(w, http.StatusOK, state)
}

// DeleteRun handles DELETE /runs/{runID}.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.Manager.Delete(r.Context(), chi.URLParam(r, "runID")); err != nil {
		s.fail(w, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostEvent handles POST /kernels/{kernelID}/events. The event is queued for
// the kernel's next iteration boundary.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.ReflexEvent
	if !s.decode(w, r, &ev) {
		return
	}
	if ev.Type == "" {
		s.fail(w, errors.New("event type is required"), http.StatusBadRequest)
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if err := s.events.Submit(r.Context(), chi.URLParam(r, "kernelID"), ev); err != nil {
		s.fail(w, err, 0)
		return
	}
	s.respond(w, http.StatusAccepted, ev)
}

// Decide handles POST /kernels/{kernelID}/decision. Only that kernel's
// governor is affected.
func (s *Server) Decide(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	if !s.decode(w, r, &body) {
		return
	}
	d, err := runner.ParseDecision(string(body.Decision))
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	kernelID := chi.URLParam(r, "kernelID")
	if err := s.Engine.Decide(kernelID, d); err != nil {
		s.fail(w, err, 0)
		return
	}
	s.logger.Info("freeze decision", "ko", kernelID, "decision", d)
	s.respond(w, http.StatusOK, DecisionRequest{Decision: d})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"app":     "operad-http",
		"version": s.version,
		"format":  domain.KernelFormat,
	})
}

// StreamRun handles GET /runs/{runID}/stream (SSE). Each start or resume
// of the run is pushed as a RunUpdate.
func (s *Server) StreamRun(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}
	runID := chi.URLParam(r, "runID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(runID)
	defer cancel()
	s.logger.Info("SSE: subscribing to run updates", "run", runID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "run", runID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) publish(state *domain.ExecutionState) {
	if state == nil {
		return
	}
	data, err := json.Marshal(RunUpdate{
		RunID:     state.RunID,
		KernelID:  state.KernelID,
		Status:    state.Status,
		Completed: state.CompletedNodes,
		Excised:   state.Excised,
		Iteration: state.Iteration,
		Entropy:   state.Entropy,
	})
	if err != nil {
		s.logger.Error("run update encode failed", "error", err)
		return
	}
	s.Streams.Broadcast(state.RunID, string(data))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize)).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		s.fail(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		s.fail(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// fail writes an error response. A zero status is derived from err.
func (s *Server) fail(w http.ResponseWriter, err error, status int) {
	if status == 0 {
		status = StatusFor(err)
	}
	if status >= 500 {
		s.logger.Error("request failed", "error", err)
	}
	s.respond(w, status, map[string]string{"error": err.Error()})
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrKernelNotFound), errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSyntax),
		errors.Is(err, domain.ErrMissingDependency),
		errors.Is(err, domain.ErrCyclicDependency),
		errors.Is(err, domain.ErrDuplicateNode),
		errors.Is(err, domain.ErrInvalidKernel):
		return http.StatusBadRequest
	case errors.Is(err, runner.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

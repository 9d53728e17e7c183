package operad

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/operad/internal/compiler"
	"github.com/aretw0/operad/internal/composer"
	"github.com/aretw0/operad/internal/logging"
	"github.com/aretw0/operad/internal/reflex"
	"github.com/aretw0/operad/internal/resolver"
	"github.com/aretw0/operad/internal/runtime"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/governor"
	"github.com/aretw0/operad/pkg/ports"
	"github.com/aretw0/operad/pkg/registry"
	"github.com/aretw0/operad/pkg/workflow"
)

// Engine is the high-level entry point for the library.
// It compiles clauses into kernels and runs them. Each kernel lineage (a
// kernel and its run-scoped forks) owns its governor and reflex layer, so
// churn on one kernel never freezes another.
type Engine struct {
	registry    *registry.Registry
	strict      bool
	interp      *compiler.Interpreter
	govOpts     []governor.Option
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	backoffBase time.Duration
	backoffCap  time.Duration
	sleeper     runtime.Sleeper
	newRunID    func() string
	defaultLoop *domain.LoopControl
	source      ports.ClauseSource

	mu     sync.Mutex
	scopes map[string]*scope
}

// scope is the mutable adaptation state of one kernel lineage.
type scope struct {
	governor *governor.Governor
	layer    *reflex.Layer
}

var _ ports.KernelEngine = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegistry sets the function registry used by name(args) actions.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithStrictActions makes calls to unregistered functions fail.
func WithStrictActions(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// WithGovernorOptions configures the governor created for each kernel.
func WithGovernorOptions(opts ...governor.Option) Option {
	return func(e *Engine) {
		e.govOpts = append(e.govOpts, opts...)
	}
}

// WithBackoff sets the retry delay bounds.
func WithBackoff(base, cap time.Duration) Option {
	return func(e *Engine) {
		e.backoffBase = base
		e.backoffCap = cap
	}
}

// WithSleeper replaces the wait between retries. Tests use it to avoid sleeping.
func WithSleeper(s runtime.Sleeper) Option {
	return func(e *Engine) {
		e.sleeper = s
	}
}

// WithRunIDGenerator sets how run ids are made.
func WithRunIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newRunID = fn
	}
}

// WithDefaultLoop sets the loop control for kernels compiled without one.
func WithDefaultLoop(loop domain.LoopControl) Option {
	return func(e *Engine) {
		e.defaultLoop = &loop
	}
}

// WithClauseSource sets where CompileSource reads clauses from.
func WithClauseSource(src ports.ClauseSource) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// New initializes a new Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{
		backoffBase: runtime.DefaultBackoffBase,
		backoffCap:  runtime.DefaultBackoffCap,
		scopes:      make(map[string]*scope),
	}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized so components never see nil.
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.registry == nil {
		eng.registry = registry.NewRegistry()
	}
	eng.interp = compiler.NewInterpreter(
		compiler.WithRegistry(eng.registry),
		compiler.WithStrict(eng.strict),
		compiler.WithLogger(eng.logger),
	)
	return eng
}

// Register adds a named function callable from clause actions.
func (e *Engine) Register(name string, fn registry.ActionFunc) {
	e.registry.Register(name, fn)
}

// Registry returns the engine's function registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Governor returns the governor of a kernel. Run-scoped forks
// ("<kernel>@<run>") share the governor of their base kernel.
func (e *Engine) Governor(kernelID string) *governor.Governor {
	return e.scope(kernelID).governor
}

// Decide answers a freeze of a kernel. See governor.Governor.Decide.
func (e *Engine) Decide(kernelID string, d domain.Decision) error {
	return e.scope(kernelID).governor.Decide(d)
}

// ParseClause parses a single clause without building a graph.
func (e *Engine) ParseClause(id, text string) (domain.Clause, error) {
	return compiler.Parse(id, text)
}

// RunClause executes one parsed clause against vars.
// A false condition returns an error wrapping domain.ErrConditionNotMet.
func (e *Engine) RunClause(ctx context.Context, c domain.Clause, vars domain.Vars) (domain.ClauseResult, error) {
	return e.interp.Execute(ctx, c, vars)
}

// Compile builds a kernel from explicitly declared dependencies.
func (e *Engine) Compile(id string, inputs []domain.ClauseInput) (*domain.KernelObject, error) {
	nodes, err := resolver.BuildDAG(inputs)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", id, err)
	}
	return composer.CollapseToKO(nodes, composer.Params{ID: id, Loop: e.loop(nil)})
}

// CompileYields builds a kernel whose edges come from matching clause
// inputs against other clauses' outputs. Inputs no clause produces must be
// listed in kernelInputs.
func (e *Engine) CompileYields(id string, inputs []domain.ClauseInput, yields, kernelInputs []string) (*domain.KernelObject, error) {
	nodes, err := resolver.BuildDAGFromYields(inputs, yields, kernelInputs)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", id, err)
	}
	return composer.CollapseToKO(nodes, composer.Params{
		ID:     id,
		Inputs: kernelInputs,
		Yields: yields,
		Loop:   e.loop(nil),
	})
}

// CompileWorkflow builds a kernel from a workflow document and returns it
// with the document's initial context.
func (e *Engine) CompileWorkflow(def *workflow.Definition) (*domain.KernelObject, domain.Vars, error) {
	if err := workflow.Validate(def); err != nil {
		return nil, nil, err
	}
	vars, err := def.InitialContext()
	if err != nil {
		return nil, nil, fmt.Errorf("workflow %s: %w", def.ID, err)
	}
	typed, err := def.ContextSchema()
	if err != nil {
		return nil, nil, fmt.Errorf("workflow %s: %w", def.ID, err)
	}

	var nodes []domain.DAGNode
	if def.UsesYields() {
		nodes, err = resolver.BuildDAGFromYields(def.ClauseInputs(), def.Yields, def.Inputs)
	} else {
		nodes, err = resolver.BuildDAG(def.ClauseInputs())
	}
	if err != nil {
		return nil, nil, fmt.Errorf("workflow %s: %w", def.ID, err)
	}

	ko, err := composer.CollapseToKO(nodes, composer.Params{
		ID:          def.ID,
		ClauseID:    def.ClauseID,
		Type:        def.Type,
		Role:        def.Role,
		Inputs:      def.Inputs,
		Yields:      def.Yields,
		Loop:        e.loop(def.LoopControl()),
		Reflex:      def.ReflexConfig(),
		Composition: def.CompositionRules(),
		Schema:      typed.TypeMap(),
		Metadata:    def.Metadata,
	})
	if err != nil {
		return nil, nil, err
	}
	return ko, vars, nil
}

// CompileSource compiles clauses read from the configured ClauseSource.
// With no ids every clause the source lists is used.
func (e *Engine) CompileSource(ctx context.Context, id string, clauseIDs ...string) (*domain.KernelObject, error) {
	if e.source == nil {
		return nil, fmt.Errorf("no clause source configured")
	}
	if len(clauseIDs) == 0 {
		ids, err := e.source.ListClauses(ctx)
		if err != nil {
			return nil, fmt.Errorf("list clauses: %w", err)
		}
		clauseIDs = ids
	}
	inputs := make([]domain.ClauseInput, 0, len(clauseIDs))
	for _, cid := range clauseIDs {
		in, err := e.source.GetClause(ctx, cid)
		if err != nil {
			return nil, fmt.Errorf("load clause %s: %w", cid, err)
		}
		inputs = append(inputs, in)
	}
	return e.Compile(id, inputs)
}

// Compose merges kernels left to right.
func (e *Engine) Compose(kos ...*domain.KernelObject) (*domain.KernelObject, error) {
	return composer.ComposeAll(kos...)
}

// Excise returns ko without nodeID.
func (e *Engine) Excise(ko *domain.KernelObject, nodeID string) (*domain.KernelObject, error) {
	return composer.Excise(ko, nodeID)
}

// Marshal encodes a kernel document.
func (e *Engine) Marshal(ko *domain.KernelObject) ([]byte, error) {
	return composer.Encode(ko)
}

// Unmarshal decodes and verifies a kernel document.
func (e *Engine) Unmarshal(data []byte) (*domain.KernelObject, error) {
	return composer.Decode(data)
}

// Execute starts a new run of ko. maxIterations <= 0 uses the kernel's bound.
func (e *Engine) Execute(ctx context.Context, ko *domain.KernelObject, vars domain.Vars, maxIterations int) *domain.KOExecutionResult {
	return e.executor(ko).Execute(ctx, ko, vars, maxIterations)
}

// Resume continues a run without re-running its completed nodes.
func (e *Engine) Resume(ctx context.Context, ko *domain.KernelObject, vars domain.Vars, prior *domain.ExecutionState, maxIterations int) *domain.KOExecutionResult {
	return e.executor(ko).Resume(ctx, ko, vars, prior, maxIterations)
}

// HandleEvent applies a reflex event to ko immediately.
func (e *Engine) HandleEvent(ev domain.ReflexEvent, vars domain.Vars, ko *domain.KernelObject) (*domain.KernelObject, bool, error) {
	out, err := e.layer(ko).HandleEvent(ev, vars, ko)
	if err != nil {
		return nil, false, err
	}
	if !out.Triggered {
		e.logger.Debug("reflex event ignored", "ko", ko.ID, "event", ev.Type, "reason", out.Reason)
		return ko, false, nil
	}
	return out.Kernel, true, nil
}

// Enqueue queues ev for the kernel's next iteration boundary. Events for a
// base kernel reach runs of its forks too. Safe to call while the kernel is running.
func (e *Engine) Enqueue(kernelID string, ev domain.ReflexEvent) {
	e.scope(kernelID).layer.Enqueue(ev)
}

// Pending reports how many events are queued for a kernel.
func (e *Engine) Pending(kernelID string) int {
	return e.scope(kernelID).layer.Pending()
}

func (e *Engine) executor(ko *domain.KernelObject) *runtime.Executor {
	sc := e.scope(ko.ID)
	sc.layer.RegisterTriggers(ko)
	opts := []runtime.Option{
		runtime.WithInterpreter(e.interp),
		runtime.WithGovernor(sc.governor),
		runtime.WithReflex(sc.layer),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithBackoff(e.backoffBase, e.backoffCap),
		runtime.WithLogger(e.logger.With("ko", ko.ID)),
	}
	if e.sleeper != nil {
		opts = append(opts, runtime.WithSleeper(e.sleeper))
	}
	if e.newRunID != nil {
		opts = append(opts, runtime.WithRunIDGenerator(e.newRunID))
	}
	return runtime.NewExecutor(opts...)
}

// layer returns the reflex layer of ko's lineage with ko's triggers registered.
func (e *Engine) layer(ko *domain.KernelObject) *reflex.Layer {
	l := e.scope(ko.ID).layer
	l.RegisterTriggers(ko)
	return l
}

func (e *Engine) scope(kernelID string) *scope {
	id := domain.BaseKernelID(kernelID)
	e.mu.Lock()
	defer e.mu.Unlock()
	sc, ok := e.scopes[id]
	if !ok {
		logger := e.logger.With("ko", id)
		opts := append([]governor.Option{governor.WithLogger(logger)}, e.govOpts...)
		g := governor.New(opts...)
		sc = &scope{
			governor: g,
			layer:    reflex.New(reflex.WithGovernor(g), reflex.WithLogger(logger)),
		}
		e.scopes[id] = sc
	}
	return sc
}

func (e *Engine) loop(l *domain.LoopControl) *domain.LoopControl {
	if l != nil || e.defaultLoop == nil {
		return l
	}
	cp := *e.defaultLoop
	return &cp
}

// IsPause reports whether res is a freeze awaiting a decision rather than a failure.
func IsPause(res *domain.KOExecutionResult) bool {
	return runtime.IsPause(res)
}

// Package runtime executes kernel objects.
//
// A run is a single sequential state machine over one kernel. Each iteration
// consults the governor, checks exit conditions, then visits every node whose
// dependencies are complete, in DAG order. Failing nodes go through local
// recovery, bounded retries and finally degradation before a run is failed.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/operad/internal/compiler"
	"github.com/aretw0/operad/internal/logging"
	"github.com/aretw0/operad/internal/reflex"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/governor"
	"github.com/aretw0/operad/pkg/schema"
	"github.com/google/uuid"
)

// DeferredSuffix is appended to a node id to form the context key set when
// the node's condition was not met.
const DeferredSuffix = ".deferred"

// Executor runs kernels. It holds no per-run state and is safe for
// concurrent use as long as its governor and reflex layer are.
type Executor struct {
	interp   *compiler.Interpreter
	governor *governor.Governor
	reflex   *reflex.Layer
	hooks    domain.LifecycleHooks
	backoff  Backoff
	sleep    Sleeper
	newRunID func() string
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithInterpreter sets the clause interpreter (registry, strict mode).
func WithInterpreter(in *compiler.Interpreter) Option {
	return func(e *Executor) {
		e.interp = in
	}
}

// WithGovernor enables the entropy freeze gate.
func WithGovernor(g *governor.Governor) Option {
	return func(e *Executor) {
		e.governor = g
	}
}

// WithReflex applies the layer's queued patches between iterations.
func WithReflex(l *reflex.Layer) Option {
	return func(e *Executor) {
		e.reflex = l
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = hooks
	}
}

// WithBackoff sets the retry delay bounds.
func WithBackoff(base, cap time.Duration) Option {
	return func(e *Executor) {
		e.backoff = Backoff{Base: base, Cap: cap}
	}
}

// WithSleeper replaces the function used to wait between retries.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) {
		e.sleep = s
	}
}

// WithRunIDGenerator sets how new run ids are made.
func WithRunIDGenerator(fn func() string) Option {
	return func(e *Executor) {
		e.newRunID = fn
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an executor with default backoff (1s doubling to 5s).
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		backoff:  Backoff{Base: DefaultBackoffBase, Cap: DefaultBackoffCap},
		sleep:    Sleep,
		newRunID: uuid.NewString,
		now:      time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.interp == nil {
		e.interp = compiler.NewInterpreter(compiler.WithLogger(e.logger))
	}
	return e
}

// Execute starts a new run of ko. maxIterations overrides the kernel's bound when positive.
func (e *Executor) Execute(ctx context.Context, ko *domain.KernelObject, vars domain.Vars, maxIterations int) *domain.KOExecutionResult {
	return e.Resume(ctx, ko, vars, nil, maxIterations)
}

// Resume continues a run from prior. Nodes already in prior.CompletedNodes are
// never executed again. The run context starts from prior.Context with vars
// layered on top. prior is not modified; a nil prior starts a fresh run.
func (e *Executor) Resume(ctx context.Context, ko *domain.KernelObject, vars domain.Vars, prior *domain.ExecutionState, maxIterations int) *domain.KOExecutionResult {
	r := e.newRun(ko, vars, prior, maxIterations)
	return r.run(ctx)
}

// run is the state of one execution. It is owned by a single goroutine.
type run struct {
	e        *Executor
	origin   *domain.KernelObject
	ko       *domain.KernelObject
	vars     domain.Vars
	state    *domain.ExecutionState
	maxIter  int
	retries  int
	started  time.Time
	degraded []domain.Degradation
	logger   *slog.Logger
}

func (e *Executor) newRun(ko *domain.KernelObject, vars domain.Vars, prior *domain.ExecutionState, maxIterations int) *run {
	var state *domain.ExecutionState
	if prior != nil {
		state = prior.Clone()
	} else {
		state = domain.NewExecutionState(e.newRunID(), ko.ID)
	}
	state.KernelID = ko.ID
	if state.Outputs == nil {
		state.Outputs = make(domain.Vars)
	}

	ctxVars := make(domain.Vars, len(state.Context)+len(vars))
	for k, v := range state.Context {
		ctxVars[k] = v
	}
	for k, v := range vars {
		ctxVars[k] = v
	}

	maxIter := ko.Loop.MaxIterations()
	if maxIterations > 0 {
		maxIter = maxIterations
	}
	return &run{
		e:       e,
		origin:  ko,
		ko:      ko,
		vars:    ctxVars,
		state:   state,
		maxIter: maxIter,
		retries: ko.Loop.Retries(),
		started: e.now(),
		logger:  e.logger.With("ko", ko.ID, "run", state.RunID),
	}
}

func (r *run) run(ctx context.Context) *domain.KOExecutionResult {
	exits, err := r.exitConditions()
	if err != nil {
		return r.finish(domain.StatusFailed, err)
	}
	if err := r.checkSchema(); err != nil {
		return r.finish(domain.StatusFailed, err)
	}

	r.state.Status = domain.StatusRunning
	r.logger.DebugContext(ctx, "run started", "max_iterations", r.maxIter, "completed", len(r.state.CompletedNodes))

	for i := 0; i < r.maxIter; i++ {
		if err := ctx.Err(); err != nil {
			return r.finish(domain.StatusCancelled, err)
		}
		r.applyPatches(ctx)

		if res := r.checkGovernor(ctx); res != nil {
			return res
		}
		if cond, ok := r.exitMatched(exits); ok {
			r.state.Record(domain.EventExitCondition, "", cond)
			return r.finish(domain.StatusCompleted, nil)
		}
		if r.done() {
			return r.finish(domain.StatusCompleted, nil)
		}

		r.state.Iteration++
		if res := r.visitReady(ctx); res != nil {
			return res
		}
		if r.done() {
			return r.finish(domain.StatusCompleted, nil)
		}
	}

	r.logger.WarnContext(ctx, "iteration bound reached", "max_iterations", r.maxIter)
	return r.finish(domain.StatusMaxIterationsExceeded,
		fmt.Errorf("%w: %d iterations, %d of %d nodes completed",
			domain.ErrMaxIterationsExceeded, r.maxIter, len(r.state.CompletedNodes), len(r.ko.Nodes)))
}

// visitReady runs every ready node once, in DAG order. The node list is
// snapshotted: a degradation during the pass replaces r.ko for later
// iterations only.
func (r *run) visitReady(ctx context.Context) *domain.KOExecutionResult {
	nodes := r.ko.Nodes
	for _, n := range nodes {
		if r.state.IsCompleted(n.ID) || r.state.IsExcised(n.ID) || !r.ready(n) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return r.finish(domain.StatusCancelled, err)
		}
		if err := r.runNode(ctx, n); err != nil {
			if ctx.Err() != nil {
				return r.finish(domain.StatusCancelled, ctx.Err())
			}
			return r.finish(domain.StatusFailed, err)
		}
	}
	r.state.CurrentNodeID = ""
	return nil
}

func (r *run) ready(n domain.DAGNode) bool {
	for _, d := range n.Dependencies {
		if !r.state.IsCompleted(d) && !r.state.IsExcised(d) {
			return false
		}
	}
	return true
}

func (r *run) done() bool {
	for _, n := range r.ko.Nodes {
		if !r.state.IsCompleted(n.ID) && !r.state.IsExcised(n.ID) {
			return false
		}
	}
	return true
}

func (r *run) exitConditions() ([]domain.Condition, error) {
	if r.ko.Loop == nil {
		return nil, nil
	}
	exits := make([]domain.Condition, 0, len(r.ko.Loop.ExitConditions))
	for _, text := range r.ko.Loop.ExitConditions {
		cond, err := compiler.ParseCondition(text)
		if err != nil {
			return nil, fmt.Errorf("exit condition %q: %w", text, err)
		}
		exits = append(exits, cond)
	}
	return exits, nil
}

// checkSchema validates the run context against the kernel's declared types.
func (r *run) checkSchema() error {
	typed, err := schema.ParseTypeMap(r.ko.Schema)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidKernel, err)
	}
	if err := schema.Validate(typed, r.vars); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidContext, err)
	}
	return nil
}

func (r *run) exitMatched(exits []domain.Condition) (string, bool) {
	for _, cond := range exits {
		if compiler.Evaluate(cond, r.vars) {
			return cond.String(), true
		}
	}
	return "", false
}

func (r *run) checkGovernor(ctx context.Context) *domain.KOExecutionResult {
	g := r.e.governor
	if g == nil {
		return nil
	}
	freeze, accumulated := g.Check(r.ko)
	r.state.Entropy = accumulated
	if !freeze {
		return nil
	}
	r.logger.InfoContext(ctx, "run frozen", "entropy", accumulated, "cap", r.ko.Loop.Cap())
	r.state.Record(domain.EventFrozen, "", fmt.Sprintf("entropy %.3f", accumulated))
	r.e.emitFreeze(ctx, &domain.FreezeEvent{
		RunID:    r.state.RunID,
		KernelID: r.ko.ID,
		Entropy:  accumulated,
		Cap:      r.ko.Loop.Cap(),
	})
	res := r.finish(domain.StatusFrozen, domain.ErrEntropyCapExceeded)
	res.Decision = governor.DecisionRequest(r.ko, accumulated)
	return res
}

func (r *run) applyPatches(ctx context.Context) {
	if r.e.reflex == nil || r.e.reflex.Pending() == 0 {
		return
	}
	next, patches := r.e.reflex.ApplyPending(r.vars, r.ko)
	if len(patches) == 0 {
		return
	}
	r.ko = next
	for _, p := range patches {
		r.state.Record(domain.EventPatchApplied, "", fmt.Sprintf("%s via %s (%s)", p.EventType, p.ClauseID, p.Mode))
		r.e.emitPatch(ctx, &domain.PatchEvent{
			RunID:     r.state.RunID,
			KernelID:  r.ko.ID,
			EventType: p.EventType,
			Nodes:     p.Nodes,
		})
	}
	r.logger.DebugContext(ctx, "reflex patches applied", "count", len(patches))
}

func (r *run) finish(status domain.ExecutionStatus, err error) *domain.KOExecutionResult {
	now := r.e.now()
	r.state.Status = status
	r.state.UpdatedAt = now
	r.state.Context = r.vars.Clone()

	res := &domain.KOExecutionResult{
		Success:  status == domain.StatusCompleted,
		Outputs:  r.state.Outputs.Clone(),
		State:    r.state,
		Err:      err,
		Duration: now.Sub(r.started),
		Degraded: r.degraded,
	}
	if r.ko != r.origin {
		res.Kernel = r.ko
	}
	if err != nil {
		res.ErrorMessage = err.Error()
	}
	if status == domain.StatusFailed {
		r.logger.Error("run failed", "error", err, "completed", len(r.state.CompletedNodes))
	}
	return res
}

// IsPause reports whether a result stopped for an external decision rather than a failure.
func IsPause(res *domain.KOExecutionResult) bool {
	return res != nil && res.State != nil && res.State.Status == domain.StatusFrozen &&
		errors.Is(res.Err, domain.ErrEntropyCapExceeded)
}

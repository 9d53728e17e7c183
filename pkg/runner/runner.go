package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/operad/internal/logging"
	"github.com/aretw0/operad/internal/runtime"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/ports"
	"github.com/aretw0/operad/pkg/session"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultMaxDecisions bounds how many freezes one Run answers before giving up.
const DefaultMaxDecisions = 8

// ErrTooManyDecisions is returned when a run keeps freezing after DefaultMaxDecisions answers.
var ErrTooManyDecisions = errors.New("too many freeze decisions")

// ErrNoManager is returned by Resume on a runner built without WithManager.
var ErrNoManager = errors.New("runner has no session manager")

// ErrRateLimited is returned by Submit when the event intake limit cannot
// admit an event before the context deadline.
var ErrRateLimited = errors.New("event intake rate exceeded")

// Engine is what the runner drives. *operad.Engine implements it.
type Engine interface {
	ports.KernelEngine
	Decide(kernelID string, d domain.Decision) error
	Enqueue(kernelID string, ev domain.ReflexEvent)
}

// Job is one kernel to run with its initial context.
type Job struct {
	Kernel *domain.KernelObject
	Vars   domain.Vars
}

// Runner drives runs to a terminal state: it answers freezes through a
// DecisionProvider, feeds reflex events at a bounded rate and runs
// independent kernels concurrently.
type Runner struct {
	engine       Engine
	manager      *session.Manager
	decider      DecisionProvider
	limiter      *rate.Limiter
	maxIter      int
	maxDecisions int
	concurrency  int
	logger       *slog.Logger
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithDecider sets who answers freezes. Without one every freeze is kept
// and Run returns the paused result.
func WithDecider(d DecisionProvider) Option {
	return func(r *Runner) {
		r.decider = d
	}
}

// WithManager persists every execute call through a run manager.
func WithManager(m *session.Manager) Option {
	return func(r *Runner) {
		r.manager = m
	}
}

// WithEventRate bounds reflex event intake to limit events per second with burst.
func WithEventRate(limit rate.Limit, burst int) Option {
	return func(r *Runner) {
		r.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithMaxIterations overrides the kernels' iteration bound.
func WithMaxIterations(n int) Option {
	return func(r *Runner) {
		r.maxIter = n
	}
}

// WithMaxDecisions bounds how many freezes one run may answer.
func WithMaxDecisions(n int) Option {
	return func(r *Runner) {
		r.maxDecisions = n
	}
}

// WithConcurrency bounds how many kernels RunAll executes at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		r.concurrency = n
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a runner over engine.
func New(engine Engine, opts ...Option) *Runner {
	r := &Runner{
		engine:       engine,
		decider:      Always(domain.DecisionFreeze),
		limiter:      rate.NewLimiter(rate.Inf, 1),
		maxDecisions: DefaultMaxDecisions,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes ko until it completes, fails, is cancelled or stays frozen.
// The returned error reports runner problems (decisions, persistence);
// a failed run is reported through the result.
func (r *Runner) Run(ctx context.Context, ko *domain.KernelObject, vars domain.Vars) (*domain.KOExecutionResult, error) {
	res, err := r.start(ctx, ko, vars)
	if err != nil {
		return res, err
	}
	return r.drive(ctx, ko, res)
}

// Resume continues a persisted run. It needs a session manager.
func (r *Runner) Resume(ctx context.Context, runID string, vars domain.Vars) (*domain.KOExecutionResult, error) {
	if r.manager == nil {
		return nil, ErrNoManager
	}
	ko, err := r.manager.Kernel(ctx, runID)
	if err != nil {
		return nil, err
	}
	res, err := r.manager.Resume(ctx, runID, vars, r.maxIter)
	if err != nil {
		return res, err
	}
	return r.drive(ctx, ko, res)
}

func (r *Runner) drive(ctx context.Context, ko *domain.KernelObject, res *domain.KOExecutionResult) (*domain.KOExecutionResult, error) {
	current := ko
	for answered := 0; runtime.IsPause(res); answered++ {
		if res.Kernel != nil {
			current = res.Kernel
		}
		if answered >= r.maxDecisions {
			return res, fmt.Errorf("%w: %d", ErrTooManyDecisions, answered)
		}

		d, err := r.decider.Decide(ctx, res.Decision)
		if err != nil {
			return res, fmt.Errorf("decide: %w", err)
		}
		if err := r.engine.Decide(current.ID, d); err != nil {
			return res, err
		}
		r.logger.Info("freeze answered", "run", res.State.RunID, "decision", d, "entropy", res.Decision.Entropy)
		if d == domain.DecisionFreeze {
			return res, nil
		}

		res, err = r.resume(ctx, current, res.State)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// RunAll runs independent kernels concurrently and returns their results
// in job order. The first runner error cancels the remaining jobs.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) ([]*domain.KOExecutionResult, error) {
	results := make([]*domain.KOExecutionResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := r.Run(gctx, job.Kernel, job.Vars)
			results[i] = res
			if err != nil {
				return fmt.Errorf("job %s: %w", job.Kernel.ID, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

// Submit queues ev for the kernel's next iteration boundary, waiting for
// the intake rate limit.
func (r *Runner) Submit(ctx context.Context, kernelID string, ev domain.ReflexEvent) error {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	r.engine.Enqueue(kernelID, ev)
	r.logger.Debug("reflex event queued", "ko", kernelID, "event", ev.Type)
	return nil
}

// Intake submits events until the channel is closed or ctx is done.
// A closed channel returns nil.
func (r *Runner) Intake(ctx context.Context, kernelID string, events <-chan domain.ReflexEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.Submit(ctx, kernelID, ev); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) start(ctx context.Context, ko *domain.KernelObject, vars domain.Vars) (*domain.KOExecutionResult, error) {
	if r.manager == nil {
		return r.engine.Execute(ctx, ko, vars, r.maxIter), nil
	}
	if err := r.manager.Register(ctx, ko); err != nil {
		return nil, err
	}
	return r.manager.Start(ctx, ko.ID, vars, r.maxIter)
}

func (r *Runner) resume(ctx context.Context, ko *domain.KernelObject, prior *domain.ExecutionState) (*domain.KOExecutionResult, error) {
	if r.manager == nil {
		return r.engine.Resume(ctx, ko, nil, prior, r.maxIter), nil
	}
	return r.manager.Resume(ctx, prior.RunID, nil, r.maxIter)
}

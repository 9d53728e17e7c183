package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/operad/internal/composer"
	"github.com/aretw0/operad/internal/logging"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed run lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// RunKernelSeparator joins a kernel id and a run id in the id of a run's
// adapted kernel.
const RunKernelSeparator = domain.RunKernelSeparator

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the load, execute and persist cycle of runs.
// Every execute call is followed by a save, so a crashed or frozen run
// resumes without re-running finished nodes. Calls for the same run are
// serialised locally and, with a locker, across replicas.
type Manager struct {
	states  ports.StateStore
	kernels ports.KernelStore
	engine  ports.KernelEngine

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock lifetime.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a run manager over the given stores and engine.
func NewManager(states ports.StateStore, kernels ports.KernelStore, engine ports.KernelEngine, opts ...Option) *Manager {
	m := &Manager{
		states:  states,
		kernels: kernels,
		engine:  engine,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(runID) after unlocking.
func (m *Manager) acquire(runID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[runID]
	if !exists {
		entry = &lockEntry{}
		m.locks[runID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[runID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, runID)
	}
}

// Register stores a compiled kernel so runs can reference it by id.
func (m *Manager) Register(ctx context.Context, ko *domain.KernelObject) error {
	return m.kernels.PutKernel(ctx, ko)
}

// Start executes a stored kernel as a new run and persists the result.
func (m *Manager) Start(ctx context.Context, kernelID string, vars domain.Vars, maxIterations int) (*domain.KOExecutionResult, error) {
	ko, err := m.kernels.GetKernel(ctx, kernelID)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", kernelID, err)
	}
	res := m.engine.Execute(ctx, ko, vars, maxIterations)
	runID := res.State.RunID
	err = m.WithLock(ctx, runID, func(ctx context.Context) error {
		return m.persist(ctx, ko.ID, res)
	})
	return res, err
}

// Resume continues a stored run. Completed nodes are never executed again,
// so resuming a finished run returns it unchanged.
func (m *Manager) Resume(ctx context.Context, runID string, vars domain.Vars, maxIterations int) (*domain.KOExecutionResult, error) {
	var res *domain.KOExecutionResult
	err := m.WithLock(ctx, runID, func(ctx context.Context) error {
		prior, err := m.states.Load(ctx, runID)
		if err != nil {
			return fmt.Errorf("resume %s: %w", runID, err)
		}
		ko, err := m.kernels.GetKernel(ctx, prior.KernelID)
		if err != nil {
			return fmt.Errorf("resume %s: %w", runID, err)
		}
		res = m.engine.Resume(ctx, ko, vars, prior, maxIterations)
		return m.persist(ctx, baseKernelID(ko.ID, runID), res)
	})
	return res, err
}

// Load returns the persisted state of a run.
func (m *Manager) Load(ctx context.Context, runID string) (*domain.ExecutionState, error) {
	var state *domain.ExecutionState
	err := m.WithLock(ctx, runID, func(ctx context.Context) error {
		var err error
		state, err = m.states.Load(ctx, runID)
		return err
	})
	return state, err
}

// Kernel returns the kernel a run currently executes, which differs from the
// registered one once the run has been degraded or patched.
func (m *Manager) Kernel(ctx context.Context, runID string) (*domain.KernelObject, error) {
	state, err := m.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	return m.kernels.GetKernel(ctx, state.KernelID)
}

// Delete removes a run and its adapted kernel, if any.
func (m *Manager) Delete(ctx context.Context, runID string) error {
	return m.WithLock(ctx, runID, func(ctx context.Context) error {
		state, err := m.states.Load(ctx, runID)
		if errors.Is(err, domain.ErrRunNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.HasSuffix(state.KernelID, RunKernelSeparator+runID) {
			if err := m.kernels.DeleteKernel(ctx, state.KernelID); err != nil {
				return err
			}
		}
		return m.states.Delete(ctx, runID)
	})
}

// GetKernel returns a registered or forked kernel by id.
func (m *Manager) GetKernel(ctx context.Context, id string) (*domain.KernelObject, error) {
	return m.kernels.GetKernel(ctx, id)
}

// ListKernels delegates to the kernel store.
func (m *Manager) ListKernels(ctx context.Context) ([]string, error) {
	return m.kernels.ListKernels(ctx)
}

// List delegates to the state store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.states.List(ctx)
}

// WithLock executes fn while holding the lock for the run.
func (m *Manager) WithLock(ctx context.Context, runID string, fn func(context.Context) error) error {
	entry := m.acquire(runID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(runID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, runID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The run context may already be cancelled; release regardless.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"run", runID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// persist saves the run state. A kernel adapted during the run is stored
// under a run-scoped id and the state is pointed at it.
func (m *Manager) persist(ctx context.Context, baseID string, res *domain.KOExecutionResult) error {
	state := res.State
	if res.Kernel != nil {
		forked, err := fork(res.Kernel, baseID, state.RunID)
		if err != nil {
			return err
		}
		if err := m.kernels.PutKernel(ctx, forked); err != nil {
			return fmt.Errorf("persist kernel of run %s: %w", state.RunID, err)
		}
		state.KernelID = forked.ID
		res.Kernel = forked
	}
	if err := m.states.Save(ctx, state.RunID, state); err != nil {
		return fmt.Errorf("persist run %s: %w", state.RunID, err)
	}
	m.logger.Debug("run persisted", "run", state.RunID, "ko", state.KernelID, "status", state.Status)
	return nil
}

func fork(ko *domain.KernelObject, baseID, runID string) (*domain.KernelObject, error) {
	id := baseID + RunKernelSeparator + runID
	if ko.ID == id {
		return ko, nil
	}
	cp := ko.Clone()
	cp.ID = id
	return composer.Rebuild(cp, cp.Nodes)
}

func baseKernelID(kernelID, runID string) string {
	return strings.TrimSuffix(kernelID, RunKernelSeparator+runID)
}

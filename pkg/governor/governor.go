package governor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/operad/internal/logging"
	"github.com/aretw0/operad/pkg/domain"
)

// DefaultAlpha is the smoothing factor of the entropy moving average.
const DefaultAlpha = 0.3

// DefaultWeights are the churn weights per action.
var DefaultWeights = map[domain.ChurnAction]float64{
	domain.ChurnReshuffleAll: 1.0,
	domain.ChurnLocalAdapt:   0.1,
	domain.ChurnInsert:       0.05,
}

// Governor tracks churn and gates autonomous execution. Safe for concurrent use.
type Governor struct {
	mu         sync.Mutex
	alpha      float64
	weights    map[domain.ChurnAction]float64
	entropy    float64
	cumulative float64
	baseline   float64
	frozen     bool
	history    []domain.EntropyMeasurement
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Governor.
type Option func(*Governor)

// WithAlpha sets the moving average smoothing factor, in (0, 1].
func WithAlpha(alpha float64) Option {
	return func(g *Governor) {
		if alpha > 0 && alpha <= 1 {
			g.alpha = alpha
		}
	}
}

// WithWeight overrides the weight of one churn action.
func WithWeight(action domain.ChurnAction, weight float64) Option {
	return func(g *Governor) {
		g.weights[action] = weight
	}
}

// WithClock sets the time source used to stamp measurements.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		g.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Governor) {
		g.logger = logger
	}
}

// New creates a governor with no history.
func New(opts ...Option) *Governor {
	g := &Governor{
		alpha:   DefaultAlpha,
		weights: make(map[domain.ChurnAction]float64, len(DefaultWeights)),
		now:     time.Now,
		logger:  logging.NewNop(),
	}
	for action, w := range DefaultWeights {
		g.weights[action] = w
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Record adds a churn event touching affected of total blocks and returns
// the resulting measurement.
func (g *Governor) Record(action domain.ChurnAction, affected, total int) (domain.EntropyMeasurement, error) {
	if total <= 0 {
		return domain.EntropyMeasurement{}, fmt.Errorf("total blocks must be positive, got %d", total)
	}
	if affected < 0 {
		return domain.EntropyMeasurement{}, fmt.Errorf("affected blocks must not be negative, got %d", affected)
	}
	if affected > total {
		affected = total
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	weight, ok := g.weights[action]
	if !ok {
		return domain.EntropyMeasurement{}, fmt.Errorf("unknown churn action %q", action)
	}
	churn := weight * float64(affected) / float64(total)
	g.entropy = g.alpha*churn + (1-g.alpha)*g.entropy
	g.cumulative += churn

	m := domain.EntropyMeasurement{
		Timestamp:         g.now(),
		Entropy:           g.entropy,
		CumulativeEntropy: g.cumulative,
		Action:            action,
		AffectedBlocks:    affected,
		TotalBlocks:       total,
	}
	g.history = append(g.history, m)
	g.logger.Debug("churn recorded", "action", action, "churn", churn, "entropy", g.entropy, "accumulated", g.cumulative-g.baseline)
	return m, nil
}

// Entropy returns the moving average of weighted churn.
func (g *Governor) Entropy() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.entropy
}

// Cumulative returns the total weighted churn ever recorded since the last reset.
func (g *Governor) Cumulative() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cumulative
}

// Accumulated returns the churn recorded since the last approved baseline.
func (g *Governor) Accumulated() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cumulative - g.baseline
}

// History returns a copy of the measurement log.
func (g *Governor) History() []domain.EntropyMeasurement {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.EntropyMeasurement(nil), g.history...)
}

// Frozen reports whether a Freeze decision is holding execution.
func (g *Governor) Frozen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.frozen
}

// Check is the executor's gate: it reports whether ko must pause, with the
// accumulated entropy that was compared against the kernel's cap.
func (g *Governor) Check(ko *domain.KernelObject) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	accumulated := g.cumulative - g.baseline
	return g.frozen || ShouldFreeze(ko, accumulated), accumulated
}

// Decide applies an external answer to a freeze.
//
// Continue approves the churn so far: the baseline moves to the current
// cumulative value. Reset drops all history. Freeze keeps execution paused
// until a later Continue or Reset.
func (g *Governor) Decide(d domain.Decision) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch d {
	case domain.DecisionContinue:
		g.baseline = g.cumulative
		g.frozen = false
	case domain.DecisionReset:
		g.entropy = 0
		g.cumulative = 0
		g.baseline = 0
		g.frozen = false
		g.history = nil
	case domain.DecisionFreeze:
		g.frozen = true
	default:
		return fmt.Errorf("unknown decision %q", d)
	}
	g.logger.Info("governor decision", "decision", d, "baseline", g.baseline)
	return nil
}

// Snapshot is the persistable state of a Governor.
type Snapshot struct {
	Entropy    float64                     `json:"entropy"`
	Cumulative float64                     `json:"cumulative"`
	Baseline   float64                     `json:"baseline"`
	Frozen     bool                        `json:"frozen"`
	History    []domain.EntropyMeasurement `json:"history,omitempty"`
}

// Snapshot captures the current state.
func (g *Governor) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Entropy:    g.entropy,
		Cumulative: g.cumulative,
		Baseline:   g.baseline,
		Frozen:     g.frozen,
		History:    append([]domain.EntropyMeasurement(nil), g.history...),
	}
}

// Restore replaces the current state with s.
func (g *Governor) Restore(s Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entropy = s.Entropy
	g.cumulative = s.Cumulative
	g.baseline = s.Baseline
	g.frozen = s.Frozen
	g.history = append([]domain.EntropyMeasurement(nil), s.History...)
}

// ShouldFreeze reports whether entropy exceeds the kernel's cap.
func ShouldFreeze(ko *domain.KernelObject, entropy float64) bool {
	var loop *domain.LoopControl
	if ko != nil {
		loop = ko.Loop
	}
	return entropy > loop.Cap()
}

// DecisionRequest builds the pause payload for a frozen kernel.
func DecisionRequest(ko *domain.KernelObject, entropy float64) *domain.UserDecisionRequest {
	var loop *domain.LoopControl
	if ko != nil {
		loop = ko.Loop
	}
	reason := fmt.Sprintf("accumulated entropy %.3f exceeds cap %.3f", entropy, loop.Cap())
	if entropy <= loop.Cap() {
		reason = "execution held by a freeze decision"
	}
	return &domain.UserDecisionRequest{
		Reason:  reason,
		Entropy: entropy,
		Cap:     loop.Cap(),
		Options: []domain.Decision{domain.DecisionContinue, domain.DecisionFreeze, domain.DecisionReset},
	}
}

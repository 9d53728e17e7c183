// Package reflex turns runtime events into scoped kernel patches.
//
// A patch only ever touches the nodes an event names as affected (replace)
// or adds one node depending on them (append). Every other node of the
// kernel is carried over unchanged. Events are best-effort: an unmapped
// event type or a false condition is a no-op, never an error.
package reflex

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/operad/internal/compiler"
	"github.com/aretw0/operad/internal/composer"
	"github.com/aretw0/operad/internal/logging"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/governor"
	"github.com/google/uuid"
)

// Patch describes one applied adaptation.
type Patch struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	ClauseID  string           `json:"clause_id"`
	Mode      domain.PatchMode `json:"mode"`
	// Nodes lists the ids added or replaced.
	Nodes []string `json:"nodes"`
}

// Outcome is the result of handling one event.
type Outcome struct {
	Triggered bool
	Reason    string
	Kernel    *domain.KernelObject
	Patch     *Patch
}

// Layer maps event types to clauses and applies their patches.
type Layer struct {
	mu       sync.Mutex
	triggers map[string]string
	pending  []domain.ReflexEvent
	governor *governor.Governor
	newID    func() string
	logger   *slog.Logger
}

// Option configures a Layer.
type Option func(*Layer)

// WithGovernor records every applied patch as local_adapt churn.
func WithGovernor(g *governor.Governor) Option {
	return func(l *Layer) {
		l.governor = g
	}
}

// WithIDGenerator sets how ids are assigned to events that arrive without one.
func WithIDGenerator(fn func() string) Option {
	return func(l *Layer) {
		l.newID = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Layer) {
		l.logger = logger
	}
}

// New creates a Layer with no triggers.
func New(opts ...Option) *Layer {
	l := &Layer{
		triggers: make(map[string]string),
		newID:    uuid.NewString,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RegisterTriggers loads the kernel's trigger map, replacing any previous one.
func (l *Layer) RegisterTriggers(ko *domain.KernelObject) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.triggers = make(map[string]string)
	if ko == nil || ko.Reflex == nil {
		return
	}
	for ev, clauseID := range ko.Reflex.TriggerMap {
		l.triggers[ev] = clauseID
	}
}

// Triggers returns a copy of the registered map.
func (l *Layer) Triggers() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.triggers))
	for k, v := range l.triggers {
		out[k] = v
	}
	return out
}

// HandleEvent applies ev to current and returns the adapted kernel, if any.
// current is never modified.
func (l *Layer) HandleEvent(ev domain.ReflexEvent, vars domain.Vars, current *domain.KernelObject) (Outcome, error) {
	l.mu.Lock()
	clauseID, ok := l.triggers[ev.Type]
	l.mu.Unlock()
	if !ok {
		return Outcome{Reason: fmt.Sprintf("no trigger for event %q", ev.Type)}, nil
	}
	if ev.ID == "" {
		ev.ID = l.newID()
	}

	rc, err := lookupClause(current, clauseID)
	if err != nil {
		return Outcome{}, err
	}
	clause, err := compiler.Parse(clauseID, rc.Text)
	if err != nil {
		return Outcome{}, fmt.Errorf("reflex clause %q: %w", clauseID, err)
	}
	if !compiler.Evaluate(clause.Condition, vars) {
		return Outcome{Reason: fmt.Sprintf("condition not met: %s", clause.Condition)}, nil
	}

	affected := scope(current, ev.Affected())
	var (
		nodes   []domain.DAGNode
		touched []string
	)
	switch rc.Mode {
	case domain.PatchReplace:
		if len(affected) == 0 {
			return Outcome{Reason: "replace patch names no known node"}, nil
		}
		nodes, touched = replaceNodes(current, affected, clause)
	default:
		rc.Mode = domain.PatchAppend
		node := domain.DAGNode{
			ID:           clauseID + "@" + ev.ID,
			Clause:       clause,
			Dependencies: affected,
			Outputs:      append([]string(nil), rc.Outputs...),
		}
		node.Clause.ID = node.ID
		nodes = append(current.Clone().Nodes, node)
		touched = []string{node.ID}
	}

	adapted, err := composer.Rebuild(current, nodes)
	if err != nil {
		return Outcome{}, fmt.Errorf("reflex patch %q: %w", clauseID, err)
	}

	if l.governor != nil {
		if _, err := l.governor.Record(domain.ChurnLocalAdapt, len(touched), max(len(current.Nodes), 1)); err != nil {
			return Outcome{}, err
		}
	}

	patch := &Patch{EventID: ev.ID, EventType: ev.Type, ClauseID: clauseID, Mode: rc.Mode, Nodes: touched}
	l.logger.Debug("reflex patch", "event", ev.Type, "clause", clauseID, "mode", rc.Mode, "nodes", touched)
	return Outcome{Triggered: true, Kernel: adapted, Patch: patch}, nil
}

// Enqueue stores ev until the next ApplyPending call. Safe to call from any goroutine.
func (l *Layer) Enqueue(ev domain.ReflexEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, ev)
}

// Pending reports how many events are queued.
func (l *Layer) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// ApplyPending drains the queue and applies each event in arrival order,
// returning the final kernel. It is called by the executor between
// iterations so a running traversal never sees a kernel change. Events that
// fail are logged and dropped.
func (l *Layer) ApplyPending(vars domain.Vars, current *domain.KernelObject) (*domain.KernelObject, []Patch) {
	l.mu.Lock()
	events := l.pending
	l.pending = nil
	l.mu.Unlock()

	var patches []Patch
	for _, ev := range events {
		out, err := l.HandleEvent(ev, vars, current)
		if err != nil {
			l.logger.Warn("reflex event dropped", "event", ev.Type, "error", err)
			continue
		}
		if !out.Triggered {
			continue
		}
		current = out.Kernel
		patches = append(patches, *out.Patch)
	}
	return current, patches
}

func lookupClause(ko *domain.KernelObject, clauseID string) (domain.ReflexClause, error) {
	if ko.Reflex != nil {
		if rc, ok := ko.Reflex.Clauses[clauseID]; ok {
			if rc.ID == "" {
				rc.ID = clauseID
			}
			return rc, nil
		}
	}
	if n, ok := ko.Node(clauseID); ok {
		return domain.ReflexClause{ID: clauseID, Text: n.Clause.Raw, Mode: domain.PatchAppend, Outputs: n.Outputs}, nil
	}
	return domain.ReflexClause{}, fmt.Errorf("reflex clause %q not found in kernel %s", clauseID, ko.ID)
}

// scope keeps the affected ids that exist in ko, in DAG order. Never nil.
func scope(ko *domain.KernelObject, affected []string) []string {
	want := make(map[string]bool, len(affected))
	for _, id := range affected {
		want[id] = true
	}
	out := []string{}
	for _, n := range ko.Nodes {
		if want[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

func replaceNodes(ko *domain.KernelObject, affected []string, clause domain.Clause) ([]domain.DAGNode, []string) {
	hit := make(map[string]bool, len(affected))
	for _, id := range affected {
		hit[id] = true
	}
	nodes := make([]domain.DAGNode, len(ko.Nodes))
	for i, n := range ko.Nodes {
		n = n.Clone()
		if hit[n.ID] {
			c := clause
			c.ID = n.ID
			c.Description = n.Clause.Description
			n.Clause = c
		}
		nodes[i] = n
	}
	return nodes, affected
}

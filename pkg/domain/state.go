package domain

import (
	"time"
)

// ExecutionStatus is the state machine position of a run.
type ExecutionStatus string

const (
	StatusIdle                  ExecutionStatus = "idle"
	StatusRunning               ExecutionStatus = "running"
	StatusCompleted             ExecutionStatus = "completed"
	StatusFailed                ExecutionStatus = "failed"
	StatusFrozen                ExecutionStatus = "frozen"
	StatusMaxIterationsExceeded ExecutionStatus = "max_iterations_exceeded"
	StatusCancelled             ExecutionStatus = "cancelled"
)

// IsTerminal reports whether no further execute call can make progress
// without caller intervention.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// EventKind classifies entries of the run trace.
type EventKind string

const (
	EventNodeStarted   EventKind = "node_started"
	EventNodeCompleted EventKind = "node_completed"
	EventNodeDeferred  EventKind = "node_deferred"
	EventNodeRetry     EventKind = "node_retry"
	EventNodeSkipped   EventKind = "node_skipped"
	EventNodeDegraded  EventKind = "node_degraded"
	EventTriggered     EventKind = "triggered"
	EventExitCondition EventKind = "exit_condition"
	EventFrozen        EventKind = "frozen"
	EventPatchApplied  EventKind = "patch_applied"
)

// KOEvent is one entry of a run trace.
type KOEvent struct {
	Kind      EventKind `json:"kind"`
	NodeID    string    `json:"node_id,omitempty"`
	Iteration int       `json:"iteration"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionState is the per-run mutable record. CompletedNodes only grows,
// which makes it the resumption marker for a later execute call. Context
// holds the run's variables as they stood when the call returned.
type ExecutionState struct {
	RunID          string          `json:"run_id"`
	KernelID       string          `json:"kernel_id"`
	Status         ExecutionStatus `json:"status"`
	CurrentNodeID  string          `json:"current_node_id,omitempty"`
	CompletedNodes []string        `json:"completed_nodes"`
	Excised        []string        `json:"excised,omitempty"`
	Iteration      int             `json:"iteration"`
	Entropy        float64         `json:"entropy"`
	RetryCount     int             `json:"retry_count"`
	Outputs        Vars            `json:"outputs,omitempty"`
	Context        Vars            `json:"context,omitempty"`
	Events         []KOEvent       `json:"events,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	completed map[string]struct{}
}

// NewExecutionState creates an idle state for a run of the given kernel.
func NewExecutionState(runID, kernelID string) *ExecutionState {
	now := time.Now()
	return &ExecutionState{
		RunID:          runID,
		KernelID:       kernelID,
		Status:         StatusIdle,
		CompletedNodes: []string{},
		Outputs:        make(Vars),
		StartedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *ExecutionState) index() {
	if s.completed != nil && len(s.completed) == len(s.CompletedNodes) {
		return
	}
	s.completed = make(map[string]struct{}, len(s.CompletedNodes))
	for _, id := range s.CompletedNodes {
		s.completed[id] = struct{}{}
	}
}

// IsCompleted reports whether nodeID already ran to completion.
func (s *ExecutionState) IsCompleted(nodeID string) bool {
	s.index()
	_, ok := s.completed[nodeID]
	return ok
}

// MarkCompleted records nodeID as completed. It is a no-op for known ids.
func (s *ExecutionState) MarkCompleted(nodeID string) {
	s.index()
	if _, ok := s.completed[nodeID]; ok {
		return
	}
	s.completed[nodeID] = struct{}{}
	s.CompletedNodes = append(s.CompletedNodes, nodeID)
}

// IsExcised reports whether nodeID was removed by degradation.
func (s *ExecutionState) IsExcised(nodeID string) bool {
	for _, id := range s.Excised {
		if id == nodeID {
			return true
		}
	}
	return false
}

// Record appends an event to the trace.
func (s *ExecutionState) Record(kind EventKind, nodeID, msg string) {
	now := time.Now()
	s.Events = append(s.Events, KOEvent{
		Kind:      kind,
		NodeID:    nodeID,
		Iteration: s.Iteration,
		Message:   msg,
		Timestamp: now,
	})
	s.UpdatedAt = now
}

// Clone returns an independent copy of the state.
func (s *ExecutionState) Clone() *ExecutionState {
	if s == nil {
		return nil
	}
	out := *s
	out.CompletedNodes = append([]string{}, s.CompletedNodes...)
	out.Excised = cloneStrings(s.Excised)
	out.Events = append([]KOEvent(nil), s.Events...)
	if s.Outputs != nil {
		out.Outputs = s.Outputs.Clone()
	}
	if s.Context != nil {
		out.Context = s.Context.Clone()
	}
	out.completed = nil
	return &out
}

// Decision is an external answer to a freeze.
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionFreeze   Decision = "freeze"
	DecisionReset    Decision = "reset"
)

// UserDecisionRequest is returned instead of continuing when the entropy cap is exceeded.
type UserDecisionRequest struct {
	Reason  string     `json:"reason"`
	Entropy float64    `json:"entropy"`
	Cap     float64    `json:"cap"`
	Options []Decision `json:"options"`
}

// Degradation records a node excised from a run.
type Degradation struct {
	NodeID   string `json:"node_id"`
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
}

// KOExecutionResult is the outcome of one execute call.
type KOExecutionResult struct {
	Success      bool                 `json:"success"`
	Outputs      Vars                 `json:"outputs"`
	State        *ExecutionState      `json:"state"`
	Err          error                `json:"-"`
	ErrorMessage string               `json:"error,omitempty"`
	Duration     time.Duration        `json:"duration"`
	Decision     *UserDecisionRequest `json:"decision,omitempty"`
	Degraded     []Degradation        `json:"degraded,omitempty"`
	// Kernel is the kernel the run ended on when degradation or reflex
	// patches replaced the one passed in.
	Kernel *KernelObject `json:"kernel,omitempty"`
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSyntax is the root of every clause parse failure.
	ErrSyntax = errors.New("clause syntax error")

	// ErrMissingDependency is returned when a node depends on an id that is not in the graph.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrCyclicDependency is returned when the dependency relation has a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrDuplicateNode is returned when two clause inputs share an id.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrConditionNotMet is returned when a node's condition evaluates to false.
	ErrConditionNotMet = errors.New("condition not met")

	// ErrUnknownFunction is returned in strict mode for an unregistered call action.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrEntropyCapExceeded marks a frozen result. It is a pause, not a failure.
	ErrEntropyCapExceeded = errors.New("entropy cap exceeded")

	// ErrMaxIterationsExceeded is returned when a run hits its iteration bound.
	ErrMaxIterationsExceeded = errors.New("max iterations exceeded")

	// ErrCriticalNodeFailed is returned when a required node exhausts its retries.
	ErrCriticalNodeFailed = errors.New("critical node failed")

	// ErrKernelNotFound is returned when a kernel id cannot be found in the store.
	ErrKernelNotFound = errors.New("kernel not found")

	// ErrRunNotFound is returned when a run id cannot be found in the store.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidKernel is returned when a decoded kernel document fails validation.
	ErrInvalidKernel = errors.New("invalid kernel")

	// ErrInvalidContext is returned when run variables do not match the kernel's schema.
	ErrInvalidContext = errors.New("invalid context")
)

// SyntaxError reports where a clause failed to parse.
type SyntaxError struct {
	Text string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s (in %q)", e.Pos, e.Msg, e.Text)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// MissingDependencyError names the node and the unresolved dependency.
type MissingDependencyError struct {
	NodeID string
	DepID  string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("node %q depends on unknown node %q", e.NodeID, e.DepID)
}

func (e *MissingDependencyError) Unwrap() error { return ErrMissingDependency }

// CyclicDependencyError names the node where the back-edge was found.
type CyclicDependencyError struct {
	NodeID string
	Path   []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("cyclic dependency at node %q", e.NodeID)
	}
	return fmt.Sprintf("cyclic dependency at node %q: %s", e.NodeID, strings.Join(e.Path, " -> "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// NodeExecutionError wraps the failure of a single node attempt.
type NodeExecutionError struct {
	NodeID  string
	Attempt int
	Err     error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed (attempt %d): %v", e.NodeID, e.Attempt, e.Err)
}

func (e *NodeExecutionError) Unwrap() error { return e.Err }

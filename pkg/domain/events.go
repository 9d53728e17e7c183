package domain

import (
	"context"
	"strings"
	"time"
)

// ReflexEvent is an externally sourced signal that may patch a running kernel.
type ReflexEvent struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data,omitempty"`
}

// AffectedKey is the event data key listing the node ids an event touches.
const AffectedKey = "affected"

// Affected returns the node ids named in Data["affected"], comma separated.
func (e ReflexEvent) Affected() []string {
	raw := e.Data[AffectedKey]
	if raw == "" {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// NodeEvent describes a node transition inside a run.
type NodeEvent struct {
	RunID     string
	KernelID  string
	NodeID    string
	Iteration int
	Attempt   int
	Err       error
	Duration  time.Duration
}

// FreezeEvent describes a run pausing on the entropy cap.
type FreezeEvent struct {
	RunID    string
	KernelID string
	Entropy  float64
	Cap      float64
}

// PatchEvent describes a reflex patch applied at an iteration boundary.
type PatchEvent struct {
	RunID     string
	KernelID  string
	EventType string
	Nodes     []string
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeStart    func(context.Context, *NodeEvent)
	OnNodeComplete func(context.Context, *NodeEvent)
	OnNodeRetry    func(context.Context, *NodeEvent)
	OnNodeDegraded func(context.Context, *NodeEvent)
	OnFreeze       func(context.Context, *FreezeEvent)
	OnPatch        func(context.Context, *PatchEvent)
}

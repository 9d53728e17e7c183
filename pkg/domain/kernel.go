package domain

import "strings"

// KernelFormat tags serialized kernel objects.
const KernelFormat = "operad.ko/v1"

// RunKernelSeparator joins a kernel id and a run id in the id of a run's
// adapted kernel: "<kernel>@<run>".
const RunKernelSeparator = "@"

// BaseKernelID returns the kernel a run-scoped kernel was forked from.
// Ids without a separator are returned unchanged.
func BaseKernelID(id string) string {
	base, _, _ := strings.Cut(id, RunKernelSeparator)
	return base
}

// Defaults applied when a LoopControl field is left at its zero value.
const (
	DefaultMaxIterations = 10
	DefaultEntropyCap    = 0.22
	DefaultRetryLimit    = 2
)

// ClauseInput is a raw clause as supplied by a collaborator, before parsing.
type ClauseInput struct {
	ID          string   `json:"id" yaml:"id" mapstructure:"id"`
	Text        string   `json:"text" yaml:"text" mapstructure:"text"`
	DependsOn   []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty" mapstructure:"depends_on"`
	Inputs      []string `json:"inputs,omitempty" yaml:"inputs,omitempty" mapstructure:"inputs"`
	Outputs     []string `json:"outputs,omitempty" yaml:"outputs,omitempty" mapstructure:"outputs"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// DAGNode is a parsed clause placed in a dependency graph.
type DAGNode struct {
	ID           string   `json:"id"`
	Clause       Clause   `json:"clause"`
	Dependencies []string `json:"dependencies"`
	Inputs       []string `json:"inputs,omitempty"`
	Outputs      []string `json:"outputs,omitempty"`
}

// Clone returns a deep copy of the node.
func (n DAGNode) Clone() DAGNode {
	out := n
	out.Dependencies = cloneStrings(n.Dependencies)
	out.Inputs = cloneStrings(n.Inputs)
	out.Outputs = cloneStrings(n.Outputs)
	if n.Clause.Action.Args != nil {
		out.Clause.Action.Args = make([]Operand, len(n.Clause.Action.Args))
		copy(out.Clause.Action.Args, n.Clause.Action.Args)
	}
	return out
}

// DependsOn reports whether id is a direct dependency of n.
func (n DAGNode) DependsOn(id string) bool {
	for _, d := range n.Dependencies {
		if d == id {
			return true
		}
	}
	return false
}

// ClauseLogic is the flattened condition/action program of a kernel,
// in DAG order. Conditions[i] guards Actions[i].
type ClauseLogic struct {
	Conditions []Condition `json:"conditions"`
	Actions    []Action    `json:"actions"`
}

// LoopControl bounds execution of a kernel.
// Zero values select the package defaults; a negative RetryLimit disables retries.
type LoopControl struct {
	Bounds         int      `json:"bounds,omitempty" yaml:"bounds,omitempty" mapstructure:"bounds"`
	EntropyCap     float64  `json:"entropy_cap,omitempty" yaml:"entropy_cap,omitempty" mapstructure:"entropy_cap"`
	RetryLimit     int      `json:"retry_limit,omitempty" yaml:"retry_limit,omitempty" mapstructure:"retry_limit"`
	ExitConditions []string `json:"exit_conditions,omitempty" yaml:"exit_conditions,omitempty" mapstructure:"exit_conditions"`
}

// MaxIterations returns the iteration bound, applying the default.
func (l *LoopControl) MaxIterations() int {
	if l == nil || l.Bounds <= 0 {
		return DefaultMaxIterations
	}
	return l.Bounds
}

// Cap returns the entropy cap, applying the default.
func (l *LoopControl) Cap() float64 {
	if l == nil || l.EntropyCap <= 0 {
		return DefaultEntropyCap
	}
	return l.EntropyCap
}

// Retries returns how many retries a failing node gets.
func (l *LoopControl) Retries() int {
	switch {
	case l == nil || l.RetryLimit == 0:
		return DefaultRetryLimit
	case l.RetryLimit < 0:
		return 0
	default:
		return l.RetryLimit
	}
}

// PatchMode selects how a reflex clause is spliced into a kernel.
type PatchMode string

const (
	// PatchAppend adds a new node that depends on the affected nodes.
	PatchAppend PatchMode = "append"
	// PatchReplace swaps the clause of every affected node.
	PatchReplace PatchMode = "replace"
)

// ReflexClause is a clause held in reserve for live adaptation.
type ReflexClause struct {
	ID      string    `json:"id" yaml:"id" mapstructure:"id"`
	Text    string    `json:"text" yaml:"text" mapstructure:"text"`
	Mode    PatchMode `json:"mode,omitempty" yaml:"mode,omitempty" mapstructure:"mode"`
	Outputs []string  `json:"outputs,omitempty" yaml:"outputs,omitempty" mapstructure:"outputs"`
}

// ReflexConfig maps event types to clause ids.
// A clause id is looked up in Clauses first, then among the kernel's own nodes.
type ReflexConfig struct {
	TriggerMap map[string]string       `json:"trigger_map,omitempty"`
	Clauses    map[string]ReflexClause `json:"clauses,omitempty"`
}

// CompositionRules carry composition metadata.
type CompositionRules struct {
	// Required lists node ids that may never be excised by degradation.
	Required []string `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	// Lineage lists the ids of the kernels merged into this one, in order.
	Lineage []string `json:"lineage,omitempty" yaml:"lineage,omitempty" mapstructure:"lineage"`
}

// IsRequired reports whether nodeID is protected from excision.
func (c *CompositionRules) IsRequired(nodeID string) bool {
	if c == nil {
		return false
	}
	for _, id := range c.Required {
		if id == nodeID {
			return true
		}
	}
	return false
}

// KernelObject is the immutable executable unit produced by collapsing a DAG.
// Every adaptation yields a new value; nothing edits a KernelObject in place.
type KernelObject struct {
	Format      string            `json:"format"`
	ID          string            `json:"id"`
	ClauseID    string            `json:"clause_id,omitempty"`
	Type        string            `json:"type,omitempty"`
	Role        string            `json:"role,omitempty"`
	Inputs      []string          `json:"inputs,omitempty"`
	Yields      []string          `json:"yields,omitempty"`
	Nodes       []DAGNode         `json:"dag_nodes"`
	Logic       ClauseLogic       `json:"logic"`
	Loop        *LoopControl      `json:"loop,omitempty"`
	Reflex      *ReflexConfig     `json:"reflex,omitempty"`
	Composition *CompositionRules `json:"composition,omitempty"`
	// Schema types context variables by name ("int", "string?", ...).
	Schema   map[string]string `json:"schema,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Node returns the node with the given id.
func (k *KernelObject) Node(id string) (DAGNode, bool) {
	for _, n := range k.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return DAGNode{}, false
}

// NodeIDs returns node ids in DAG order.
func (k *KernelObject) NodeIDs() []string {
	ids := make([]string, len(k.Nodes))
	for i, n := range k.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Clone returns a deep copy of the kernel.
func (k *KernelObject) Clone() *KernelObject {
	if k == nil {
		return nil
	}
	out := *k
	out.Inputs = cloneStrings(k.Inputs)
	out.Yields = cloneStrings(k.Yields)
	out.Nodes = make([]DAGNode, len(k.Nodes))
	for i, n := range k.Nodes {
		out.Nodes[i] = n.Clone()
	}
	out.Logic = ClauseLogic{
		Conditions: append([]Condition(nil), k.Logic.Conditions...),
		Actions:    append([]Action(nil), k.Logic.Actions...),
	}
	if k.Loop != nil {
		loop := *k.Loop
		loop.ExitConditions = cloneStrings(k.Loop.ExitConditions)
		out.Loop = &loop
	}
	if k.Reflex != nil {
		rc := ReflexConfig{}
		if k.Reflex.TriggerMap != nil {
			rc.TriggerMap = make(map[string]string, len(k.Reflex.TriggerMap))
			for ev, id := range k.Reflex.TriggerMap {
				rc.TriggerMap[ev] = id
			}
		}
		if k.Reflex.Clauses != nil {
			rc.Clauses = make(map[string]ReflexClause, len(k.Reflex.Clauses))
			for id, c := range k.Reflex.Clauses {
				c.Outputs = cloneStrings(c.Outputs)
				rc.Clauses[id] = c
			}
		}
		out.Reflex = &rc
	}
	if k.Composition != nil {
		out.Composition = &CompositionRules{
			Required: cloneStrings(k.Composition.Required),
			Lineage:  cloneStrings(k.Composition.Lineage),
		}
	}
	if k.Schema != nil {
		out.Schema = make(map[string]string, len(k.Schema))
		for key, v := range k.Schema {
			out.Schema[key] = v
		}
	}
	if k.Metadata != nil {
		out.Metadata = make(map[string]string, len(k.Metadata))
		for key, v := range k.Metadata {
			out.Metadata[key] = v
		}
	}
	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

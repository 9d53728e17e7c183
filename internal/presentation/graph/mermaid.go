package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/operad/pkg/domain"
)

// Overlay contains run state to visualize on the graph.
type Overlay struct {
	Completed []string
	Excised   []string
	Current   string
}

// OverlayFromState builds an overlay from a persisted run.
func OverlayFromState(s *domain.ExecutionState) *Overlay {
	if s == nil {
		return nil
	}
	return &Overlay{
		Completed: s.CompletedNodes,
		Excised:   s.Excised,
		Current:   s.CurrentNodeID,
	}
}

// GenerateMermaid produces a Mermaid flowchart of a kernel's DAG.
// It applies semantic styling:
// - trigger(...) actions: {{Hexagon}}
// - registered calls: [[Subroutine]]
// - set(...) and bare actions: [Rectangle]
// - required nodes: [(Cylinder)]
// Reflex triggers are drawn as flag nodes with a dotted edge to the clause
// they would patch in. Overlay styles (completed, excised, current) are
// applied when overlay is not nil.
func GenerateMermaid(ko *domain.KernelObject, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range ko.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case ko.Composition.IsRequired(node.ID):
			opener, closer = "[(", ")]"
		case node.Clause.Action.Name == "trigger":
			opener, closer = "{{", "}}"
		case node.Clause.Action.Kind == domain.ActionCall && node.Clause.Action.Name != "set":
			opener, closer = "[[", "]]"
		}

		label := node.ID
		if node.Clause.Raw != "" {
			label = fmt.Sprintf("%s <br/> %s", node.ID, escape(node.Clause.Condition.String()))
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		for _, dep := range node.Dependencies {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(dep), safeID))
		}
	}

	if ko.Reflex != nil && len(ko.Reflex.TriggerMap) > 0 {
		events := make([]string, 0, len(ko.Reflex.TriggerMap))
		for ev := range ko.Reflex.TriggerMap {
			events = append(events, ev)
		}
		sort.Strings(events)
		for _, ev := range events {
			clauseID := ko.Reflex.TriggerMap[ev]
			safeEv := "ev_" + sanitizeMermaidID(ev)
			mode := domain.PatchAppend
			if rc, ok := ko.Reflex.Clauses[clauseID]; ok && rc.Mode != "" {
				mode = rc.Mode
			}
			sb.WriteString(fmt.Sprintf("    %s>\"⚡ %s\"]\n", safeEv, ev))
			sb.WriteString(fmt.Sprintf("    %s -. \"%s\" .-> %s\n", safeEv, mode, sanitizeMermaidID(clauseID)))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef completed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef excised fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:5 5,color:#616161;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		writeClass(&sb, overlay.Completed, "completed")
		writeClass(&sb, overlay.Excised, "excised")
		if overlay.Current != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.Current)))
		}
	}

	return sb.String()
}

func writeClass(sb *strings.Builder, ids []string, class string) {
	seen := make(map[string]bool)
	for _, id := range ids {
		safeID := sanitizeMermaidID(id)
		if safeID == "" || seen[safeID] {
			continue
		}
		seen[safeID] = true
		sb.WriteString(fmt.Sprintf("    class %s %s;\n", safeID, class))
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", "@", "_at_", "∘", "_o_", " ", "_")
	return r.Replace(id)
}

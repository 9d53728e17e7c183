package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/operad/internal/composer"
	"github.com/aretw0/operad/pkg/domain"
)

// Explain describes a kernel as markdown: its nodes in execution order,
// loop control, reflex triggers and, when state is given, run progress.
func Explain(ko *domain.KernelObject, state *domain.ExecutionState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Kernel `%s`\n\n", ko.ID)
	if ko.Type != "" || ko.Role != "" {
		fmt.Fprintf(&sb, "Type **%s**, role **%s**.\n\n", orDash(ko.Type), orDash(ko.Role))
	}
	if fp := ko.Metadata[composer.MetaFingerprint]; fp != "" {
		fmt.Fprintf(&sb, "Fingerprint `%s`, %d nodes.\n\n", fp, len(ko.Nodes))
	}
	if len(ko.Inputs) > 0 || len(ko.Yields) > 0 {
		fmt.Fprintf(&sb, "Inputs: %s. Yields: %s.\n\n", list(ko.Inputs), list(ko.Yields))
	}

	sb.WriteString("## Clauses\n\n")
	sb.WriteString("| # | Node | When | Then | After |\n|---|---|---|---|---|\n")
	for i, n := range ko.Nodes {
		id := n.ID
		if ko.Composition.IsRequired(n.ID) {
			id += " (required)"
		}
		if state != nil {
			switch {
			case state.IsCompleted(n.ID):
				id = "✓ " + id
			case state.IsExcised(n.ID):
				id = "✗ " + id
			}
		}
		fmt.Fprintf(&sb, "| %d | %s | `%s` | `%s` | %s |\n",
			i+1, id, n.Clause.Condition, n.Clause.Action, list(n.Dependencies))
	}
	sb.WriteString("\n")

	sb.WriteString("## Loop control\n\n")
	fmt.Fprintf(&sb, "- Max iterations: %d\n", ko.Loop.MaxIterations())
	fmt.Fprintf(&sb, "- Entropy cap: %.2f\n", ko.Loop.Cap())
	fmt.Fprintf(&sb, "- Retry limit: %d\n", ko.Loop.Retries())
	if ko.Loop != nil && len(ko.Loop.ExitConditions) > 0 {
		fmt.Fprintf(&sb, "- Exit when: %s\n", list(ko.Loop.ExitConditions))
	}
	sb.WriteString("\n")

	if len(ko.Schema) > 0 {
		sb.WriteString("## Context\n\n")
		keys := make([]string, 0, len(ko.Schema))
		for k := range ko.Schema {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- `%s`: %s\n", k, ko.Schema[k])
		}
		sb.WriteString("\n")
	}

	if ko.Reflex != nil && len(ko.Reflex.TriggerMap) > 0 {
		sb.WriteString("## Reflexes\n\n")
		events := make([]string, 0, len(ko.Reflex.TriggerMap))
		for ev := range ko.Reflex.TriggerMap {
			events = append(events, ev)
		}
		sort.Strings(events)
		for _, ev := range events {
			id := ko.Reflex.TriggerMap[ev]
			rc, ok := ko.Reflex.Clauses[id]
			mode := rc.Mode
			if mode == "" {
				mode = domain.PatchAppend
			}
			if ok {
				fmt.Fprintf(&sb, "- `%s` → %s `%s`: `%s`\n", ev, mode, id, rc.Text)
			} else {
				fmt.Fprintf(&sb, "- `%s` → %s `%s`\n", ev, mode, id)
			}
		}
		sb.WriteString("\n")
	}

	if state != nil {
		sb.WriteString("## Run\n\n")
		fmt.Fprintf(&sb, "Run `%s` is **%s** after %d iterations, %d of %d nodes completed, entropy %.3f.\n",
			state.RunID, state.Status, state.Iteration, len(state.CompletedNodes), len(ko.Nodes), state.Entropy)
	}
	return sb.String()
}

func list(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return "`" + strings.Join(items, "`, `") + "`"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

/*
Package domain holds the value types shared by every operad component.

Nothing in here performs I/O. Clauses and kernel objects are immutable once
built; ExecutionState is the only mutable record and belongs to a single run.

# Key Entities

  - Value: closed union of bool, number and string flowing through a workflow.
  - Clause: a parsed WHEN/THEN rule.
  - DAGNode: a clause placed in a dependency graph.
  - KernelObject: the collapsed, re-runnable unit of execution.
  - ExecutionState: per-run progress, the marker used to resume.
  - ReflexEvent: an external signal that may patch a running kernel.
*/
package domain

/*
Package ports defines the driven ports (interfaces) of the operad engine.

These interfaces decouple kernel compilation and execution from storage and
transport, so the same engine runs against memory, files, Redis or Badger and
is served over HTTP or MCP.

# Key Interfaces

  - KernelStore: persists compiled kernel objects by id.
  - StateStore: persists ExecutionState by run id, the resumption marker of a run.
  - DistributedLocker: serializes access to a run across replicas.
  - ClauseSource: supplies raw clauses (e.g. a Loam markdown library).
  - KernelEngine: the compile/execute surface used by adapters.
*/
package ports

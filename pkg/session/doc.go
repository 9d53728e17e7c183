/*
Package session manages the lifecycle of persisted runs.

A Manager loads a run's state and kernel, executes it through a
ports.KernelEngine and saves the outcome before returning, holding a per-run
lock throughout. With a ports.DistributedLocker the lock also covers other
replicas sharing the same stores.
*/
package session

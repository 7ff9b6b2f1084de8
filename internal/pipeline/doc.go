// Package pipeline is the run-once execution engine: a validated acyclic job
// graph, a round-based concurrent scheduler, and the result aggregation that
// turns terminal job statuses into a single verdict and summary.
//
// The graph is immutable after construction; all runtime state lives in the
// Scheduler and is mutated only under its mutex. Job actions are black boxes
// supplied by the caller; their errors, panics and timeouts become job
// failures, never scheduler failures.
package pipeline

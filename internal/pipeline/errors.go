package pipeline

import (
	"fmt"
	"strings"
)

// CycleError reports that the declared prerequisites form a cycle.
// Path is one witness cycle, first and last element equal.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "pipeline: dependency cycle detected"
	}
	return "pipeline: dependency cycle: " + strings.Join(e.Path, " -> ")
}

// DuplicateNameError reports a job name declared more than once.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("pipeline: duplicate job name %q", e.Name)
}

// UnknownDependencyError reports a prerequisite that is not a declared job.
type UnknownDependencyError struct {
	Job        string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("pipeline: job %q needs unknown job %q", e.Job, e.Dependency)
}

// DeadlockError reports that the scheduler found no runnable job while the
// graph was still incomplete. With a validated acyclic graph this cannot
// happen; it exists so the run fails loudly instead of hanging.
type DeadlockError struct {
	Waiting []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("pipeline: deadlock, no job is ready but %d still pending: %s",
		len(e.Waiting), strings.Join(e.Waiting, ", "))
}

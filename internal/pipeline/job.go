package pipeline

import "context"

// Action is the work a job performs. It receives the run context (run ID,
// artifact store handle, status snapshots) and returns its captured output.
// A nil error means success; a non-nil error is recorded as the job's failure
// detail. Actions must honor ctx cancellation.
type Action func(ctx context.Context, run *RunContext) (output string, err error)

// Job declares one unit of pipeline work.
//
// AlwaysRun and Required are deliberately orthogonal: AlwaysRun decides
// whether the job executes after an upstream failure, Required decides
// whether its outcome counts toward the run verdict. A continue-on-error
// lint job is Required=false, AlwaysRun=false; the terminal summary job is
// AlwaysRun=true, Required=false.
type Job struct {
	Name      string
	Needs     []string
	AlwaysRun bool
	Required  bool
	Action    Action
}

// JobResult is the recorded outcome of one job in a finished (or aborted) run.
type JobResult struct {
	Name   string
	Status Status
	Output string
	Detail string // failure or skip reason, empty on success
}

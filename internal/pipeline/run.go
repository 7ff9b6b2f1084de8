package pipeline

import (
	"time"

	"gantry/internal/artifact"
)

// Run is one end-to-end execution of a pipeline. The scheduler creates it,
// mutates it while driving the graph, and seals it by setting the verdict;
// callers must treat a sealed Run as immutable.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Verdict    Verdict
}

// RunResult is everything a caller learns about a finished run: the sealed
// Run, per-job outcomes in declaration order, and the rendered summary.
type RunResult struct {
	Run     Run
	Jobs    []JobResult
	Summary string
}

// RunContext is the handle passed to every job action. It exposes the run
// identifier, the shared artifact store, and read-only status snapshots so
// the terminal summary job can aggregate its siblings.
type RunContext struct {
	RunID     string
	Artifacts *artifact.Store

	sched *Scheduler
}

// Statuses returns a snapshot of the current status of every job.
func (rc *RunContext) Statuses() map[string]Status {
	return rc.sched.snapshotStatuses()
}

// Results returns a snapshot of the per-job results in declaration order.
func (rc *RunContext) Results() []JobResult {
	return rc.sched.snapshotResults()
}

// Summarize computes the verdict and renders the human-readable summary from
// the current snapshot. Intended for the terminal summary job's action.
func (rc *RunContext) Summarize() (Verdict, string) {
	return rc.summarizeExcluding("")
}

// summarizeExcluding is Summarize with the named job's line omitted. The
// aggregation job renders while its own status is still running, so it
// excludes itself rather than report a bogus state.
func (rc *RunContext) summarizeExcluding(name string) (Verdict, string) {
	jobs := rc.sched.graph.Jobs()
	results := rc.sched.snapshotResults()
	if name != "" {
		kept := make([]JobResult, 0, len(results))
		for _, r := range results {
			if r.Name != name {
				kept = append(kept, r)
			}
		}
		results = kept
	}
	v := ComputeVerdict(jobs, rc.sched.snapshotStatuses())
	return v, RenderSummary(rc.RunID, v, results)
}

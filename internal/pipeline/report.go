package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// ComputeVerdict derives the run verdict from terminal job statuses.
// The run succeeds iff every required job reached success; a skipped required
// job counts as failure, since the testing it stands for never happened.
// Pure function of its inputs.
func ComputeVerdict(jobs []Job, statuses map[string]Status) Verdict {
	for _, j := range jobs {
		if !j.Required {
			continue
		}
		if statuses[j.Name] != StatusSuccess {
			return VerdictFailure
		}
	}
	return VerdictSuccess
}

// RenderSummary formats one line per job in declaration order, distinguishing
// "failed", "skipped (upstream failure)" and "never ran" so the root cause is
// readable at a glance.
func RenderSummary(runID string, verdict Verdict, results []JobResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s verdict: %s\n", runID, verdict)

	width := 0
	for _, r := range results {
		if len(r.Name) > width {
			width = len(r.Name)
		}
	}

	for _, r := range results {
		status := string(r.Status)
		switch r.Status {
		case StatusPending, StatusRunning:
			status = "never ran"
		}
		fmt.Fprintf(&b, "  %-*s  %s", width, r.Name, status)
		if r.Detail != "" {
			fmt.Fprintf(&b, "  (%s)", r.Detail)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// SummaryJob builds the terminal result-aggregation job: always run, not
// counted toward the verdict, and depending on every name in others so the
// scheduler invokes it exactly once, last.
func SummaryJob(name string, others []string) Job {
	needs := append([]string(nil), others...)
	return Job{
		Name:      name,
		Needs:     needs,
		AlwaysRun: true,
		Required:  false,
		Action: func(_ context.Context, run *RunContext) (string, error) {
			_, text := run.summarizeExcluding(name)
			return text, nil
		},
	}
}

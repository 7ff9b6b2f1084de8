package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeVerdict(t *testing.T) {
	jobs := []Job{
		{Name: "build", Required: true},
		{Name: "lint", Required: false},
		{Name: "unit", Required: true},
		{Name: "summary", Required: false, AlwaysRun: true},
	}

	cases := []struct {
		name     string
		statuses map[string]Status
		want     Verdict
	}{
		{
			"all green",
			map[string]Status{"build": StatusSuccess, "lint": StatusSuccess, "unit": StatusSuccess, "summary": StatusSuccess},
			VerdictSuccess,
		},
		{
			"optional job failed",
			map[string]Status{"build": StatusSuccess, "lint": StatusFailure, "unit": StatusSuccess, "summary": StatusSuccess},
			VerdictSuccess,
		},
		{
			"required job failed",
			map[string]Status{"build": StatusSuccess, "lint": StatusSuccess, "unit": StatusFailure, "summary": StatusSuccess},
			VerdictFailure,
		},
		{
			"required job skipped counts as failure",
			map[string]Status{"build": StatusFailure, "lint": StatusSkipped, "unit": StatusSkipped, "summary": StatusSuccess},
			VerdictFailure,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeVerdict(jobs, tc.statuses))
		})
	}
}

func TestRenderSummary(t *testing.T) {
	results := []JobResult{
		{Name: "build", Status: StatusSuccess},
		{Name: "lint", Status: StatusFailure, Detail: "exit status 1"},
		{Name: "unit", Status: StatusSkipped, Detail: "upstream failure: build"},
		{Name: "system", Status: StatusPending},
	}

	out := RenderSummary("run-1", VerdictFailure, results)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Equal(t, "run run-1 verdict: failure", lines[0])
	assert.Len(t, lines, 5)

	// Declaration order preserved, with distinguishable outcomes.
	assert.Contains(t, lines[1], "build")
	assert.Contains(t, lines[1], "success")
	assert.Contains(t, lines[2], "failure")
	assert.Contains(t, lines[2], "exit status 1")
	assert.Contains(t, lines[3], "skipped")
	assert.Contains(t, lines[4], "never ran")
}

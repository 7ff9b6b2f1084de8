// Package driver assembles a parsed pipeline definition into an executable
// job graph and owns the collaborators around the engine: shell execution,
// log storage, the signed run journal, and artifact sweeping.
package driver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"gantry/internal/artifact"
	"gantry/internal/config"
	"gantry/internal/execute"
	"gantry/internal/journal"
	"gantry/internal/pipeline"
	"gantry/internal/probe"
	"gantry/internal/storage"
	"gantry/pkg/hashutil"
)

// SummaryJobName is the auto-appended terminal aggregation job. Pipelines
// must not declare a job with this name.
const SummaryJobName = "summary"

// Runner executes pipeline definitions end to end.
type Runner struct {
	Exec    *execute.Runner
	Logs    *storage.LogStore
	Journal *journal.Journal // optional; nil disables journaling
	Client  *http.Client     // readiness probe client; nil uses the default
	Logger  *slog.Logger
}

// RunPipeline builds the graph for p, drives it to completion and records
// job logs and journal entries. runID may be empty to get a generated one.
// Artifacts of the run are swept once everything is terminal.
func (r *Runner) RunPipeline(ctx context.Context, p *config.Pipeline, runID string) (*pipeline.RunResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jobs := make([]pipeline.Job, 0, len(p.Jobs)+1)
	names := make([]string, 0, len(p.Jobs))
	for _, spec := range p.Jobs {
		jobs = append(jobs, r.buildJob(spec))
		names = append(names, spec.Name)
	}
	jobs = append(jobs, pipeline.SummaryJob(SummaryJobName, names))

	graph, err := pipeline.NewGraph(jobs)
	if err != nil {
		return nil, err
	}

	store := artifact.NewStore()
	sched := pipeline.NewScheduler(graph, store, pipeline.Options{
		RunID:         runID,
		MaxConcurrent: p.MaxConcurrent,
		GracePeriod:   p.GracePeriod.Std(),
		Logger:        logger,
	})

	result, err := sched.Execute(ctx)
	if err != nil {
		return nil, err
	}
	// The run is terminal: artifact lifetime ends here.
	defer store.Sweep(result.Run.ID)

	r.recordRun(p.Name, result, logger)
	return result, nil
}

// buildJob turns one JobSpec into an engine job: optional readiness wait,
// artifact consumption via environment, the shell step, then publication.
func (r *Runner) buildJob(spec config.JobSpec) pipeline.Job {
	action := func(ctx context.Context, run *pipeline.RunContext) (string, error) {
		if spec.ReadyURL != "" {
			err := probe.WaitForReady(ctx, r.Client, spec.ReadyURL,
				spec.ReadyTimeout.Std(), spec.ReadyInterval.Std())
			if err != nil {
				return "", err
			}
		}

		var extraEnv []string
		for _, name := range spec.Consumes {
			payload, err := run.Artifacts.Get(run.RunID, name)
			if err != nil {
				return "", err
			}
			extraEnv = append(extraEnv, "GANTRY_ARTIFACT_"+envKey(name)+"="+string(payload))
		}

		out, err := r.Exec.Run(ctx, spec.Run, spec.Timeout.Std(), extraEnv...)
		if err != nil {
			return out, err
		}

		if spec.Publishes != "" {
			// Convention: a publishing step prints the artifact reference
			// (e.g. the image tag) as its last output line.
			ref := lastLine(out)
			if err := run.Artifacts.Put(run.RunID, spec.Publishes, []byte(ref)); err != nil {
				return out, err
			}
		}
		return out, nil
	}

	return pipeline.Job{
		Name:      spec.Name,
		Needs:     spec.Needs,
		AlwaysRun: spec.AlwaysRun,
		Required:  spec.IsRequired(),
		Action:    action,
	}
}

// recordRun persists job logs and appends journal entries. Both are
// best-effort: a full log disk must not turn a green run red.
func (r *Runner) recordRun(pipelineName string, result *pipeline.RunResult, logger *slog.Logger) {
	for _, jr := range result.Jobs {
		logHash := ""
		if r.Logs != nil {
			path, err := r.Logs.SaveJobLog(result.Run.ID, jr.Name, jr.Output)
			if err != nil {
				logger.Warn("cannot save job log", "job", jr.Name, "err", err)
			} else if h, err := hashutil.HashFile(path); err == nil {
				logHash = h
			}
		}
		if logHash == "" {
			logHash = hashutil.HashString(jr.Output)
		}

		if r.Journal != nil {
			if _, err := r.Journal.Append(result.Run.ID, pipelineName, jr.Name, string(jr.Status), logHash); err != nil {
				logger.Warn("cannot append journal entry", "job", jr.Name, "err", err)
			}
		}
	}
}

// lastLine returns the last non-empty line of out, trimmed.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// envKey maps an artifact name to an environment variable suffix.
func envKey(name string) string {
	up := strings.ToUpper(name)
	var b strings.Builder
	for _, r := range up {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

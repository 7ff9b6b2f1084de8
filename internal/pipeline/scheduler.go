package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gantry/internal/artifact"
)

// Options configures a Scheduler.
type Options struct {
	// RunID identifies the run; a fresh UUID is generated when empty.
	RunID string

	// MaxConcurrent caps how many ready jobs run in parallel within a batch.
	// Zero means unbounded: one goroutine per ready job.
	MaxConcurrent int

	// GracePeriod is how long running jobs get to return after the run
	// context is cancelled before they are recorded as timed out.
	GracePeriod time.Duration

	Logger *slog.Logger
}

// DefaultGracePeriod applies when Options.GracePeriod is zero.
const DefaultGracePeriod = 10 * time.Second

// Scheduler drives a Graph to completion. Rounds alternate between computing
// the ready set and running that whole batch concurrently; the status map is
// only ever mutated under mu, so ReadyJobs always sees a consistent view.
type Scheduler struct {
	graph *Graph
	store *artifact.Store
	opts  Options
	log   *slog.Logger

	mu       sync.Mutex
	statuses map[string]Status
	results  map[string]*JobResult
}

// NewScheduler prepares a scheduler with every job pending.
func NewScheduler(g *Graph, store *artifact.Store, opts Options) *Scheduler {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	statuses := make(map[string]Status, len(g.jobs))
	results := make(map[string]*JobResult, len(g.jobs))
	for _, j := range g.jobs {
		statuses[j.Name] = StatusPending
		results[j.Name] = &JobResult{Name: j.Name, Status: StatusPending}
	}
	return &Scheduler{
		graph:    g,
		store:    store,
		opts:     opts,
		log:      logger.With("run_id", opts.RunID),
		statuses: statuses,
		results:  results,
	}
}

// Execute runs the graph until every job is terminal, then seals and returns
// the run. Job failures (including panics and timeouts inside actions) never
// abort execution; only scheduler invariant violations do.
func (s *Scheduler) Execute(ctx context.Context) (*RunResult, error) {
	run := Run{ID: s.opts.RunID, StartedAt: time.Now().UTC(), Verdict: VerdictPending}
	rc := &RunContext{RunID: run.ID, Artifacts: s.store, sched: s}
	s.log.Info("run started", "jobs", len(s.graph.jobs))

	for {
		s.mu.Lock()
		if s.graph.IsComplete(s.statuses) {
			s.mu.Unlock()
			break
		}

		ready := s.graph.ReadyJobs(s.statuses)
		if len(ready) == 0 {
			// Impossible for a validated DAG between batches, but fail the
			// run rather than spin forever if the invariant is ever broken.
			waiting := s.graph.pendingNames(s.statuses)
			s.mu.Unlock()
			return nil, &DeadlockError{Waiting: waiting}
		}

		var batch []Job
		for _, name := range ready {
			job, _ := s.graph.Job(name)

			if blocker, blocked := s.graph.BlockedBy(name, s.statuses); blocked && !job.AlwaysRun {
				if err := s.markLocked(name, StatusSkipped, "", "upstream failure: "+blocker); err != nil {
					s.mu.Unlock()
					return nil, err
				}
				continue
			}
			if ctx.Err() != nil && !job.AlwaysRun {
				if err := s.markLocked(name, StatusSkipped, "", "run aborted"); err != nil {
					s.mu.Unlock()
					return nil, err
				}
				continue
			}

			if err := s.transitionLocked(name, StatusPending, StatusRunning); err != nil {
				s.mu.Unlock()
				return nil, err
			}
			batch = append(batch, job)
		}
		s.mu.Unlock()

		if len(batch) == 0 {
			continue // the round only produced skips; recompute readiness
		}
		if err := s.runBatch(ctx, rc, batch); err != nil {
			return nil, err
		}
	}

	jobs := s.graph.Jobs()
	statuses := s.snapshotStatuses()
	run.FinishedAt = time.Now().UTC()
	run.Verdict = ComputeVerdict(jobs, statuses)

	results := s.snapshotResults()
	s.log.Info("run finished", "verdict", run.Verdict,
		"duration", run.FinishedAt.Sub(run.StartedAt).String())

	return &RunResult{
		Run:     run,
		Jobs:    results,
		Summary: RenderSummary(run.ID, run.Verdict, results),
	}, nil
}

type jobDone struct {
	name   string
	output string
	err    error
}

// runBatch executes one ready batch concurrently and waits for it. After the
// run context is cancelled, jobs get GracePeriod to return cooperatively;
// stragglers are recorded as failed with a timeout detail and abandoned.
func (s *Scheduler) runBatch(ctx context.Context, rc *RunContext, batch []Job) error {
	done := make(chan jobDone, len(batch))

	var sem chan struct{}
	if s.opts.MaxConcurrent > 0 {
		sem = make(chan struct{}, s.opts.MaxConcurrent)
	}

	for _, job := range batch {
		go func(job Job) {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			defer func() {
				if r := recover(); r != nil {
					done <- jobDone{name: job.Name, err: fmt.Errorf("action panic: %v", r)}
				}
			}()
			s.log.Info("job started", "job", job.Name)
			out, err := job.Action(ctx, rc)
			done <- jobDone{name: job.Name, output: out, err: err}
		}(job)
	}

	remaining := len(batch)
	cancelled := ctx.Done()
	var grace <-chan time.Time

	for remaining > 0 {
		select {
		case d := <-done:
			if err := s.record(d); err != nil {
				return err
			}
			remaining--

		case <-cancelled:
			cancelled = nil // arm the grace timer once
			grace = time.After(s.opts.GracePeriod)

		case <-grace:
			// Whatever is still running did not respond to cancellation in
			// time. Record the timeout and stop waiting; late completions
			// find a terminal status and are dropped by record.
			s.mu.Lock()
			for _, job := range batch {
				if s.statuses[job.Name] != StatusRunning {
					continue
				}
				if err := s.markLocked(job.Name, StatusFailure, "", "TimedOut: job did not stop within grace period"); err != nil {
					s.mu.Unlock()
					return err
				}
				s.log.Warn("job timed out", "job", job.Name, "grace", s.opts.GracePeriod.String())
			}
			s.mu.Unlock()
			remaining = 0
		}
	}
	return nil
}

// record commits one action outcome. Outcomes arriving after the job was
// already forced terminal (grace timeout) are discarded.
func (s *Scheduler) record(d jobDone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statuses[d.name] != StatusRunning {
		s.log.Debug("dropping late job result", "job", d.name)
		return nil
	}
	if d.err != nil {
		s.log.Warn("job failed", "job", d.name, "err", d.err)
		return s.markLocked(d.name, StatusFailure, d.output, d.err.Error())
	}
	s.log.Info("job succeeded", "job", d.name)
	return s.markLocked(d.name, StatusSuccess, d.output, "")
}

// markLocked transitions a job to a terminal status and stores its result.
// Caller holds mu.
func (s *Scheduler) markLocked(name string, to Status, output, detail string) error {
	if err := s.transitionLocked(name, s.statuses[name], to); err != nil {
		return err
	}
	r := s.results[name]
	r.Status = to
	r.Output = output
	r.Detail = detail
	return nil
}

// transitionLocked applies one validated status transition. Caller holds mu.
func (s *Scheduler) transitionLocked(name string, from, to Status) error {
	cur, ok := s.statuses[name]
	if !ok {
		return fmt.Errorf("pipeline: unknown job %q in status map", name)
	}
	if cur != from {
		return fmt.Errorf("pipeline: job %q is %s, expected %s", name, cur, from)
	}
	if !allowedTransition(from, to) {
		return fmt.Errorf("pipeline: job %q cannot go %s -> %s", name, from, to)
	}
	s.statuses[name] = to
	if to == StatusRunning {
		s.results[name].Status = to
	}
	return nil
}

func (s *Scheduler) snapshotStatuses() map[string]Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]Status, len(s.statuses))
	for k, v := range s.statuses {
		cp[k] = v
	}
	return cp
}

// snapshotResults copies results in graph declaration order.
func (s *Scheduler) snapshotResults() []JobResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobResult, 0, len(s.graph.jobs))
	for _, j := range s.graph.jobs {
		out = append(out, *s.results[j.Name])
	}
	return out
}

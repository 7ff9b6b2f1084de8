package driver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gantry/internal/config"
	"gantry/internal/execute"
	"gantry/internal/journal"
	"gantry/internal/pipeline"
	"gantry/internal/security"
	"gantry/internal/storage"
)

func testRunner(t *testing.T) (*Runner, *journal.Journal) {
	t.Helper()
	pub, priv, err := security.GenerateKeyPair()
	require.NoError(t, err)
	jnl, err := journal.Open(filepath.Join(t.TempDir(), "journal.jsonl"), priv, pub)
	require.NoError(t, err)

	return &Runner{
		Exec:    &execute.Runner{},
		Logs:    storage.NewLogStore(t.TempDir()),
		Journal: jnl,
	}, jnl
}

func TestRunPipeline_EndToEnd(t *testing.T) {
	r, jnl := testRunner(t)

	p, err := config.ParsePipeline([]byte(`
name: demo
jobs:
  - name: build
    run: echo calcsvc:abc123
    publishes: image
  - name: lint
    needs: [build]
    run: "false"
    required: false
  - name: unit
    needs: [build]
    consumes: [image]
    run: test "$GANTRY_ARTIFACT_IMAGE" = "calcsvc:abc123"
`))
	require.NoError(t, err)

	res, err := r.RunPipeline(context.Background(), p, "run-e2e")
	require.NoError(t, err)

	assert.Equal(t, "run-e2e", res.Run.ID)
	assert.Equal(t, pipeline.VerdictSuccess, res.Run.Verdict, res.Summary)

	byName := map[string]pipeline.JobResult{}
	for _, jr := range res.Jobs {
		byName[jr.Name] = jr
	}
	assert.Equal(t, pipeline.StatusSuccess, byName["build"].Status)
	assert.Equal(t, pipeline.StatusFailure, byName["lint"].Status, "lint fails but is not required")
	assert.Equal(t, pipeline.StatusSuccess, byName["unit"].Status, "artifact must reach the consuming step")
	assert.Equal(t, pipeline.StatusSuccess, byName[SummaryJobName].Status)

	// One journal entry per job including the summary, chain intact.
	assert.Len(t, jnl.Entries(), 4)
	assert.NoError(t, jnl.Verify())

	// Job logs landed under the run directory.
	entries, err := os.ReadDir(r.Logs.RunDir("run-e2e"))
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestRunPipeline_BuildFailureSkipsEverything(t *testing.T) {
	r, _ := testRunner(t)

	p, err := config.ParsePipeline([]byte(`
name: demo
jobs:
  - name: build
    run: "exit 1"
  - name: unit
    needs: [build]
    run: echo never
  - name: system
    needs: [build]
    run: echo never
`))
	require.NoError(t, err)

	res, err := r.RunPipeline(context.Background(), p, "")
	require.NoError(t, err)

	assert.Equal(t, pipeline.VerdictFailure, res.Run.Verdict)
	for _, jr := range res.Jobs {
		switch jr.Name {
		case "build":
			assert.Equal(t, pipeline.StatusFailure, jr.Status)
		case SummaryJobName:
			assert.Equal(t, pipeline.StatusSuccess, jr.Status)
		default:
			assert.Equal(t, pipeline.StatusSkipped, jr.Status, jr.Name)
		}
	}
	assert.Contains(t, res.Summary, "verdict: failure")
}

func TestRunPipeline_ReadinessGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, _ := testRunner(t)
	r.Client = srv.Client()

	p, err := config.ParsePipeline([]byte(`
name: demo
jobs:
  - name: system
    run: echo probed
    ready_url: ` + srv.URL + `
    ready_timeout: 2s
    ready_interval: 10ms
`))
	require.NoError(t, err)

	res, err := r.RunPipeline(context.Background(), p, "")
	require.NoError(t, err)
	assert.Equal(t, pipeline.VerdictSuccess, res.Run.Verdict, res.Summary)
}

func TestRunPipeline_ReadinessTimeoutFailsOnlyThatJob(t *testing.T) {
	r, _ := testRunner(t)

	p, err := config.ParsePipeline([]byte(`
name: demo
jobs:
  - name: unit
    run: echo ok
  - name: system
    run: echo never
    ready_url: http://127.0.0.1:1/healthz
    ready_timeout: 50ms
    ready_interval: 10ms
`))
	require.NoError(t, err)

	res, err := r.RunPipeline(context.Background(), p, "")
	require.NoError(t, err)

	assert.Equal(t, pipeline.VerdictFailure, res.Run.Verdict)
	for _, jr := range res.Jobs {
		switch jr.Name {
		case "system":
			assert.Equal(t, pipeline.StatusFailure, jr.Status)
			assert.Contains(t, jr.Detail, "not ready after")
		case "unit":
			assert.Equal(t, pipeline.StatusSuccess, jr.Status, "siblings keep their own outcome")
		}
	}
}

func TestRunPipeline_GraphErrorsSurface(t *testing.T) {
	r, _ := testRunner(t)

	p, err := config.ParsePipeline([]byte(`
name: demo
jobs:
  - name: a
    needs: [b]
    run: echo a
  - name: b
    needs: [a]
    run: echo b
`))
	require.NoError(t, err)

	_, err = r.RunPipeline(context.Background(), p, "")
	var cyc *pipeline.CycleError
	require.ErrorAs(t, err, &cyc)
}

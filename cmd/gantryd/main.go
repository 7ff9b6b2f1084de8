// Command gantryd is the pipeline control server: it accepts YAML pipeline
// definitions over HTTP, executes each submission as one run, and serves run
// status and summaries.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"gantry/internal/config"
	"gantry/internal/driver"
	"gantry/internal/execute"
	"gantry/internal/pipeline"
	"gantry/internal/storage"
)

type runState struct {
	Status  string
	Result  *pipeline.RunResult
	FailErr string
}

type server struct {
	runner *driver.Runner
	base   context.Context

	mu   sync.Mutex
	runs map[string]*runState
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/pipelines", s.handleSubmit)
	r.Get("/runs/{id}", s.handleRunStatus)

	return r
}

// handleSubmit parses the posted pipeline and starts a run in the background.
func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
		return
	}
	p, err := config.ParsePipeline(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	runID := uuid.NewString()
	s.mu.Lock()
	s.runs[runID] = &runState{Status: "running"}
	s.mu.Unlock()

	// Runs outlive the request; they stop with the server's base context.
	go func() {
		result, err := s.runner.RunPipeline(s.base, p, runID)

		s.mu.Lock()
		defer s.mu.Unlock()
		st := s.runs[runID]
		if err != nil {
			st.Status = "error"
			st.FailErr = err.Error()
			slog.Error("run aborted", "run_id", runID, "err", err)
			return
		}
		st.Status = string(result.Run.Verdict)
		st.Result = result
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "running"})
}

// handleRunStatus reports one run's state, with verdict and summary once done.
func (s *server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// The submit goroutine mutates run states under the same lock, so the
	// snapshot has to be taken before releasing it.
	s.mu.Lock()
	st, ok := s.runs[id]
	var snap runState
	if ok {
		snap = *st
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}

	resp := map[string]any{"run_id": id, "status": snap.Status}
	if snap.FailErr != "" {
		resp["error"] = snap.FailErr
	}
	if snap.Result != nil {
		resp["verdict"] = snap.Result.Run.Verdict
		resp["summary"] = snap.Result.Summary
		resp["jobs"] = snap.Result.Jobs
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}
	logsDir := os.Getenv("GANTRY_LOGS_DIR")
	if logsDir == "" {
		logsDir = "./runs"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &server{
		runner: &driver.Runner{
			Exec:   &execute.Runner{},
			Logs:   storage.NewLogStore(logsDir),
			Logger: logger,
		},
		base: ctx,
		runs: make(map[string]*runState),
	}

	httpSrv := &http.Server{Addr: ":" + port, Handler: srv.routes()}
	go func() {
		slog.Info("gantryd listening", "port", port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("gantryd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

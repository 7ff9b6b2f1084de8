// Command gantry runs a pipeline definition once and exits zero only when
// the run verdict is success. The summary is printed to stdout in job
// declaration order.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gantry/internal/config"
	"gantry/internal/driver"
	"gantry/internal/execute"
	"gantry/internal/journal"
	"gantry/internal/pipeline"
	"gantry/internal/security"
	"gantry/internal/storage"
)

func main() {
	pipelinePath := flag.String("pipeline", "pipeline.yaml", "path to the pipeline definition")
	runID := flag.String("run-id", "", "run identifier (generated when empty)")
	logsDir := flag.String("logs", "./runs", "directory for per-run job logs")
	journalPath := flag.String("journal", "./journal.jsonl", "run journal file; empty disables journaling")
	keysDir := flag.String("keys", "./keys", "directory holding the journal signing keypair")
	timeout := flag.Duration("timeout", 0, "overall run timeout; 0 means none")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	p, err := config.LoadPipeline(*pipelinePath)
	if err != nil {
		slog.Error("cannot load pipeline", "path", *pipelinePath, "err", err)
		os.Exit(2)
	}

	var jnl *journal.Journal
	if *journalPath != "" {
		pub, priv, err := security.EnsureKeyPair(*keysDir)
		if err != nil {
			slog.Error("cannot initialise journal keys", "err", err)
			os.Exit(2)
		}
		jnl, err = journal.Open(*journalPath, priv, pub)
		if err != nil {
			slog.Error("cannot open run journal", "path", *journalPath, "err", err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	runner := &driver.Runner{
		Exec:    &execute.Runner{},
		Logs:    storage.NewLogStore(*logsDir),
		Journal: jnl,
		Logger:  logger,
	}

	start := time.Now()
	result, err := runner.RunPipeline(ctx, p, *runID)
	if err != nil {
		slog.Error("run aborted", "err", err)
		os.Exit(2)
	}

	fmt.Print(result.Summary)
	slog.Info("run complete",
		"run_id", result.Run.ID,
		"verdict", result.Run.Verdict,
		"elapsed", time.Since(start).String(),
	)

	if result.Run.Verdict != pipeline.VerdictSuccess {
		os.Exit(1)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const samplePipeline = `
name: calc-ci
max_concurrent: 4
grace_period: 15s

jobs:
  - name: build
    run: make image
    publishes: image
    timeout: 10m
  - name: lint
    needs: [build]
    run: go vet ./...
    required: false
  - name: system
    needs: [build]
    consumes: [image]
    run: ./system_test.sh
    ready_url: http://localhost:8080/healthz
`

func TestParsePipeline(t *testing.T) {
	p, err := ParsePipeline([]byte(samplePipeline))
	if err != nil {
		t.Fatalf("ParsePipeline: %v", err)
	}

	if p.Name != "calc-ci" {
		t.Errorf("Name: got %q", p.Name)
	}
	if p.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent: got %d", p.MaxConcurrent)
	}
	if p.GracePeriod.Std() != 15*time.Second {
		t.Errorf("GracePeriod: got %s", p.GracePeriod.Std())
	}
	if len(p.Jobs) != 3 {
		t.Fatalf("Jobs: got %d, want 3", len(p.Jobs))
	}

	build := p.Jobs[0]
	if build.Timeout.Std() != 10*time.Minute {
		t.Errorf("build timeout: got %s", build.Timeout.Std())
	}
	if build.Publishes != "image" {
		t.Errorf("build publishes: got %q", build.Publishes)
	}
	if !build.IsRequired() {
		t.Error("required should default to true")
	}

	lint := p.Jobs[1]
	if lint.IsRequired() {
		t.Error("lint declared required: false")
	}
	if len(lint.Needs) != 1 || lint.Needs[0] != "build" {
		t.Errorf("lint needs: got %v", lint.Needs)
	}

	system := p.Jobs[2]
	if system.ReadyURL == "" {
		t.Fatal("system ready_url missing")
	}
	if system.ReadyTimeout.Std() != DefaultReadyTimeout {
		t.Errorf("ready_timeout default: got %s", system.ReadyTimeout.Std())
	}
	if system.ReadyInterval.Std() != DefaultReadyInterval {
		t.Errorf("ready_interval default: got %s", system.ReadyInterval.Std())
	}
}

func TestParsePipeline_Defaults(t *testing.T) {
	p, err := ParsePipeline([]byte("jobs:\n  - name: a\n    run: \"true\"\n"))
	if err != nil {
		t.Fatalf("ParsePipeline: %v", err)
	}
	if p.Name != "pipeline" {
		t.Errorf("default name: got %q", p.Name)
	}
	if p.Jobs[0].Timeout.Std() != DefaultStepTimeout {
		t.Errorf("default timeout: got %s", p.Jobs[0].Timeout.Std())
	}
}

func TestParsePipeline_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"no jobs", "name: x\n", "declares no jobs"},
		{"unnamed job", "jobs:\n  - run: \"true\"\n", "needs a name"},
		{"no run step", "jobs:\n  - name: a\n", "no run step"},
		{"negative concurrency", "max_concurrent: -1\njobs:\n  - name: a\n    run: \"true\"\n", "must not be negative"},
		{"bad duration", "jobs:\n  - name: a\n    run: \"true\"\n    timeout: soon\n", "invalid duration"},
		{"not yaml", "{{", "parse yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePipeline([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error: got %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestDuration_IntegerSeconds(t *testing.T) {
	p, err := ParsePipeline([]byte("grace_period: 30\njobs:\n  - name: a\n    run: \"true\"\n"))
	if err != nil {
		t.Fatalf("ParsePipeline: %v", err)
	}
	if p.GracePeriod.Std() != 30*time.Second {
		t.Errorf("integer duration: got %s, want 30s", p.GracePeriod.Std())
	}
}

func TestLoadPipeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(samplePipeline), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}
	if p.Name != "calc-ci" {
		t.Errorf("Name: got %q", p.Name)
	}

	if _, err := LoadPipeline(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

// The pipeline shipped at the repo root must stay loadable and keep the shape
// the walkthrough in its comments describes.
func TestLoadShippedPipeline(t *testing.T) {
	p, err := LoadPipeline(filepath.Join("..", "..", "pipeline.yaml"))
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}
	if p.Name != "calc-ci" {
		t.Errorf("Name: got %q", p.Name)
	}

	byName := make(map[string]JobSpec, len(p.Jobs))
	for _, j := range p.Jobs {
		byName[j.Name] = j
	}
	for _, name := range []string{"build", "lint", "unit", "integration", "deploy", "system", "teardown"} {
		if _, ok := byName[name]; !ok {
			t.Fatalf("shipped pipeline is missing job %q", name)
		}
	}

	if byName["build"].Publishes != "image" {
		t.Error("build should publish the image artifact")
	}
	if got := byName["deploy"].Consumes; len(got) != 1 || got[0] != "image" {
		t.Errorf("deploy consumes: got %v", got)
	}
	if byName["system"].ReadyURL == "" {
		t.Error("system should gate on a readiness probe")
	}
	if !byName["teardown"].AlwaysRun || byName["teardown"].IsRequired() {
		t.Error("teardown should be always_run and not required")
	}
}

// Package config loads the pipeline definition file.
//
// A pipeline file declares the fixed job set, their prerequisites, the shell
// step each job runs, and per-job knobs: always_run, required, timeouts,
// artifact publication/consumption and an optional readiness probe.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied before validation.
const (
	DefaultStepTimeout   = 5 * time.Minute
	DefaultReadyTimeout  = 30 * time.Second
	DefaultReadyInterval = 2 * time.Second
)

// Duration wraps time.Duration so pipeline files can say "90s" or "5m".
// A bare integer is read as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		v, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, perr)
		}
		*d = Duration(v)
		return nil
	}
	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("config: invalid duration value on line %d", value.Line)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Pipeline is the parsed pipeline definition.
type Pipeline struct {
	// Name labels the pipeline in logs and the run journal.
	Name string `yaml:"name"`

	// MaxConcurrent caps parallel jobs per scheduling round; 0 = unbounded.
	MaxConcurrent int `yaml:"max_concurrent"`

	// GracePeriod is how long running jobs may linger after an abort before
	// being recorded as timed out. Zero uses the engine default.
	GracePeriod Duration `yaml:"grace_period"`

	Jobs []JobSpec `yaml:"jobs"`
}

// JobSpec declares one job of the pipeline.
type JobSpec struct {
	Name  string   `yaml:"name"`
	Needs []string `yaml:"needs"`

	// Run is the shell step executed for this job.
	Run string `yaml:"run"`

	// Timeout bounds the shell step (default 5m).
	Timeout Duration `yaml:"timeout"`

	// AlwaysRun makes the job execute even when a prerequisite failed.
	AlwaysRun bool `yaml:"always_run"`

	// Required controls whether the job counts toward the run verdict.
	// Omitted means true; set `required: false` for continue-on-error jobs.
	Required *bool `yaml:"required"`

	// Publishes names an artifact stored from the step's trimmed output,
	// e.g. the image reference a build step prints last.
	Publishes string `yaml:"publishes"`

	// Consumes lists artifacts fetched before the step runs; each is exposed
	// to the step as GANTRY_ARTIFACT_<NAME>.
	Consumes []string `yaml:"consumes"`

	// ReadyURL, when set, is polled until a 2xx response before the step
	// starts; probe expiry fails the job.
	ReadyURL      string   `yaml:"ready_url"`
	ReadyTimeout  Duration `yaml:"ready_timeout"`
	ReadyInterval Duration `yaml:"ready_interval"`
}

// IsRequired resolves the Required default (true when omitted).
func (j JobSpec) IsRequired() bool {
	return j.Required == nil || *j.Required
}

// LoadPipeline reads and parses the pipeline file at path.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return ParsePipeline(data)
}

// ParsePipeline parses YAML content into a Pipeline, applying defaults and
// validating it. Graph-shape errors (cycles, duplicate names, unknown
// prerequisites) are left to graph construction.
func ParsePipeline(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyDefaults(&p)
	if err := validate(&p); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &p, nil
}

func applyDefaults(p *Pipeline) {
	if p.Name == "" {
		p.Name = "pipeline"
	}
	for i := range p.Jobs {
		j := &p.Jobs[i]
		if j.Timeout <= 0 {
			j.Timeout = Duration(DefaultStepTimeout)
		}
		if j.ReadyURL != "" {
			if j.ReadyTimeout <= 0 {
				j.ReadyTimeout = Duration(DefaultReadyTimeout)
			}
			if j.ReadyInterval <= 0 {
				j.ReadyInterval = Duration(DefaultReadyInterval)
			}
		}
	}
}

func validate(p *Pipeline) error {
	if len(p.Jobs) == 0 {
		return fmt.Errorf("pipeline %q declares no jobs", p.Name)
	}
	if p.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must not be negative")
	}
	for _, j := range p.Jobs {
		if j.Name == "" {
			return fmt.Errorf("every job needs a name")
		}
		if j.Run == "" {
			return fmt.Errorf("job %q has no run step", j.Name)
		}
	}
	return nil
}

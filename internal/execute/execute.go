// Package execute runs shell-command job actions. The engine treats them as
// black boxes: exit code zero is success, anything else (including hitting
// the per-step timeout) is failure with the captured output as detail.
package execute

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Runner executes shell steps in a fixed working directory.
type Runner struct {
	// Dir is the working directory for every step; empty means inherit.
	Dir string
	// Env is appended to the step's inherited environment.
	Env []string
}

// Run executes command via `sh -c` under a deadline, returning the combined
// stdout+stderr. extraEnv entries ("KEY=value") are added on top of the
// runner's environment for this step only. The command's context is cancelled
// when either the step timeout elapses or the run itself is aborted.
func (r *Runner) Run(ctx context.Context, command string, timeout time.Duration, extraEnv ...string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 || len(extraEnv) > 0 {
		cmd.Env = append(append(cmd.Environ(), r.Env...), extraEnv...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return out.String(), fmt.Errorf("step timed out after %s", timeout)
	}
	return out.String(), err
}

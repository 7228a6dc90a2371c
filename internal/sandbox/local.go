package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"webforge/internal/fileutil"
	"webforge/internal/logging"
	"webforge/internal/project"
	"webforge/internal/security"
)

// LocalExecutor runs steps on this machine inside a throwaway temp
// directory, with a scrubbed environment and its own process group.
type LocalExecutor struct {
	limits Limits
	root   string
}

// NewLocalExecutor creates a local executor. An empty root means os.TempDir.
func NewLocalExecutor(limits Limits, root string) *LocalExecutor {
	return &LocalExecutor{limits: limits.withDefaults(), root: root}
}

// Name returns "local".
func (e *LocalExecutor) Name() string { return "local" }

// Execute implements Executor.
func (e *LocalExecutor) Execute(ctx context.Context, p *project.Project, steps []Step) ([]StepResult, error) {
	dir, err := os.MkdirTemp(e.root, "webforge-build-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logging.Warn("failed to remove build workspace", "dir", dir, "error", err)
		}
	}()

	files := make([]fileutil.TreeFile, 0, p.Len())
	for _, f := range p.Files() {
		files = append(files, fileutil.TreeFile{Path: f.Path, Data: []byte(f.Content)})
	}
	if err := fileutil.WriteTree(dir, files); err != nil {
		return nil, fmt.Errorf("failed to write project: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, ".tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace tmp: %w", err)
	}

	var results []StepResult
	for _, step := range steps {
		res := e.run(ctx, dir, step)
		results = append(results, res)
		logging.Debug("build step finished",
			"executor", e.Name(), "phase", step.Phase, "exit", res.ExitCode,
			"timed_out", res.TimedOut, "duration", res.Duration)
		if !res.OK() {
			break
		}
	}
	return results, nil
}

func (e *LocalExecutor) run(ctx context.Context, dir string, step Step) StepResult {
	start := time.Now()
	res := StepResult{Phase: step.Phase, Command: step.Command, ExitCode: -1}

	out := newRingBuffer(e.limits.OutputLimit)
	cmd := shellCommand(step.Command)
	cmd.Dir = dir
	cmd.Env = security.SafeEnvironment(dir)
	cmd.Stdout = out
	cmd.Stderr = out
	// Bounds Wait when a stray grandchild still holds the output pipe.
	cmd.WaitDelay = e.limits.Grace

	if err := cmd.Start(); err != nil {
		res.Err = fmt.Errorf("failed to start %q: %w", step.Command, err)
		res.Duration = time.Since(start)
		return res
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(e.limits.Timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-timer.C:
		res.TimedOut = true
		waitErr = e.stop(cmd, done)
	case <-ctx.Done():
		waitErr = e.stop(cmd, done)
		res.Err = ctx.Err()
	}

	res.Duration = time.Since(start)
	res.Output = out.String()
	res.Truncated = out.Truncated()

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		res.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case res.Err == nil && !res.TimedOut:
		res.Err = waitErr
	}
	return res
}

// stop sends SIGTERM to the group, escalating to SIGKILL after the grace period.
func (e *LocalExecutor) stop(cmd *exec.Cmd, done <-chan error) error {
	signalGroup(cmd, false)
	select {
	case err := <-done:
		return err
	case <-time.After(e.limits.Grace):
		signalGroup(cmd, true)
		return <-done
	}
}

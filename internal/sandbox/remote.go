package sandbox

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"webforge/internal/logging"
	"webforge/internal/project"
	"webforge/internal/robustness"
	"webforge/internal/ssh"
)

// Consecutive connection failures before the build host is skipped, and how
// long it stays skipped.
const (
	hostFailureThreshold = 3
	hostRetryAfter       = time.Minute
)

// RemoteExecutor runs steps on a build host over SSH. Connections come from a
// shared pool; each call gets its own mktemp directory under workRoot.
type RemoteExecutor struct {
	pool     *ssh.Pool
	target   *ssh.Target
	workRoot string
	limits   Limits
	breaker  *robustness.CircuitBreaker
}

// NewRemoteExecutor creates a remote executor.
func NewRemoteExecutor(pool *ssh.Pool, target *ssh.Target, workRoot string, limits Limits) *RemoteExecutor {
	if workRoot == "" {
		workRoot = "/tmp"
	}
	return &RemoteExecutor{
		pool:     pool,
		target:   target,
		workRoot: workRoot,
		limits:   limits.withDefaults(),
		breaker:  robustness.NewCircuitBreaker(hostFailureThreshold, hostRetryAfter),
	}
}

// Name returns "remote".
func (e *RemoteExecutor) Name() string { return "remote" }

// Execute implements Executor.
func (e *RemoteExecutor) Execute(ctx context.Context, p *project.Project, steps []Step) ([]StepResult, error) {
	var client *ssh.Conn
	err := e.breaker.Execute(ctx, func() error {
		c, err := e.pool.Acquire(ctx, e.target)
		client = c
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("build host unavailable: %w", err)
	}

	dir, err := client.Output(ctx, "mktemp -d "+ssh.ShellQuote(path.Join(e.workRoot, "webforge-build-XXXXXX")))
	if err != nil {
		return nil, fmt.Errorf("failed to create remote workspace: %w", err)
	}
	if dir == "" || !strings.HasPrefix(dir, "/") {
		return nil, fmt.Errorf("unexpected remote workspace %q", dir)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := client.Output(cleanupCtx, "rm -rf "+ssh.ShellQuote(dir)); err != nil {
			logging.Warn("failed to remove remote workspace", "host", e.target.Host, "dir", dir, "error", err)
		}
	}()

	files := make([]ssh.File, 0, p.Len()+1)
	for _, f := range p.Files() {
		files = append(files, ssh.File{Path: f.Path, Data: []byte(f.Content)})
	}
	files = append(files, ssh.File{Path: ".tmp/.keep"})
	if err := client.Upload(ctx, dir, files); err != nil {
		return nil, fmt.Errorf("failed to upload project: %w", err)
	}

	prefix := remoteEnv(dir)
	var results []StepResult
	for _, step := range steps {
		res := e.run(ctx, client, prefix, step)
		results = append(results, res)
		logging.Debug("build step finished",
			"executor", e.Name(), "host", e.target.Host, "phase", step.Phase,
			"exit", res.ExitCode, "timed_out", res.TimedOut, "duration", res.Duration)
		if !res.OK() {
			break
		}
	}
	return results, nil
}

func (e *RemoteExecutor) run(ctx context.Context, client *ssh.Conn, prefix string, step Step) StepResult {
	start := time.Now()
	res := StepResult{Phase: step.Phase, Command: step.Command, ExitCode: -1}

	stepCtx, cancel := context.WithTimeout(ctx, e.limits.Timeout)
	defer cancel()

	out := newRingBuffer(e.limits.OutputLimit)
	code, err := client.Run(stepCtx, prefix+step.Command, out, out, e.limits.Grace)

	res.Duration = time.Since(start)
	res.Output = out.String()
	res.Truncated = out.Truncated()
	res.ExitCode = code

	switch {
	case err == nil:
	case ctx.Err() != nil:
		res.Err = ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		res.TimedOut = true
	default:
		res.Err = err
	}
	return res
}

// remoteEnv mirrors the local scrubbed environment on the build host.
func remoteEnv(dir string) string {
	q := ssh.ShellQuote
	return "cd " + q(dir) +
		" && export HOME=" + q(dir) +
		" TMPDIR=" + q(path.Join(dir, ".tmp")) +
		" npm_config_cache=" + q(path.Join(dir, ".npm-cache")) +
		" npm_config_update_notifier=false CI=true NODE_ENV=development && "
}

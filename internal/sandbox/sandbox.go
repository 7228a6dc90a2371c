// Package sandbox installs and builds a generated project in a disposable
// workspace to prove it actually compiles.
package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"webforge/internal/config"
	"webforge/internal/llmjson"
	"webforge/internal/logging"
	"webforge/internal/project"
	"webforge/internal/ssh"
)

// Phase names the step a build check reached.
type Phase string

const (
	PhaseSkipped Phase = "skipped"
	PhaseInstall Phase = "install"
	PhaseBuild   Phase = "build"
	PhaseTest    Phase = "test"
)

// Result is the runtime build verdict.
type Result struct {
	Passed     bool     `json:"passed"`
	Phase      Phase    `json:"phase"`
	Issues     []string `json:"issues"`
	Logs       string   `json:"logs,omitempty"`
	DurationMs int64    `json:"durationMs"`
	Note       string   `json:"note,omitempty"`
	Executor   string   `json:"executor,omitempty"`
}

func skipped(note string) *Result {
	return &Result{Passed: true, Phase: PhaseSkipped, Issues: []string{}, Note: note}
}

// Validator decides whether and where to run the build check.
type Validator struct {
	cfg      config.RuntimeConfig
	executor Executor
	lookPath func(string) (string, error)
}

// Option configures a Validator.
type Option func(*Validator)

// WithExecutor replaces the executor chosen from config.
func WithExecutor(e Executor) Option {
	return func(v *Validator) { v.executor = e }
}

// WithLookPath replaces exec.LookPath for the npm availability probe.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(v *Validator) { v.lookPath = fn }
}

// NewValidator creates a validator. A configured remote host selects the SSH
// executor backed by pool; otherwise builds run locally.
func NewValidator(cfg config.RuntimeConfig, pool *ssh.Pool, opts ...Option) *Validator {
	if cfg.Install == "" {
		cfg.Install = config.DefaultInstallCommand
	}
	if cfg.Build == "" {
		cfg.Build = config.DefaultBuildCommand
	}
	if cfg.Test == "" {
		cfg.Test = config.DefaultTestCommand
	}
	v := &Validator{cfg: cfg, lookPath: exec.LookPath}
	limits := Limits{Timeout: cfg.Timeout, Grace: cfg.Grace, OutputLimit: cfg.OutputLimit}
	if cfg.Remote.Enabled() && pool != nil {
		v.executor = NewRemoteExecutor(pool, ssh.TargetFromRemote(cfg.Remote), cfg.Remote.WorkRoot, limits)
	} else {
		v.executor = NewLocalExecutor(limits, "")
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type packageScripts struct {
	Scripts map[string]string `json:"scripts"`
}

// Validate installs, builds and optionally tests p. It never returns an
// error: every failure, including a panic inside the check, is a failed Result.
func (v *Validator) Validate(ctx context.Context, p *project.Project) (res *Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("runtime validation panicked", "panic", r)
			res = &Result{
				Phase:  PhaseInstall,
				Issues: []string{fmt.Sprintf("runtime validation crashed: %v", r)},
			}
		}
		if res != nil {
			res.DurationMs = time.Since(start).Milliseconds()
		}
	}()

	if strings.EqualFold(v.cfg.Mode, "off") {
		return skipped("runtime build check disabled")
	}
	manifest, ok := p.Get("package.json")
	if !ok {
		return skipped("no package.json; nothing to install or build")
	}
	if _, remote := v.executor.(*RemoteExecutor); !remote && !strings.EqualFold(v.cfg.Mode, "on") {
		if _, err := v.lookPath("npm"); err != nil {
			return skipped("npm not found on PATH; runtime build check skipped")
		}
	}

	steps := v.plan(manifest.Content)
	results, err := v.executor.Execute(ctx, p, steps)
	if err != nil {
		logging.Warn("runtime workspace failed", "executor", v.executor.Name(), "error", err)
		return &Result{
			Phase:    PhaseInstall,
			Issues:   []string{fmt.Sprintf("could not prepare build workspace: %v", err)},
			Executor: v.executor.Name(),
		}
	}
	return v.summarize(steps, results)
}

// plan returns install, then build and test when package.json defines them.
func (v *Validator) plan(manifest string) []Step {
	steps := []Step{{Phase: PhaseInstall, Command: v.cfg.Install}}
	pkg, ok := llmjson.Parse[packageScripts](manifest)
	if !ok {
		return steps
	}
	if strings.TrimSpace(pkg.Scripts["build"]) != "" {
		steps = append(steps, Step{Phase: PhaseBuild, Command: v.cfg.Build})
	}
	if v.cfg.RunTests && strings.TrimSpace(pkg.Scripts["test"]) != "" {
		steps = append(steps, Step{Phase: PhaseTest, Command: v.cfg.Test})
	}
	return steps
}

func (v *Validator) summarize(steps []Step, results []StepResult) *Result {
	res := &Result{Issues: []string{}, Executor: v.executor.Name()}
	if len(results) == 0 {
		res.Phase = PhaseInstall
		res.Issues = append(res.Issues, "build check produced no results")
		return res
	}

	var logs strings.Builder
	for _, r := range results {
		fmt.Fprintf(&logs, "$ %s\n%s\n", r.Command, strings.TrimRight(r.Output, "\n"))
	}
	res.Logs = tail(logs.String(), v.limit())

	last := results[len(results)-1]
	res.Phase = last.Phase
	switch {
	case last.TimedOut:
		res.Issues = append(res.Issues, fmt.Sprintf("%s timed out after %s", last.Phase, v.timeout()))
		res.Issues = append(res.Issues, ExtractErrors(last.Output)...)
	case last.Err != nil:
		res.Issues = append(res.Issues, fmt.Sprintf("%s could not run: %v", last.Phase, last.Err))
	case last.ExitCode != 0:
		res.Issues = append(res.Issues, fmt.Sprintf("%s exited with status %d", last.Phase, last.ExitCode))
		res.Issues = append(res.Issues, ExtractErrors(last.Output)...)
	default:
		res.Passed = len(results) == len(steps)
	}
	return res
}

func (v *Validator) limit() int {
	if v.cfg.OutputLimit > 0 {
		return v.cfg.OutputLimit
	}
	return config.DefaultOutputLimit
}

func (v *Validator) timeout() time.Duration {
	if v.cfg.Timeout > 0 {
		return v.cfg.Timeout
	}
	return config.DefaultRuntimeTimeout
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

package sandbox

import (
	"context"
	"time"

	"webforge/internal/project"
)

// Step is one shell command of a build check.
type Step struct {
	Phase   Phase
	Command string
}

// StepResult is the outcome of one step.
type StepResult struct {
	Phase     Phase
	Command   string
	ExitCode  int
	TimedOut  bool
	Output    string
	Truncated bool
	Duration  time.Duration
	Err       error
}

// OK reports whether the step exited cleanly.
func (r StepResult) OK() bool {
	return r.Err == nil && !r.TimedOut && r.ExitCode == 0
}

// Executor materializes a project in a fresh workspace and runs steps in
// order, stopping at the first one that fails. The workspace is removed
// before Execute returns. A non-nil error means the workspace itself could
// not be prepared.
type Executor interface {
	Name() string
	Execute(ctx context.Context, p *project.Project, steps []Step) ([]StepResult, error)
}

// Limits bounds every step an executor runs.
type Limits struct {
	Timeout     time.Duration
	Grace       time.Duration
	OutputLimit int
}

func (l Limits) withDefaults() Limits {
	if l.Timeout <= 0 {
		l.Timeout = 120 * time.Second
	}
	if l.Grace <= 0 {
		l.Grace = 5 * time.Second
	}
	if l.OutputLimit <= 0 {
		l.OutputLimit = 64 << 10
	}
	return l
}

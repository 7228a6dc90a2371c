//go:build !windows

package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/config"
	"webforge/internal/project"
)

func npmFound(string) (string, error) { return "/usr/bin/npm", nil }

func npmMissing(string) (string, error) { return "", errors.New("not found") }

func withBuild() *project.Project {
	return project.MustNew(
		project.File{Path: "package.json", Content: `{"name":"site","scripts":{"build":"vite build","test":"vitest"}}`},
		project.File{Path: "src/main.tsx", Content: "export {}"},
	)
}

func runtimeConfig(install, build string) config.RuntimeConfig {
	return config.RuntimeConfig{
		Mode:        "auto",
		Timeout:     5 * time.Second,
		Grace:       100 * time.Millisecond,
		Install:     install,
		Build:       build,
		Test:        "echo tested",
		OutputLimit: 4096,
	}
}

func TestValidateOffIsSkipped(t *testing.T) {
	cfg := runtimeConfig("true", "true")
	cfg.Mode = "off"
	res := NewValidator(cfg, nil, WithLookPath(npmFound)).Validate(context.Background(), withBuild())

	assert.True(t, res.Passed)
	assert.Equal(t, PhaseSkipped, res.Phase)
	assert.NotEmpty(t, res.Note)
}

func TestValidateWithoutPackageJSONIsSkipped(t *testing.T) {
	p := project.MustNew(project.File{Path: "index.html", Content: "<html></html>"})
	res := NewValidator(runtimeConfig("false", "false"), nil, WithLookPath(npmFound)).Validate(context.Background(), p)

	assert.True(t, res.Passed)
	assert.Equal(t, PhaseSkipped, res.Phase)
	assert.Contains(t, res.Note, "package.json")
}

func TestValidateAutoWithoutNpmIsSkipped(t *testing.T) {
	res := NewValidator(runtimeConfig("false", "false"), nil, WithLookPath(npmMissing)).Validate(context.Background(), withBuild())

	assert.True(t, res.Passed)
	assert.Equal(t, PhaseSkipped, res.Phase)
	assert.Contains(t, res.Note, "npm")
}

func TestValidateBuildPasses(t *testing.T) {
	cfg := runtimeConfig("test -f package.json && test -d .tmp", "test -f src/main.tsx && echo built")
	res := NewValidator(cfg, nil, WithLookPath(npmFound)).Validate(context.Background(), withBuild())

	require.True(t, res.Passed, res.Issues)
	assert.Equal(t, PhaseBuild, res.Phase)
	assert.Empty(t, res.Issues)
	assert.Contains(t, res.Logs, "built")
	assert.Equal(t, "local", res.Executor)
}

func TestValidateBuildFailureExtractsErrors(t *testing.T) {
	cfg := runtimeConfig("true", `echo "vite v5 building"; echo "src/App.tsx(3,1): error TS2304: Cannot find name 'Foo'." >&2; exit 2`)
	res := NewValidator(cfg, nil, WithLookPath(npmFound)).Validate(context.Background(), withBuild())

	assert.False(t, res.Passed)
	assert.Equal(t, PhaseBuild, res.Phase)
	require.GreaterOrEqual(t, len(res.Issues), 2)
	assert.Contains(t, res.Issues[0], "status 2")
	assert.Contains(t, strings.Join(res.Issues, "\n"), "TS2304")
}

func TestValidateInstallFailureStopsBeforeBuild(t *testing.T) {
	cfg := runtimeConfig("echo 'npm ERR! 404 Not Found' >&2; exit 1", "echo should-not-run")
	res := NewValidator(cfg, nil, WithLookPath(npmFound)).Validate(context.Background(), withBuild())

	assert.False(t, res.Passed)
	assert.Equal(t, PhaseInstall, res.Phase)
	assert.NotContains(t, res.Logs, "should-not-run")
}

func TestValidateWithoutBuildScriptStopsAtInstall(t *testing.T) {
	p := project.MustNew(project.File{Path: "package.json", Content: `{"name":"site","scripts":{}}`})
	res := NewValidator(runtimeConfig("true", "false"), nil, WithLookPath(npmFound)).Validate(context.Background(), p)

	assert.True(t, res.Passed)
	assert.Equal(t, PhaseInstall, res.Phase)
}

func TestValidateRunsTestsWhenEnabled(t *testing.T) {
	cfg := runtimeConfig("true", "true")
	cfg.RunTests = true
	res := NewValidator(cfg, nil, WithLookPath(npmFound)).Validate(context.Background(), withBuild())

	assert.True(t, res.Passed)
	assert.Equal(t, PhaseTest, res.Phase)
	assert.Contains(t, res.Logs, "tested")
}

func TestValidateTimeoutKillsProcessGroup(t *testing.T) {
	cfg := runtimeConfig("true", "sleep 30 & sleep 30")
	cfg.Timeout = 200 * time.Millisecond

	start := time.Now()
	res := NewValidator(cfg, nil, WithLookPath(npmFound)).Validate(context.Background(), withBuild())

	assert.False(t, res.Passed)
	assert.Equal(t, PhaseBuild, res.Phase)
	require.NotEmpty(t, res.Issues)
	assert.Contains(t, res.Issues[0], "timed out")
	assert.Less(t, time.Since(start), 10*time.Second)
}

type panicExecutor struct{}

func (panicExecutor) Name() string { return "panic" }

func (panicExecutor) Execute(context.Context, *project.Project, []Step) ([]StepResult, error) {
	panic("boom")
}

type failingExecutor struct{}

func (failingExecutor) Name() string { return "failing" }

func (failingExecutor) Execute(context.Context, *project.Project, []Step) ([]StepResult, error) {
	return nil, errors.New("disk full")
}

func TestValidateRecoversFromPanic(t *testing.T) {
	res := NewValidator(runtimeConfig("true", "true"), nil,
		WithLookPath(npmFound), WithExecutor(panicExecutor{})).Validate(context.Background(), withBuild())

	assert.False(t, res.Passed)
	require.Len(t, res.Issues, 1)
	assert.Contains(t, res.Issues[0], "boom")
}

func TestValidateWorkspaceFailure(t *testing.T) {
	res := NewValidator(runtimeConfig("true", "true"), nil,
		WithLookPath(npmFound), WithExecutor(failingExecutor{})).Validate(context.Background(), withBuild())

	assert.False(t, res.Passed)
	assert.Equal(t, PhaseInstall, res.Phase)
	assert.Contains(t, res.Issues[0], "disk full")
}

func TestExtractErrors(t *testing.T) {
	out := "\x1b[31merror\x1b[0m during build\nok line\nerror during build\nnpm ERR! code E404\n"
	assert.Equal(t, []string{"error during build", "npm ERR! code E404"}, ExtractErrors(out))

	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("line\n")
	}
	b.WriteString("last\n")
	lines := ExtractErrors(b.String())
	assert.Len(t, lines, MaxErrorLines)
	assert.Equal(t, "last", lines[len(lines)-1])
}

func TestRingBufferKeepsTail(t *testing.T) {
	r := newRingBuffer(8)
	_, _ = r.Write([]byte("abcdef"))
	_, _ = r.Write([]byte("ghij"))
	assert.Equal(t, "cdefghij", r.String())
	assert.True(t, r.Truncated())

	_, _ = r.Write([]byte("0123456789"))
	assert.Equal(t, "23456789", r.String())
}

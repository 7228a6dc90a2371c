package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/audit"
	"webforge/internal/client"
	"webforge/internal/config"
	"webforge/internal/events"
	"webforge/internal/project"
	"webforge/internal/sandbox"
	"webforge/internal/security"
)

const staticHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Crumb Bakery</title>
<link rel="stylesheet" href="styles.css">
</head>
<body>
<h1>Crumb Bakery</h1>
<script src="script.js"></script>
</body>
</html>`

const staticCSS = `html, body { max-width: 100%; overflow-x: hidden; }
body { margin: 0; font-family: system-ui, sans-serif; }
@media (min-width: 768px) { h1 { font-size: 3rem; } }
`

func staticFiles(script string) string {
	return project.Serialize([]project.File{
		{Path: "index.html", Content: staticHTML},
		{Path: "styles.css", Content: staticCSS},
		{Path: "script.js", Content: script},
	})
}

const (
	reviewPass = `{"pass": true, "issues": [], "patch": ""}`
	reviewFail = `{"pass": false, "issues": ["script.js: menu never opens"], "patch": "Wire the menu toggle in script.js"}`
)

// scriptedRuntime returns its results in order and repeats the last one.
type scriptedRuntime struct {
	mu      sync.Mutex
	results []sandbox.Result
	seen    []*project.Project
}

func (s *scriptedRuntime) Validate(_ context.Context, p *project.Project) *sandbox.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(len(s.seen), len(s.results)-1)
	s.seen = append(s.seen, p)
	res := s.results[i]
	return &res
}

var (
	runtimePass = sandbox.Result{Passed: true, Phase: sandbox.PhaseBuild, Issues: []string{}}
	runtimeFail = sandbox.Result{Passed: false, Phase: sandbox.PhaseBuild, Issues: []string{"build exited with status 1", "error: Unexpected token"}}
)

func newTestPipeline(t *testing.T, fake *client.FakeClient, rt RuntimeChecker) (*Pipeline, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Provider.Name = "fake"
	p := New(cfg, nil,
		WithClientFactory(func(context.Context, client.Options) (client.Client, error) { return fake, nil }),
		WithRuntime(rt),
	)
	return p, cfg
}

func prepare(t *testing.T, cfg *config.Config, req *Request) *Params {
	t.Helper()
	params, err := Prepare(cfg, req)
	require.NoError(t, err)
	return params
}

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

func staticRequest(retries int) *Request {
	return &Request{
		Prompt:      "A landing page for a small bakery",
		OutputStack: "static",
		QualityMode: "balanced",
		Constraints: Constraints{MaxRetries: intPtr(retries)},
	}
}

func lineTypes(lines []events.Line) []events.LineType {
	out := make([]events.LineType, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Type)
	}
	return out
}

func streamedFiles(lines []events.Line) map[string]string {
	out := make(map[string]string)
	for _, l := range lines {
		if l.Type == events.LineFile {
			out[l.File.Path] = l.File.Content
		}
	}
	return out
}

func TestStreamAcceptsFirstPass(t *testing.T) {
	fake := client.NewFakeClient("").
		On(client.StageSpec, client.FakeReply{Text: "not json"}).
		On(client.StageBuild, client.FakeReply{Text: staticFiles("console.log('ready');")}).
		On(client.StageReview, client.FakeReply{Text: reviewPass})
	rt := &scriptedRuntime{results: []sandbox.Result{runtimePass}}
	p, cfg := newTestPipeline(t, fake, rt)

	lines := events.Collect(p.Stream(context.Background(), prepare(t, cfg, staticRequest(1))).Lines())
	require.NotEmpty(t, lines)

	last := lines[len(lines)-1]
	assert.Equal(t, events.LineDone, last.Type)
	assert.Equal(t, 1, fake.CallsFor(client.StageBuild))

	// files, then metadata, then the completion event, then done
	types := lineTypes(lines)
	firstFile := -1
	for i, lt := range types {
		if lt == events.LineFile && firstFile < 0 {
			firstFile = i
		}
	}
	require.GreaterOrEqual(t, firstFile, 0)
	n := len(types)
	assert.Equal(t, events.LineMetadata, types[n-3])
	assert.Equal(t, events.StageComplete, lines[n-2].Event.Type)
	for _, lt := range types[firstFile : n-3] {
		assert.Equal(t, events.LineFile, lt)
	}

	meta, ok := lines[n-3].Metadata.(*Metadata)
	require.True(t, ok)
	assert.True(t, meta.Accepted)
	assert.False(t, meta.BestEffort)
	assert.Equal(t, 0, meta.Retries)
	assert.Equal(t, "static", meta.Framework)
	assert.Equal(t, "static", string(meta.RuntimeHint.Preferred))
	assert.Equal(t, 3, meta.Usage.Calls)

	for path := range streamedFiles(lines) {
		_, err := project.NormalizePath(path)
		assert.NoError(t, err, path)
	}
}

func TestRepairRuntimeFailureRollsBackToStableSnapshot(t *testing.T) {
	fake := client.NewFakeClient("").
		On(client.StageSpec, client.FakeReply{Text: "not json"}).
		On(client.StageBuild,
			client.FakeReply{Text: staticFiles("console.log('first pass');")},
			client.FakeReply{Text: staticFiles("console.log('second pass');")}).
		On(client.StageReview,
			client.FakeReply{Text: reviewFail},
			client.FakeReply{Text: reviewPass})
	rt := &scriptedRuntime{results: []sandbox.Result{runtimePass, runtimeFail}}
	p, cfg := newTestPipeline(t, fake, rt)

	em := events.NewEmitter(256, 0)
	res, err := p.Run(context.Background(), prepare(t, cfg, staticRequest(1)), em)
	em.Close()
	require.NoError(t, err)
	lines := events.Collect(em.Lines())

	require.Len(t, rt.seen, 2)
	assert.Equal(t, 2, fake.CallsFor(client.StageBuild))
	assert.True(t, project.MustNew(res.Files...).Equal(rt.seen[0]), "final files must be the first pass output")
	assert.Contains(t, streamedFiles(lines)["script.js"], "first pass")

	meta := res.Metadata
	assert.True(t, meta.RolledBack)
	assert.False(t, meta.Accepted)
	assert.False(t, meta.Quality.RetryRecommended)
	assert.True(t, meta.Runtime.Passed)
	assert.Equal(t, 1, meta.Retries)
	require.Len(t, meta.Repairs, 1)
	assert.Contains(t, meta.Repairs[0].Modified, "script.js")

	var sawRollback bool
	for _, l := range lines {
		if l.Type == events.LineEvent && l.Event.Type == events.StageRollback {
			sawRollback = true
		}
	}
	assert.True(t, sawRollback)
	assert.Equal(t, events.LineDone, lines[len(lines)-1].Type)
}

func TestSkippedRuntimeNeverBecomesStable(t *testing.T) {
	fake := client.NewFakeClient("").
		On(client.StageSpec, client.FakeReply{Text: "not json"}).
		On(client.StageBuild,
			client.FakeReply{Text: staticFiles("console.log('first pass');")},
			client.FakeReply{Text: staticFiles("console.log('second pass');")}).
		On(client.StageReview,
			client.FakeReply{Text: reviewFail},
			client.FakeReply{Text: reviewPass})
	skipped := sandbox.Result{Passed: true, Phase: sandbox.PhaseSkipped, Issues: []string{}, Note: "no package.json"}
	rt := &scriptedRuntime{results: []sandbox.Result{skipped, runtimeFail}}
	p, cfg := newTestPipeline(t, fake, rt)

	em := events.NewEmitter(256, 0)
	res, err := p.Run(context.Background(), prepare(t, cfg, staticRequest(1)), em)
	em.Close()
	require.NoError(t, err)

	// The first pass was never built, so there is nothing to roll back to.
	assert.False(t, res.Metadata.RolledBack)
	assert.True(t, res.Metadata.BestEffort)
	assert.Contains(t, streamedFiles(events.Collect(em.Lines()))["script.js"], "second pass")
}

func TestRuntimeFailureWithoutStableIsBestEffort(t *testing.T) {
	fake := client.NewFakeClient("").
		On(client.StageSpec, client.FakeReply{Text: "not json"}).
		On(client.StageBuild, client.FakeReply{Text: staticFiles("console.log('x');")}).
		On(client.StageReview, client.FakeReply{Text: reviewPass})
	rt := &scriptedRuntime{results: []sandbox.Result{runtimeFail}}
	p, cfg := newTestPipeline(t, fake, rt)

	em := events.NewEmitter(256, 0)
	res, err := p.Run(context.Background(), prepare(t, cfg, staticRequest(2)), em)
	em.Close()
	require.NoError(t, err)

	assert.Equal(t, 3, fake.CallsFor(client.StageBuild))
	assert.Len(t, rt.seen, 3)
	assert.True(t, res.Metadata.BestEffort)
	assert.False(t, res.Metadata.RolledBack)
	assert.Equal(t, 2, res.Metadata.Retries)
	assert.Contains(t, strings.Join(res.Metadata.Quality.Issues, "\n"), "Runtime build: error: Unexpected token")
	assert.Contains(t, res.Metadata.Quality.PatchInstructions, "Unexpected token")

	// The repair prompt carries the runtime issues.
	var repairPrompt string
	for _, c := range fake.Calls() {
		if c.Stage == client.StageBuild {
			repairPrompt = c.Prompt
		}
	}
	assert.Contains(t, repairPrompt, "Unexpected token")

	lines := events.Collect(em.Lines())
	assert.Equal(t, events.LineDone, lines[len(lines)-1].Type)
}

func TestNoRepairWhenRetriesAreZero(t *testing.T) {
	fake := client.NewFakeClient("").
		On(client.StageSpec, client.FakeReply{Text: "not json"}).
		On(client.StageBuild, client.FakeReply{Text: staticFiles("console.log('x');")}).
		On(client.StageReview, client.FakeReply{Text: reviewFail})
	rt := &scriptedRuntime{results: []sandbox.Result{runtimePass}}
	p, cfg := newTestPipeline(t, fake, rt)

	em := events.NewEmitter(256, 0)
	res, err := p.Run(context.Background(), prepare(t, cfg, staticRequest(0)), em)
	em.Close()
	require.NoError(t, err)

	assert.Equal(t, 1, fake.CallsFor(client.StageBuild))
	assert.False(t, res.Metadata.Accepted)
	assert.True(t, res.Metadata.BestEffort)
}

func TestCostCapAbortsImmediately(t *testing.T) {
	// gemini-2.5-pro: $1.25 in, $10 out per million tokens.
	fake := client.NewFakeClient("gemini-2.5-pro").
		On(client.StageSpec, client.FakeReply{Text: "not json", InputTokens: 1000, OutputTokens: 20_000}).
		On(client.StageBuild, client.FakeReply{Text: staticFiles("console.log('x');"), InputTokens: 1000, OutputTokens: 40_000}).
		On(client.StageReview, client.FakeReply{Text: reviewPass, InputTokens: 1, OutputTokens: 1})
	rt := &scriptedRuntime{results: []sandbox.Result{runtimePass}}
	p, cfg := newTestPipeline(t, fake, rt)

	req := staticRequest(1)
	req.Constraints.MaxCostUSD = floatPtr(0.5)
	params := prepare(t, cfg, req)

	em := events.NewEmitter(256, 0)
	res, err := p.Run(context.Background(), params, em)
	em.Close()
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrCostCapExceeded))

	var capErr *CostCapError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, client.StageBuild, capErr.Stage)
	assert.Greater(t, capErr.TotalUSD, 0.5)

	// Nothing after the breaching call runs.
	assert.Equal(t, 0, fake.CallsFor(client.StageReview))
	assert.Empty(t, rt.seen)

	lines := events.Collect(em.Lines())
	var errorLines int
	for _, l := range lines {
		assert.NotEqual(t, events.LineFile, l.Type)
		if l.Type == events.LineError {
			errorLines++
			assert.Contains(t, l.Error, "cost cap exceeded")
		}
	}
	assert.Equal(t, 1, errorLines)
	assert.Equal(t, events.LineError, lines[len(lines)-1].Type)
}

func TestProviderErrorIsFatal(t *testing.T) {
	apiErr := &client.APIError{Provider: "gemini", StatusCode: 503, Message: "overloaded, key=AIzaSyA-0123456789abcdefghijklmnopqrstuv"}
	fake := client.NewFakeClient("").
		On(client.StageSpec, client.FakeReply{Text: "not json"}).
		On(client.StageBuild, client.FakeReply{Err: apiErr})
	rt := &scriptedRuntime{results: []sandbox.Result{runtimePass}}
	p, cfg := newTestPipeline(t, fake, rt)

	lines := events.Collect(p.Stream(context.Background(), prepare(t, cfg, staticRequest(2))).Lines())
	last := lines[len(lines)-1]
	require.Equal(t, events.LineError, last.Type)
	assert.Contains(t, last.Error, "503")
	assert.NotContains(t, last.Error, "AIzaSyA-0123456789")

	// Provider failures are not retried.
	assert.Equal(t, 1, fake.CallsFor(client.StageBuild))
	assert.Equal(t, 0, fake.CallsFor(client.StageReview))
}

func TestFunctionFirstIgnoresVisualScore(t *testing.T) {
	run := func(mode string) *Metadata {
		fake := client.NewFakeClient("").
			On(client.StageSpec, client.FakeReply{Text: "not json"}).
			On(client.StageBuild, client.FakeReply{Text: staticFiles("console.log('x');")}).
			On(client.StageReview, client.FakeReply{Text: reviewPass})
		p, cfg := newTestPipeline(t, fake, &scriptedRuntime{results: []sandbox.Result{runtimePass}})

		req := staticRequest(0)
		req.Prompt = "Bakery site using #ff5500, #223344 and #abcdef with font-family: Georgia"
		req.QualityMode = mode

		em := events.NewEmitter(256, 0)
		res, err := p.Run(context.Background(), prepare(t, cfg, req), em)
		em.Close()
		require.NoError(t, err)
		return res.Metadata
	}

	strict := run("strict-visual")
	assert.Less(t, strict.Quality.VisualScore, 78)
	assert.False(t, strict.Accepted)

	first := run("function-first")
	assert.Equal(t, strict.Quality.VisualScore, first.Quality.VisualScore)
	assert.True(t, first.Accepted)
}

func TestHTTPReferenceOnlyWarns(t *testing.T) {
	fake := client.NewFakeClient("").
		On(client.StageSpec, client.FakeReply{Text: "not json"}).
		On(client.StageBuild, client.FakeReply{Text: staticFiles("console.log('x');")}).
		On(client.StageReview, client.FakeReply{Text: reviewPass})
	p, cfg := newTestPipeline(t, fake, &scriptedRuntime{results: []sandbox.Result{runtimePass}})

	req := staticRequest(0)
	req.URLs = []string{"http://example.com"}
	lines := events.Collect(p.Stream(context.Background(), prepare(t, cfg, req)).Lines())

	var warned bool
	for _, l := range lines {
		if l.Type == events.LineEvent && l.Event.Type == events.StageWarning && strings.Contains(l.Event.Message, "http://example.com") {
			warned = true
		}
	}
	assert.True(t, warned)
	assert.Equal(t, events.LineDone, lines[len(lines)-1].Type)
}

func TestMeterRecordsEveryCall(t *testing.T) {
	fake := client.NewFakeClient("gemini-2.5-flash").
		On(client.StageSpec, client.FakeReply{Text: "a", InputTokens: 1000, OutputTokens: 1000}).
		On(client.StageBuild, client.FakeReply{Err: errors.New("boom")})

	m := newMeter(fake, audit.NewLedger("req"), client.NewPriceTable(nil), 1, security.NewSecretRedactor())
	m.setAttempt(1)

	_, err := m.Generate(context.Background(), &client.Request{Stage: client.StageSpec})
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), &client.Request{Stage: client.StageBuild})
	require.Error(t, err)

	entries := m.ledger.Entries()
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Success)
	assert.Equal(t, 1, entries[0].Attempt)
	assert.InDelta(t, 0.0028, entries[0].CostUSD, 1e-9)
	assert.False(t, entries[1].Success)
	assert.Equal(t, "boom", entries[1].Error)
	assert.InDelta(t, entries[0].RunningUSD, m.ledger.Total(), 1e-9)
}

type recordingSink struct {
	mu      sync.Mutex
	ledgers []*audit.Ledger
	err     error
}

func (s *recordingSink) SaveLedger(ctx context.Context, l *audit.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.ledgers = append(s.ledgers, l)
	return s.err
}

func TestUsageSinkReceivesFailedRuns(t *testing.T) {
	fake := client.NewFakeClient("gemini-2.5-pro").
		On(client.StageSpec, client.FakeReply{Text: "not json", InputTokens: 1000, OutputTokens: 20_000}).
		On(client.StageBuild, client.FakeReply{Text: staticFiles("console.log('x');"), InputTokens: 1000, OutputTokens: 40_000})
	sink := &recordingSink{err: errors.New("disk full")}
	cfg := config.DefaultConfig()
	cfg.Provider.Name = "fake"
	p := New(cfg, nil,
		WithClientFactory(func(context.Context, client.Options) (client.Client, error) { return fake, nil }),
		WithRuntime(&scriptedRuntime{results: []sandbox.Result{runtimePass}}),
		WithUsageSink(sink),
	)

	req := staticRequest(0)
	req.Constraints.MaxCostUSD = floatPtr(0.5)
	em := events.NewEmitter(256, 0)
	_, err := p.Run(context.Background(), prepare(t, cfg, req), em)
	em.Close()
	require.ErrorIs(t, err, ErrCostCapExceeded)

	// A failing sink never changes the outcome of the run.
	require.Len(t, sink.ledgers, 1)
	assert.Len(t, sink.ledgers[0].Entries(), 2)
}

func TestUsageSinkSurvivesCancellation(t *testing.T) {
	fake := client.NewFakeClient("").
		On(client.StageSpec, client.FakeReply{Text: "not json"}).
		On(client.StageBuild, client.FakeReply{Text: staticFiles("console.log('ready');")}).
		On(client.StageReview, client.FakeReply{Text: reviewPass})
	sink := &recordingSink{}
	cfg := config.DefaultConfig()
	cfg.Provider.Name = "fake"
	p := New(cfg, nil,
		WithClientFactory(func(context.Context, client.Options) (client.Client, error) { return fake, nil }),
		WithRuntime(&scriptedRuntime{results: []sandbox.Result{runtimePass}}),
		WithUsageSink(sink),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	em := events.NewEmitter(256, 0)
	_, err := p.Run(ctx, prepare(t, cfg, staticRequest(0)), em)
	em.Close()
	require.Error(t, err)
	require.Len(t, sink.ledgers, 1)
}

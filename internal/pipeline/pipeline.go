// Package pipeline drives one generation request from references to a
// finished project: ingest, spec, build, policy, validation, runtime build,
// and the repair and rollback loop around them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"webforge/internal/audit"
	"webforge/internal/builder"
	"webforge/internal/client"
	"webforge/internal/config"
	"webforge/internal/design"
	"webforge/internal/events"
	"webforge/internal/ingest"
	"webforge/internal/logging"
	"webforge/internal/policy"
	"webforge/internal/project"
	"webforge/internal/quality"
	"webforge/internal/sandbox"
	"webforge/internal/security"
	"webforge/internal/ssh"
)

// ClientFactory opens a model client for one request.
type ClientFactory func(ctx context.Context, opts client.Options) (client.Client, error)

// RuntimeChecker runs the sandboxed build check.
type RuntimeChecker interface {
	Validate(ctx context.Context, p *project.Project) *sandbox.Result
}

// LedgerSink persists the usage ledger of a finished run.
type LedgerSink interface {
	SaveLedger(ctx context.Context, l *audit.Ledger) error
}

// Pipeline holds the shared, read-only collaborators of every request.
type Pipeline struct {
	cfg       *config.Config
	newClient ClientFactory
	ingestor  *ingest.Ingestor
	enforcer  *policy.Enforcer
	runtime   RuntimeChecker
	prices    *client.PriceTable
	usage     LedgerSink
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClientFactory replaces client.New.
func WithClientFactory(f ClientFactory) Option {
	return func(p *Pipeline) { p.newClient = f }
}

// WithIngestor replaces the configured ingestor.
func WithIngestor(i *ingest.Ingestor) Option {
	return func(p *Pipeline) { p.ingestor = i }
}

// WithRuntime replaces the sandboxed build check.
func WithRuntime(r RuntimeChecker) Option {
	return func(p *Pipeline) { p.runtime = r }
}

// WithUsageSink stores every run's ledger, including runs that failed.
func WithUsageSink(s LedgerSink) Option {
	return func(p *Pipeline) { p.usage = s }
}

// New wires a pipeline from cfg. pool may be nil when no remote build host
// is configured.
func New(cfg *config.Config, pool *ssh.Pool, opts ...Option) *Pipeline {
	prices := make(map[string]client.Price, len(cfg.Pricing))
	for model, entry := range cfg.Pricing {
		prices[model] = client.Price{Input: entry.InputPerMillion, Output: entry.OutputPerMillion}
	}
	p := &Pipeline{
		cfg:       cfg,
		newClient: client.New,
		ingestor:  ingest.NewIngestor(cfg.Ingest),
		enforcer:  policy.NewEnforcer(cfg.Policy),
		runtime:   sandbox.NewValidator(cfg.Runtime, pool),
		prices:    client.NewPriceTable(prices),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stream starts a run in the background and returns its event stream. The
// stream always ends with a done or error line and is then closed.
func (p *Pipeline) Stream(ctx context.Context, params *Params) *events.Emitter {
	em := events.NewEmitter(p.cfg.Pipeline.EventBuffer, p.cfg.Pipeline.SendTimeout)
	go func() {
		defer em.Close()
		defer func() {
			if r := recover(); r != nil {
				logging.Error("pipeline panicked", "panic", r)
				em.Fail(ctx, fmt.Sprintf("internal error: %v", r))
			}
		}()
		_, _ = p.Run(ctx, params, em)
	}()
	return em
}

// run is the per-request state. It is discarded when Run returns.
type run struct {
	id       string
	params   *Params
	em       *events.Emitter
	meter    *meter
	redactor *security.SecretRedactor
	log      *slog.Logger

	bundle  *ingest.Bundle
	spec    *design.Spec
	retries int
	current snapshot
	stable  *snapshot
	repairs []project.DiffSummary
}

// Run executes the state machine, emitting progress into em. On a fatal
// error exactly one error line is emitted and the error is returned. Run does
// not close em.
func (p *Pipeline) Run(ctx context.Context, params *Params, em *events.Emitter) (*Result, error) {
	id := uuid.New().String()
	redactor := security.NewSecretRedactor().WithLiteral(params.Client.APIKey)
	log := logging.ForRequest(id)
	log.Info("generation started", "params", params.String())

	c, err := p.newClient(ctx, params.Client)
	if err != nil {
		return nil, p.fail(ctx, em, redactor, fmt.Errorf("failed to open %s client: %w", params.Client.Provider, err))
	}
	defer c.Close()

	r := &run{
		id:       id,
		params:   params,
		em:       em,
		meter:    newMeter(c, audit.NewLedger(id), p.prices, params.MaxCostUSD, redactor),
		redactor: redactor,
		log:      log,
	}

	res, err := p.execute(ctx, r)
	p.saveUsage(ctx, r)
	if err != nil {
		log.Warn("generation failed", "error", redactor.Redact(err.Error()), "total_usd", r.meter.ledger.Total())
		return nil, p.fail(ctx, em, redactor, err)
	}
	log.Info("generation finished",
		"accepted", res.Metadata.Accepted,
		"rolled_back", res.Metadata.RolledBack,
		"retries", res.Metadata.Retries,
		"files", len(res.Files),
		"total_usd", res.Metadata.Usage.TotalUSD)
	return res, nil
}

// saveUsage runs even after cancellation; the calls were paid for either way.
func (p *Pipeline) saveUsage(ctx context.Context, r *run) {
	if p.usage == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.usage.SaveLedger(saveCtx, r.meter.ledger); err != nil {
		r.log.Warn("failed to store usage", "error", err)
	}
}

func (p *Pipeline) fail(ctx context.Context, em *events.Emitter, redactor *security.SecretRedactor, err error) error {
	em.Fail(ctx, redactor.Redact(err.Error()))
	return err
}

func (p *Pipeline) execute(ctx context.Context, r *run) (*Result, error) {
	em := r.em

	em.Event(ctx, events.StageIngest, "Reading references", 5)
	bundle, err := p.ingestor.Ingest(ctx, r.params.Input)
	if err != nil {
		return nil, fmt.Errorf("ingest failed: %w", err)
	}
	r.bundle = bundle
	for _, w := range bundle.Warnings {
		em.Event(ctx, events.StageWarning, w, 8)
	}

	em.Event(ctx, events.StageSpec, "Extracting design spec", 12)
	spec, err := design.NewExtractor(r.meter).Extract(ctx, bundle, r.params.Stack)
	if err != nil {
		return nil, err
	}
	r.spec = spec
	em.Event(ctx, events.StageSpec, fmt.Sprintf("Spec ready: %s (%d sections, %s)", spec.Name, len(spec.Layout.Sections), spec.Origin), 20)

	build := &builder.Input{
		SpecJSON: spec.JSON(),
		Stack:    r.params.Stack,
		Prompt:   bundle.Prompt,
		Tokens:   bundle.StyleTokens,
		Hints:    bundle.InteractionHints,
	}
	bld := builder.New(r.meter, p.cfg.Provider.MaxOutputTokens)
	validator := quality.NewValidator(r.meter)

	rolledBack := false
	for attempt := 0; ; attempt++ {
		r.meter.setAttempt(attempt)
		if err := p.pass(ctx, r, bld, validator, build, attempt); err != nil {
			return nil, err
		}

		cur := r.current
		if cur.report.Accepted {
			break
		}
		// A failed repair never replaces output that already built.
		if attempt > 0 && !cur.runtime.Passed && r.stable != nil {
			restored := *r.stable
			report := *restored.report
			report.RetryRecommended = false
			restored.report = &report
			r.current = restored
			rolledBack = true
			em.Event(ctx, events.StageRollback, "Repair broke the build; restored the last version that built", 85)
			r.log.Info("rolled back to stable snapshot", "attempt", attempt)
			break
		}
		if !cur.report.RetryRecommended || attempt >= r.params.MaxRetries {
			break
		}

		r.retries++
		build.Previous = cur.project
		build.Patch = cur.report.PatchInstructions
		build.Attempt = attempt + 1
		em.Event(ctx, events.StageRepair,
			fmt.Sprintf("Repair %d of %d: %d issues to fix", r.retries, r.params.MaxRetries, len(cur.report.Issues)), 25)
	}

	return p.finalize(ctx, r, rolledBack), nil
}

// pass runs build, policy, validation and the runtime check once and
// records the outcome in r.current, and in r.stable when the build passed.
func (p *Pipeline) pass(ctx context.Context, r *run, bld *builder.Builder, validator *quality.Validator, in *builder.Input, attempt int) error {
	em := r.em
	label := "Generating files"
	if attempt > 0 {
		label = fmt.Sprintf("Regenerating files (repair %d)", attempt)
	}
	em.Event(ctx, events.StageBuild, label, 30)
	built, err := bld.Build(ctx, in)
	if err != nil {
		return err
	}
	for _, w := range built.Warnings {
		em.Event(ctx, events.StageWarning, w, 35)
	}
	if in.Previous != nil {
		diff := project.Diff(in.Previous, built.Project)
		r.repairs = append(r.repairs, diff)
		em.Event(ctx, events.StageRepair, "Repair changes: "+diff.String(), 38)
	}

	em.Event(ctx, events.StagePolicy, "Applying package policy", 45)
	enforced, err := p.enforcer.Enforce(built.Project, policy.Request{Stack: r.params.Stack, Name: r.spec.Name})
	if err != nil {
		return fmt.Errorf("policy failed: %w", err)
	}
	for _, n := range enforced.Notes {
		logging.Debug("policy note", "request_id", r.id, "note", n)
	}

	em.Event(ctx, events.StageValidate, "Validating quality", 60)
	report, err := validator.Validate(ctx, &quality.Input{
		SpecJSON:  in.SpecJSON,
		Project:   enforced.Project,
		Manifest:  enforced.Manifest,
		Stack:     r.params.Stack,
		Mode:      r.params.Mode,
		RefTokens: r.bundle.StyleTokens,
		RefHints:  r.bundle.InteractionHints,
	})
	if err != nil {
		return err
	}
	em.Event(ctx, events.StageValidate,
		fmt.Sprintf("Visual score %d, functional %t, %d issues", report.VisualScore, report.FunctionalPass, len(report.Issues)), 68)

	em.Event(ctx, events.StageRuntime, "Running install and build", 75)
	rt := p.runtime.Validate(ctx, enforced.Project)
	em.Event(ctx, events.StageRuntime, runtimeMessage(rt), 80)

	snap := snapshot{
		project:  enforced.Project,
		manifest: enforced.Manifest,
		hint:     enforced.Hint,
		report:   report,
		runtime:  rt,
	}
	// Only a pass that was actually installed and built can be restored.
	if rt.Passed && rt.Phase != sandbox.PhaseSkipped {
		stable := snap
		r.stable = &stable
	}
	snap.report = withRuntime(report, rt)
	r.current = snap
	return nil
}

// withRuntime folds a failed runtime check into a new report.
func withRuntime(report *quality.Report, rt *sandbox.Result) *quality.Report {
	if rt.Passed {
		return report
	}
	merged := *report
	merged.Accepted = false
	merged.RetryRecommended = true

	runtimeIssues := make([]string, 0, len(rt.Issues))
	for _, issue := range rt.Issues {
		runtimeIssues = append(runtimeIssues, fmt.Sprintf("Runtime %s: %s", rt.Phase, issue))
	}
	merged.Issues = append(append([]string(nil), report.Issues...), runtimeIssues...)

	lines := strings.Split(report.PatchInstructions, "\n")
	merged.PatchInstructions = quality.MergePatch(append(runtimeIssues, lines...)...)
	return &merged
}

func runtimeMessage(rt *sandbox.Result) string {
	switch {
	case rt.Phase == sandbox.PhaseSkipped:
		return "Runtime build skipped: " + rt.Note
	case rt.Passed:
		return fmt.Sprintf("Runtime %s passed in %dms", rt.Phase, rt.DurationMs)
	default:
		return fmt.Sprintf("Runtime %s failed with %d issues", rt.Phase, len(rt.Issues))
	}
}

func (p *Pipeline) finalize(ctx context.Context, r *run, rolledBack bool) *Result {
	em := r.em
	cur := r.current
	em.Event(ctx, events.StageFinalize, fmt.Sprintf("Streaming %d files", cur.project.Len()), 92)

	files := cur.project.Files()
	for _, f := range files {
		em.File(ctx, f)
	}

	accepted := cur.report.Accepted && cur.runtime.Passed
	meta := &Metadata{
		RequestID:   r.id,
		Name:        r.spec.Name,
		Description: r.spec.Description,
		Framework:   cur.manifest.Framework,
		RuntimeHint: cur.hint,
		Manifest:    cur.manifest,
		Responsive: Responsive{
			Ready:    len(cur.report.ResponsiveWarnings) == 0,
			Warnings: cur.report.ResponsiveWarnings,
		},
		Quality:    cur.report,
		Runtime:    cur.runtime,
		Accepted:   accepted,
		BestEffort: !accepted && !rolledBack,
		RolledBack: rolledBack,
		Retries:    r.retries,
		Confidence: r.bundle.Confidence,
		Warnings:   r.bundle.Warnings,
		Repairs:    r.repairs,
		Usage:      r.meter.ledger.Summarize(),
		Ledger:     r.meter.ledger,
	}
	em.Metadata(ctx, meta)

	msg := "Project ready"
	switch {
	case rolledBack:
		msg = "Project ready (restored last working build)"
	case !accepted:
		msg = "Project ready (best effort, quality gate not met)"
	}
	em.Event(ctx, events.StageComplete, msg, 100)
	em.Done(ctx)

	return &Result{Files: files, Metadata: meta}
}

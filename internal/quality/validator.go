// Package quality decides whether a generated project is good enough to
// ship: a deterministic rule battery, a model review and a visual match score.
package quality

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"webforge/internal/client"
	"webforge/internal/logging"
	"webforge/internal/policy"
	"webforge/internal/project"
)

// Mode selects how much visual fidelity acceptance demands.
type Mode string

const (
	ModeStrictVisual  Mode = "strict-visual"
	ModeBalanced      Mode = "balanced"
	ModeFunctionFirst Mode = "function-first"
)

// ParseMode validates a quality mode. Empty means balanced.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeBalanced:
		return ModeBalanced, nil
	case ModeStrictVisual, ModeFunctionFirst:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown quality mode %q", s)
}

// Threshold is the minimum visual score for the mode, and false when the
// mode does not gate on visuals.
func (m Mode) Threshold() (int, bool) {
	switch m {
	case ModeStrictVisual:
		return 78, true
	case ModeFunctionFirst:
		return 0, false
	default:
		return 65, true
	}
}

// MaxPatchLines caps repair instructions.
const MaxPatchLines = 20

// Report is one validation pass. It is never modified after Validate
// returns; later passes produce new reports.
type Report struct {
	VisualScore        int      `json:"visualScore"`
	FunctionalPass     bool     `json:"functionalPass"`
	Issues             []string `json:"issues"`
	Accepted           bool     `json:"accepted"`
	RetryRecommended   bool     `json:"retryRecommended"`
	PatchInstructions  string   `json:"patchInstructions,omitempty"`
	ResponsiveWarnings []string `json:"responsiveWarnings"`
}

// Input is what one validation pass inspects.
type Input struct {
	SpecJSON  string
	Project   *project.Project
	Manifest  *policy.Manifest
	Stack     project.Stack
	Mode      Mode
	RefTokens []string
	RefHints  []string
}

// Validator runs the quality gate.
type Validator struct {
	client client.Client
}

// NewValidator creates a validator that reviews with c.
func NewValidator(c client.Client) *Validator {
	return &Validator{client: c}
}

// Validate runs the rule battery and the model review concurrently. Only a
// provider error from the review is returned as an error.
func (v *Validator) Validate(ctx context.Context, in *Input) (*Report, error) {
	var (
		findings *Findings
		verdict  *Review
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		findings = RunRules(in.Project, in.Manifest, in.Stack)
		return nil
	})
	g.Go(func() error {
		r, err := v.review(gctx, in.SpecJSON, in.Project)
		verdict = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	score := VisualScore(in.RefTokens, in.RefHints, in.Project)
	report := Evaluate(in.Mode, score, findings, verdict)

	logging.Debug("quality evaluated",
		"visual_score", report.VisualScore,
		"functional_pass", report.FunctionalPass,
		"rule_issues", len(findings.Issues),
		"responsive_warnings", len(findings.ResponsiveWarnings),
		"accepted", report.Accepted)
	return report, nil
}

// Evaluate combines rule findings, the model verdict and the visual score
// into a report.
func Evaluate(mode Mode, score int, findings *Findings, verdict *Review) *Report {
	if findings == nil {
		findings = &Findings{}
	}
	if verdict == nil {
		verdict = &Review{}
	}

	visualOK := true
	threshold, gated := mode.Threshold()
	if gated {
		visualOK = score >= threshold
	}
	accepted := verdict.Pass && len(findings.Issues) == 0 && visualOK && len(findings.ResponsiveWarnings) == 0

	issues := append([]string(nil), findings.Issues...)
	issues = append(issues, verdict.Issues...)

	r := &Report{
		VisualScore:        score,
		FunctionalPass:     verdict.Pass,
		Issues:             issues,
		Accepted:           accepted,
		RetryRecommended:   !accepted,
		ResponsiveWarnings: append([]string(nil), findings.ResponsiveWarnings...),
	}
	if r.Issues == nil {
		r.Issues = []string{}
	}
	if r.ResponsiveWarnings == nil {
		r.ResponsiveWarnings = []string{}
	}
	if !accepted {
		lines := append([]string(nil), findings.Issues...)
		lines = append(lines, findings.ResponsiveWarnings...)
		lines = append(lines, verdict.Issues...)
		lines = append(lines, strings.Split(verdict.Patch, "\n")...)
		if gated && !visualOK {
			lines = append(lines, fmt.Sprintf("Visual match %d is below %d: reuse the reference colors, fonts, spacing and components", score, threshold))
		}
		r.PatchInstructions = MergePatch(lines...)
	}
	return r
}

// MergePatch normalizes instruction lines into a deduplicated bullet list of
// at most MaxPatchLines lines.
func MergePatch(lines ...string) string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, "- "+line)
		if len(out) == MaxPatchLines {
			break
		}
	}
	return strings.Join(out, "\n")
}

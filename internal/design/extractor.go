package design

import (
	"context"
	"fmt"
	"strings"

	"webforge/internal/client"
	"webforge/internal/ingest"
	"webforge/internal/llmjson"
	"webforge/internal/logging"
	"webforge/internal/project"
)

const extractSystemPrompt = `You are a senior product designer. Turn the user's references into a precise design blueprint for a single-page website.

Respond with ONE JSON object and nothing else. Schema:
{
  "name": string,
  "description": string,
  "layout": {"structure": string, "sections": [string], "breakpoints": [string]},
  "visual": {
    "theme": "dark" | "light",
    "palette": {"background": hex, "surface": hex, "text": hex, "muted": hex, "primary": hex, "secondary": hex, "accent": hex},
    "typography": {"heading": string, "body": string, "scale": string},
    "spacing": [string],
    "radius": string
  },
  "components": [{"name": string, "role": string, "states": [string]}],
  "interactions": [{"name": string, "trigger": string, "behavior": string}],
  "filePlan": [{"path": string, "purpose": string}]
}

Rules:
- Reuse colors, fonts and spacing from the reference style tokens when present.
- Every interaction hint must map to an interaction entry.
- Sections are ordered top to bottom.
- Breakpoints are CSS widths such as "768px".`

// Extractor produces a Spec with one model call.
type Extractor struct {
	client    client.Client
	maxTokens int32
}

// NewExtractor creates an extractor bound to c.
func NewExtractor(c client.Client) *Extractor {
	return &Extractor{client: c, maxTokens: 4096}
}

// Extract asks the model for a blueprint. Provider errors are returned as is.
// An unparseable answer is replaced by Synthesize, so a nil error always comes
// with a usable spec.
func (e *Extractor) Extract(ctx context.Context, b *ingest.Bundle, stack project.Stack) (*Spec, error) {
	req := &client.Request{
		Stage:           client.StageSpec,
		System:          extractSystemPrompt,
		Prompt:          extractPrompt(b, stack),
		JSON:            true,
		MaxOutputTokens: e.maxTokens,
		Temperature:     client.Ptr[float32](0.2),
	}
	for _, s := range b.Screenshots {
		req.Images = append(req.Images, client.Image{MIMEType: s.MIMEType, Data: s.Data})
	}

	resp, err := e.client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("spec extraction failed: %w", err)
	}

	spec, stage, ok := llmjson.Decode[Spec](resp.Text)
	if !ok {
		logging.Warn("spec response unparseable, using synthesized spec", "chars", len(resp.Text))
		return Synthesize(b, stack), nil
	}
	logging.Debug("spec parsed", "stage", stage.String())

	Normalize(&spec, b, stack)
	spec.Origin = OriginModel
	return &spec, nil
}

func extractPrompt(b *ingest.Bundle, stack project.Stack) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Output stack: %s\n\n", stack)
	fmt.Fprintf(&sb, "## Request\n%s\n", orNone(b.Prompt))
	if len(b.StyleTokens) > 0 {
		fmt.Fprintf(&sb, "\n## Reference style tokens\n%s\n", strings.Join(b.StyleTokens, ", "))
	}
	if len(b.InteractionHints) > 0 {
		fmt.Fprintf(&sb, "\n## Interaction hints\n%s\n", strings.Join(b.InteractionHints, ", "))
	}
	if b.DOMSummary != "" {
		fmt.Fprintf(&sb, "\n## Reference pages\n%s\n", b.DOMSummary)
	}
	if n := len(b.Screenshots); n > 0 {
		fmt.Fprintf(&sb, "\n%d screenshot(s) attached. Match their layout and visual style.\n", n)
	}
	return sb.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

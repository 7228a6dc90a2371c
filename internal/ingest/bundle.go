// Package ingest normalizes a prompt, uploaded screenshots and reference URLs
// into the style and interaction signals the rest of the pipeline works from.
package ingest

import "sort"

// Screenshot is an image attached to a request or rendered from a URL.
type Screenshot struct {
	// Source is "upload" or the URL the screenshot was rendered from.
	Source   string `json:"source"`
	MIMEType string `json:"mime"`
	Data     []byte `json:"data"`
}

// Source describes one reference URL after ingestion.
type Source struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	OK          bool   `json:"ok"`
}

// Bundle is everything known about the user's references. It is built once
// per request and not modified afterwards.
type Bundle struct {
	Prompt           string       `json:"prompt"`
	Screenshots      []Screenshot `json:"screenshots,omitempty"`
	DOMSummary       string       `json:"domSummary,omitempty"`
	StyleTokens      []string     `json:"styleTokens"`
	InteractionHints []string     `json:"interactionHints"`
	Confidence       float64      `json:"confidence"`
	Warnings         []string     `json:"warnings,omitempty"`
	Sources          []Source     `json:"sources,omitempty"`
}

// Input is the raw reference material of a request.
type Input struct {
	Prompt string
	Images []Screenshot
	URLs   []string
}

// Confidence weights.
const (
	weightPrompt     = 0.25
	weightScreenshot = 0.25
	weightURL        = 0.20
	weightTokens     = 0.15
	weightHints      = 0.15

	minStyleTokens = 3
	minHints       = 2
)

// confidence scores how much reference signal a bundle carries.
func confidence(b *Bundle) float64 {
	c := 0.0
	if b.Prompt != "" {
		c += weightPrompt
	}
	if len(b.Screenshots) > 0 {
		c += weightScreenshot
	}
	for _, s := range b.Sources {
		if s.OK {
			c += weightURL
			break
		}
	}
	if len(b.StyleTokens) >= minStyleTokens {
		c += weightTokens
	}
	if len(b.InteractionHints) >= minHints {
		c += weightHints
	}
	if c < 0.1 {
		c = 0.1
	}
	if c > 0.99 {
		c = 0.99
	}
	return c
}

// set is an insertion-ignorant string set that renders sorted.
type set map[string]struct{}

func (s set) add(values ...string) {
	for _, v := range values {
		if v != "" {
			s[v] = struct{}{}
		}
	}
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"webforge/internal/pipeline"
)

// ReportMarkdown summarizes a finished generation as markdown.
func ReportMarkdown(m *pipeline.Metadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", m.Name)
	if m.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", m.Description)
	}

	verdict := "accepted"
	switch {
	case m.RolledBack:
		verdict = "restored to the last version that built"
	case m.BestEffort:
		verdict = "best effort (quality gate not met)"
	}
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Result | %s |\n", verdict)
	fmt.Fprintf(&b, "| Framework | %s |\n", m.Framework)
	fmt.Fprintf(&b, "| Preview | %s (fallback %s, complexity %d) |\n",
		m.RuntimeHint.Preferred, m.RuntimeHint.Fallback, m.RuntimeHint.ComplexityScore)
	if q := m.Quality; q != nil {
		fmt.Fprintf(&b, "| Visual score | %d |\n", q.VisualScore)
		fmt.Fprintf(&b, "| Functional review | %t |\n", q.FunctionalPass)
	}
	if rt := m.Runtime; rt != nil {
		fmt.Fprintf(&b, "| Runtime build | %s, passed %t |\n", rt.Phase, rt.Passed)
	}
	fmt.Fprintf(&b, "| Repairs | %d |\n", m.Retries)
	fmt.Fprintf(&b, "| Cost | $%.4f over %d calls |\n\n", m.Usage.TotalUSD, m.Usage.Calls)

	if m.Quality != nil && len(m.Quality.Issues) > 0 {
		b.WriteString("## Issues\n\n")
		for _, issue := range m.Quality.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
		b.WriteString("\n")
	}
	if !m.Responsive.Ready {
		b.WriteString("## Responsive warnings\n\n")
		for _, w := range m.Responsive.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}
	if len(m.Warnings) > 0 {
		b.WriteString("## Reference warnings\n\n")
		for _, w := range m.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}
	if m.Runtime != nil && m.Runtime.Note != "" {
		fmt.Fprintf(&b, "> %s\n", m.Runtime.Note)
	}
	return b.String()
}

// RenderReport renders the report for a terminal of the given width. It
// falls back to plain markdown if the renderer cannot be built.
func RenderReport(m *pipeline.Metadata, width int) string {
	md := ReportMarkdown(m)
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

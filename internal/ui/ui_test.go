package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/audit"
	"webforge/internal/events"
	"webforge/internal/pipeline"
	"webforge/internal/policy"
	"webforge/internal/project"
	"webforge/internal/quality"
	"webforge/internal/sandbox"
)

func sampleLines() []events.Line {
	meta := &pipeline.Metadata{Name: "Crumb", Framework: "static"}
	return []events.Line{
		{Type: events.LineEvent, Event: &events.Event{Type: events.StageBuild, Message: "Generating files", Progress: 30}},
		{Type: events.LineEvent, Event: &events.Event{Type: events.StageWarning, Message: "reference skipped", Progress: 8}},
		{Type: events.LineFile, File: &project.File{Path: "index.html", Content: "<html></html>", Language: "html"}},
		{Type: events.LineMetadata, Metadata: meta},
		{Type: events.LineDone},
	}
}

func feed(lines []events.Line) <-chan events.Line {
	ch := make(chan events.Line, len(lines))
	for _, l := range lines {
		ch <- l
	}
	close(ch)
	return ch
}

func TestPrinterConsume(t *testing.T) {
	var buf bytes.Buffer
	out := NewPrinter(&buf, false).Consume(feed(sampleLines()))

	assert.True(t, out.Done)
	require.Len(t, out.Files, 1)
	require.NotNil(t, out.Metadata)
	assert.Equal(t, "Crumb", out.Metadata.Name)

	text := buf.String()
	assert.Contains(t, text, "Generating files")
	assert.Contains(t, text, "reference skipped")
	assert.Contains(t, text, "1 files received")
	assert.NotContains(t, text, "index.html")
}

func TestPrinterVerboseListsFiles(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Consume(feed(sampleLines()))
	assert.Contains(t, buf.String(), "index.html")
}

func TestPrinterError(t *testing.T) {
	var buf bytes.Buffer
	out := NewPrinter(&buf, false).Consume(feed([]events.Line{{Type: events.LineError, Error: "cost cap exceeded"}}))
	assert.Equal(t, "cost cap exceeded", out.Error)
	assert.False(t, out.Done)
	assert.Contains(t, buf.String(), "cost cap exceeded")
}

func TestProgressModelDrainsStream(t *testing.T) {
	lines := sampleLines()
	m := NewProgressModel(feed(nil))

	var model = m
	for _, l := range lines {
		next, _ := model.Update(lineMsg(l))
		model = next.(ProgressModel)
	}
	assert.Equal(t, 8, model.progress)
	assert.Equal(t, events.StageWarning, model.stage)
	assert.Len(t, model.log, 2)
	assert.True(t, model.outcome.Done)

	next, cmd := model.Update(streamClosedMsg{})
	model = next.(ProgressModel)
	assert.True(t, model.finished)
	assert.NotNil(t, cmd)
	assert.Contains(t, model.View(), "8%")
}

func TestReportMarkdown(t *testing.T) {
	meta := &pipeline.Metadata{
		Name:        "Crumb Bakery",
		Description: "Landing page",
		Framework:   "react-vite",
		RuntimeHint: policy.RuntimeHint{Preferred: policy.RuntimeBundled, Fallback: policy.RuntimeRemote, ComplexityScore: 32},
		Quality:     &quality.Report{VisualScore: 71, Issues: []string{"Missing referenced file: app.js"}},
		Runtime:     &sandbox.Result{Passed: true, Phase: sandbox.PhaseBuild},
		Responsive:  pipeline.Responsive{Ready: false, Warnings: []string{"No viewport meta tag"}},
		RolledBack:  true,
		Retries:     1,
	}
	md := ReportMarkdown(meta)
	assert.True(t, strings.HasPrefix(md, "# Crumb Bakery"))
	assert.Contains(t, md, "restored to the last version that built")
	assert.Contains(t, md, "bundled (fallback remote, complexity 32)")
	assert.Contains(t, md, "- Missing referenced file: app.js")
	assert.Contains(t, md, "- No viewport meta tag")

	assert.Contains(t, RenderReport(meta, 100), "Crumb Bakery")
}

func TestRenderUsage(t *testing.T) {
	since := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	out := RenderUsage(&audit.Spend{
		Since:    since,
		Requests: 3,
		Calls:    1200,
		Failed:   2,
		TotalUSD: 1.5,
		Models: []audit.ModelSpend{
			{Provider: "gemini", Model: "gemini-2.5-pro", Calls: 1200, InputTokens: 2_500_000, OutputTokens: 40_000, CostUSD: 1.5},
		},
	})
	assert.Contains(t, out, "2026-09-01")
	assert.Contains(t, out, "1,200 calls (2 failed)")
	assert.Contains(t, out, "gemini-2.5-pro")
	assert.Contains(t, out, "2,500,000")
	assert.Contains(t, out, "$1.5000")

	empty := RenderUsage(&audit.Spend{Since: since})
	assert.Contains(t, empty, "No model calls recorded.")
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/audit"
	"webforge/internal/pipeline"
	"webforge/internal/project"
	"webforge/internal/ui"
)

func TestBuildRequest(t *testing.T) {
	dir := t.TempDir()
	promptFile := filepath.Join(dir, "brief.md")
	require.NoError(t, os.WriteFile(promptFile, []byte("warm colors\n"), 0o644))
	img := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG\r\n\x1a\n0000"), 0o644))

	req, err := buildRequest(&generateOptions{
		promptFile: promptFile,
		images:     []string{img},
		maxRetries: 2,
		maxCost:    0.25,
		stack:      "static",
	}, []string{"bakery", "site"})
	require.NoError(t, err)

	assert.Equal(t, "bakery site\nwarm colors", req.Prompt)
	require.Len(t, req.Images, 1)
	assert.Equal(t, "image/png", req.Images[0].MIMEType)
	require.NotNil(t, req.Constraints.MaxRetries)
	assert.Equal(t, 2, *req.Constraints.MaxRetries)
	require.NotNil(t, req.Constraints.MaxCostUSD)
	assert.InDelta(t, 0.25, *req.Constraints.MaxCostUSD, 1e-9)
	assert.Equal(t, "static", req.OutputStack)
}

func TestBuildRequestKeepsConfigDefaults(t *testing.T) {
	req, err := buildRequest(&generateOptions{maxRetries: -1}, []string{"x"})
	require.NoError(t, err)
	assert.Nil(t, req.Constraints.MaxRetries)
	assert.Nil(t, req.Constraints.MaxCostUSD)
}

func TestWriteProject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	ledger := audit.NewLedger("req-1")
	ledger.Record(audit.NewEntry("req-1", "build", 0))

	o := &ui.Outcome{
		Files: []project.File{
			{Path: "index.html", Content: "<html></html>"},
			{Path: "src/main.tsx", Content: "export {}"},
		},
		Metadata: &pipeline.Metadata{Name: "Site", Ledger: ledger},
		Done:     true,
	}
	require.NoError(t, writeProject(dir, o))

	data, err := os.ReadFile(filepath.Join(dir, "src", "main.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(data))
	assert.FileExists(t, filepath.Join(dir, ".webforge", "metadata.json"))
	assert.FileExists(t, filepath.Join(dir, ".webforge", "usage.json"))
}

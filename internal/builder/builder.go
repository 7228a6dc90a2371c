// Package builder generates project files from a design blueprint with one
// model call per pass.
package builder

import (
	"context"
	"fmt"
	"strings"

	"webforge/internal/client"
	"webforge/internal/logging"
	"webforge/internal/project"
)

// FallbackPath receives the raw model output when no file blocks parse.
const FallbackPath = "index.html"

// Result is one build pass.
type Result struct {
	Project  *project.Project
	Warnings []string
	// Fallback is set when the raw response was wrapped as FallbackPath.
	Fallback bool
	// Carried lists files kept from the previous pass because the model
	// omitted them.
	Carried []string
}

// Builder turns an Input into a complete file set.
type Builder struct {
	client    client.Client
	maxTokens int32
}

// New creates a builder. maxTokens of zero leaves the provider default.
func New(c client.Client, maxTokens int32) *Builder {
	return &Builder{client: c, maxTokens: maxTokens}
}

// Build runs one pass. Provider errors are returned; an unparseable response
// still yields a one-file project.
func (b *Builder) Build(ctx context.Context, in *Input) (*Result, error) {
	resp, err := b.client.Generate(ctx, &client.Request{
		Stage:           client.StageBuild,
		System:          systemPrompt(in.Stack),
		Prompt:          userPrompt(in),
		MaxOutputTokens: b.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}

	res, err := Assemble(resp.Text, in.Previous)
	if err != nil {
		return nil, err
	}
	logging.Debug("build parsed",
		"files", res.Project.Len(),
		"fallback", res.Fallback,
		"carried", len(res.Carried),
		"warnings", len(res.Warnings))
	return res, nil
}

// Assemble parses a model response into a project. Files the response omits
// are carried over from previous, if given.
func Assemble(raw string, previous *project.Project) (*Result, error) {
	files, warnings := project.Parse(raw)
	res := &Result{Warnings: warnings}

	if len(files) == 0 {
		content := project.StripFence(strings.TrimSpace(raw))
		if content == "" {
			content = emptyFallbackPage
		}
		files = []project.File{{Path: FallbackPath, Content: content}}
		res.Fallback = true
		res.Warnings = append(res.Warnings, "no file blocks found; raw response used as "+FallbackPath)
	}

	p, err := project.New(files...)
	if err != nil {
		return nil, fmt.Errorf("assemble project: %w", err)
	}

	if previous != nil && !res.Fallback {
		var carried []project.File
		for _, f := range previous.Files() {
			if !p.Has(f.Path) {
				carried = append(carried, f)
				res.Carried = append(res.Carried, f.Path)
			}
		}
		if len(carried) > 0 {
			if p, err = p.With(carried...); err != nil {
				return nil, err
			}
		}
	}

	res.Project = p
	return res, nil
}

const emptyFallbackPage = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>Empty</title></head>
<body></body>
</html>`

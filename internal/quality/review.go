package quality

import (
	"context"
	"fmt"
	"strings"

	"webforge/internal/client"
	"webforge/internal/llmjson"
	"webforge/internal/project"
)

const reviewSystemPrompt = `You are a strict QA engineer reviewing a generated website against its design blueprint.

Check that every planned section, component and interaction is implemented and works, that the code would build, and that the layout is responsive.

Respond with ONE JSON object and nothing else:
{"pass": boolean, "issues": [string], "patch": string}

- "issues" lists concrete defects, one per entry, naming the file.
- "patch" gives short imperative fix instructions, one per line.
- Set "pass" to true only when there are no functional defects.`

// maxReviewChars bounds the file listing sent for review.
const maxReviewChars = 120_000

// Review is the model's functional verdict.
type Review struct {
	Pass   bool     `json:"pass"`
	Issues []string `json:"issues"`
	Patch  string   `json:"patch"`
}

func (v *Validator) review(ctx context.Context, specJSON string, p *project.Project) (*Review, error) {
	files := project.Serialize(p.Files())
	if len(files) > maxReviewChars {
		files = files[:maxReviewChars] + "\n[truncated]\n"
	}
	prompt := fmt.Sprintf("## Design blueprint\n%s\n\n## Files\n%s", specJSON, files)

	resp, err := v.client.Generate(ctx, &client.Request{
		Stage:       client.StageReview,
		System:      reviewSystemPrompt,
		Prompt:      prompt,
		JSON:        true,
		Temperature: client.Ptr[float32](0),
	})
	if err != nil {
		return nil, fmt.Errorf("review failed: %w", err)
	}

	r, ok := llmjson.Parse[Review](resp.Text)
	if !ok {
		return &Review{Pass: false, Issues: []string{"Model review returned an unreadable verdict"}}, nil
	}
	for i, issue := range r.Issues {
		r.Issues[i] = strings.TrimSpace(issue)
	}
	return &r, nil
}

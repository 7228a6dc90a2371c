package client

import (
	"context"
	"unicode/utf8"
)

// Call stages, used for usage attribution and by the scripted fake.
const (
	StageSpec   = "spec"
	StageBuild  = "build"
	StageReview = "review"
)

// Image is an inline image attachment.
type Image struct {
	MIMEType string
	Data     []byte
}

// Request is one model call.
type Request struct {
	// Stage names the pipeline stage making the call.
	Stage string
	// System is passed through the provider's native system parameter.
	System string
	Prompt string
	Images []Image
	// JSON asks the provider for a JSON-only response where supported.
	JSON bool

	MaxOutputTokens int32
	Temperature     *float32
}

// Response is a completed model call.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	// Estimated is set when the provider reported no usage and the token
	// counts were derived from text length.
	Estimated bool
}

// Client defines the interface for one-shot model calls.
type Client interface {
	// Generate sends one request and waits for the full response.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Provider returns the provider name (gemini, anthropic, ollama, fake).
	Provider() string

	// Model returns the model name.
	Model() string

	// Close releases client resources.
	Close() error
}

// ModelInfo describes a known model.
type ModelInfo struct {
	ID       string
	Name     string
	Provider string
	Pricing  Price
}

// AvailableModels lists models with built-in pricing.
var AvailableModels = []ModelInfo{
	{ID: "gemini-3-flash-preview", Name: "Gemini 3 Flash", Provider: "gemini", Pricing: Price{Input: 0.50, Output: 3.00}},
	{ID: "gemini-3-pro-preview", Name: "Gemini 3 Pro", Provider: "gemini", Pricing: Price{Input: 2.00, Output: 12.00}},
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: "gemini", Pricing: Price{Input: 0.30, Output: 2.50}},
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: "gemini", Pricing: Price{Input: 1.25, Output: 10.00}},
	{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Provider: "anthropic", Pricing: Price{Input: 3.00, Output: 15.00}},
	{ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5", Provider: "anthropic", Pricing: Price{Input: 1.00, Output: 5.00}},
	{ID: "claude-opus-4-1", Name: "Claude Opus 4.1", Provider: "anthropic", Pricing: Price{Input: 15.00, Output: 75.00}},
}

// DefaultModels is the model used per provider when none is requested.
var DefaultModels = map[string]string{
	"gemini":    "gemini-3-flash-preview",
	"anthropic": "claude-sonnet-4-5",
	"ollama":    "qwen2.5-coder",
}

// GetModelInfo returns information about a specific model.
func GetModelInfo(modelID string) (ModelInfo, bool) {
	for _, m := range AvailableModels {
		if m.ID == modelID {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// EstimateTokens approximates a token count at four characters per token.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// fillUsage estimates missing token counts.
func fillUsage(req *Request, resp *Response) {
	if resp.InputTokens > 0 && resp.OutputTokens > 0 {
		return
	}
	resp.Estimated = true
	if resp.InputTokens == 0 {
		resp.InputTokens = EstimateTokens(req.System) + EstimateTokens(req.Prompt) + 258*len(req.Images)
	}
	if resp.OutputTokens == 0 {
		resp.OutputTokens = EstimateTokens(resp.Text)
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

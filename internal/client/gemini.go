package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"webforge/internal/logging"
	"webforge/internal/security"

	"google.golang.org/genai"
)

// GeminiConfig configures GeminiClient.
type GeminiConfig struct {
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float32
	MaxOutputTokens int32
	HTTPTimeout     time.Duration
}

// GeminiClient wraps the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
	config GeminiConfig
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels["gemini"]
	}

	clientConfig := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.APIKey,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.HTTPTimeout > 0 {
		clientConfig.HTTPClient = security.CreateSecureHTTPClient(cfg.HTTPTimeout)
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, config: cfg}, nil
}

// Provider returns "gemini".
func (c *GeminiClient) Provider() string { return "gemini" }

// Model returns the model name.
func (c *GeminiClient) Model() string { return c.config.Model }

// Close is a no-op; the genai client holds no connections of its own.
func (c *GeminiClient) Close() error { return nil }

// Generate sends one request.
func (c *GeminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data}})
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	genConfig := &genai.GenerateContentConfig{
		Temperature:     Ptr(c.config.Temperature),
		MaxOutputTokens: c.config.MaxOutputTokens,
	}
	if req.Temperature != nil {
		genConfig.Temperature = req.Temperature
	}
	if req.MaxOutputTokens > 0 {
		genConfig.MaxOutputTokens = req.MaxOutputTokens
	}
	if req.System != "" {
		genConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(req.System)}}
	}
	if req.JSON {
		genConfig.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, genConfig)
	if err != nil {
		return nil, c.wrapError(err)
	}

	var text strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && !part.Thought {
				text.WriteString(part.Text)
			}
		}
	}

	out := &Response{Text: text.String(), Model: c.config.Model}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	fillUsage(req, out)

	logging.Debug("gemini call finished",
		"stage", req.Stage,
		"model", c.config.Model,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"duration", time.Since(start))
	return out, nil
}

func (c *GeminiClient) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newAPIError("gemini", apiErr.Code, apiErr.Status, apiErr.Message)
	}
	return fmt.Errorf("gemini request failed: %w", err)
}

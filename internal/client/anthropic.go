package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"webforge/internal/logging"
	"webforge/internal/security"
)

const defaultAnthropicURL = "https://api.anthropic.com"

// AnthropicConfig holds configuration for Anthropic-compatible APIs.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int32
	Temperature float32
	HTTPTimeout time.Duration
}

// AnthropicClient calls the Messages API without streaming.
type AnthropicClient struct {
	config     AnthropicConfig
	httpClient *http.Client
}

// NewAnthropicClient creates an Anthropic-compatible client.
func NewAnthropicClient(config AnthropicConfig) (*AnthropicClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModels["anthropic"]
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultAnthropicURL
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 16384
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 180 * time.Second
	}
	return &AnthropicClient{
		config:     config,
		httpClient: security.CreateSecureHTTPClient(config.HTTPTimeout),
	}, nil
}

// Provider returns "anthropic".
func (c *AnthropicClient) Provider() string { return "anthropic" }

// Model returns the model name.
func (c *AnthropicClient) Model() string { return c.config.Model }

// Close releases idle connections.
func (c *AnthropicClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int32              `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float32           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends one request.
func (c *AnthropicClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	content := make([]anthropicContent, 0, len(req.Images)+1)
	for _, img := range req.Images {
		content = append(content, anthropicContent{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: img.MIMEType,
				Data:      base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	prompt := req.Prompt
	if req.JSON {
		prompt += "\n\nRespond with a single JSON object and nothing else."
	}
	content = append(content, anthropicContent{Type: "text", Text: prompt})

	body := anthropicRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		System:      req.System,
		Temperature: Ptr(c.config.Temperature),
		Messages:    []anthropicMessage{{Role: "user", Content: content}},
	}
	if req.MaxOutputTokens > 0 {
		body.MaxTokens = req.MaxOutputTokens
	}
	if req.Temperature != nil {
		body.Temperature = req.Temperature
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read anthropic response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb anthropicErrorBody
		msg := string(raw)
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
		logging.Warn("anthropic API error", "status", resp.StatusCode, "body", security.Redact(msg))
		return nil, newAPIError("anthropic", resp.StatusCode, eb.Error.Type, msg)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode anthropic response: %w", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := &Response{
		Text:         text.String(),
		Model:        c.config.Model,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
	}
	fillUsage(req, out)

	logging.Debug("anthropic call finished",
		"stage", req.Stage,
		"model", c.config.Model,
		"stop_reason", parsed.StopReason,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"duration", time.Since(start))
	return out, nil
}

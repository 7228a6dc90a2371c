package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"webforge/internal/logging"

	"github.com/ollama/ollama/api"
)

// OllamaConfig holds configuration for the Ollama API client.
type OllamaConfig struct {
	BaseURL     string // Default: "http://localhost:11434"
	APIKey      string // Optional, for remote servers with auth
	Model       string
	Temperature float32
	MaxTokens   int32
	HTTPTimeout time.Duration
}

// OllamaClient calls a local or remote Ollama server.
type OllamaClient struct {
	client *api.Client
	config OllamaConfig
}

// authTransport adds an Authorization header to every request.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(reqClone)
}

// NewOllamaClient creates a new Ollama API client.
func NewOllamaClient(config OllamaConfig) (*OllamaClient, error) {
	if config.Model == "" {
		config.Model = DefaultModels["ollama"]
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 16384
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 300 * time.Second
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	if baseURL.Scheme == "http" {
		host := baseURL.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			logging.Warn("Ollama connection uses unencrypted HTTP to remote host", "host", host)
		}
	}

	httpClient := &http.Client{Timeout: config.HTTPTimeout}
	if config.APIKey != "" {
		httpClient.Transport = &authTransport{base: http.DefaultTransport, apiKey: config.APIKey}
	}

	return &OllamaClient{
		client: api.NewClient(baseURL, httpClient),
		config: config,
	}, nil
}

// Provider returns "ollama".
func (c *OllamaClient) Provider() string { return "ollama" }

// Model returns the model name.
func (c *OllamaClient) Model() string { return c.config.Model }

// Close is a no-op.
func (c *OllamaClient) Close() error { return nil }

// ListModels returns the names of the models installed on the server.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, c.wrapError(err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// Generate sends one non-streaming chat request.
func (c *OllamaClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	var messages []api.Message
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	user := api.Message{Role: "user", Content: req.Prompt}
	for _, img := range req.Images {
		user.Images = append(user.Images, api.ImageData(img.Data))
	}
	messages = append(messages, user)

	temperature := c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := c.config.MaxTokens
	if req.MaxOutputTokens > 0 {
		maxTokens = req.MaxOutputTokens
	}

	chatReq := &api.ChatRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   Ptr(false),
		Options: map[string]interface{}{
			"num_predict": maxTokens,
			"temperature": temperature,
		},
	}
	if req.JSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	start := time.Now()
	var (
		text                      strings.Builder
		inputTokens, outputTokens int
	)
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		if resp.Done {
			inputTokens = resp.PromptEvalCount
			outputTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, c.wrapError(err)
	}

	out := &Response{
		Text:         text.String(),
		Model:        c.config.Model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
	fillUsage(req, out)

	logging.Debug("ollama call finished",
		"stage", req.Stage,
		"model", c.config.Model,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"duration", time.Since(start))
	return out, nil
}

func (c *OllamaClient) wrapError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return newAPIError("ollama", statusErr.StatusCode, statusErr.Status, statusErr.ErrorMessage)
	}
	if strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("ollama is not reachable at %s: %w", c.config.BaseURL, err)
	}
	return fmt.Errorf("ollama request failed: %w", err)
}

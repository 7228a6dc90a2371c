package pipeline

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"webforge/internal/client"
	"webforge/internal/config"
	"webforge/internal/ingest"
	"webforge/internal/project"
	"webforge/internal/quality"
)

// Image is an uploaded reference screenshot. Data is base64 in JSON.
type Image struct {
	MIMEType string `json:"mime"`
	Data     []byte `json:"data"`
}

// Constraints bound one request. Nil fields take configured defaults.
type Constraints struct {
	MaxRetries *int     `json:"maxRetries,omitempty"`
	MaxCostUSD *float64 `json:"maxCostUsd,omitempty"`
}

// Request is a generation request as received from the CLI or HTTP.
type Request struct {
	Prompt      string      `json:"prompt"`
	Images      []Image     `json:"images,omitempty"`
	URLs        []string    `json:"urls,omitempty"`
	Provider    string      `json:"provider,omitempty"`
	APIKey      string      `json:"apiKey,omitempty"`
	Model       string      `json:"model,omitempty"`
	Constraints Constraints `json:"constraints"`
	OutputStack string      `json:"outputStack,omitempty"`
	QualityMode string      `json:"qualityMode,omitempty"`
}

// Params is a validated request with every default resolved.
type Params struct {
	Input      ingest.Input
	Client     client.Options
	MaxRetries int
	MaxCostUSD float64
	Stack      project.Stack
	Mode       quality.Mode
}

// Prepare validates req against cfg. It returns an *InputError for anything
// that must be rejected before the stream starts.
func Prepare(cfg *config.Config, req *Request) (*Params, error) {
	if req == nil {
		return nil, inputErr("request", "empty body")
	}
	pc := cfg.Pipeline

	prompt := strings.TrimSpace(req.Prompt)
	if n := utf8.RuneCountInString(prompt); pc.MaxPromptChar > 0 && n > pc.MaxPromptChar {
		return nil, inputErr("prompt", "%d characters exceeds the limit of %d", n, pc.MaxPromptChar)
	}

	if pc.MaxImages > 0 && len(req.Images) > pc.MaxImages {
		return nil, inputErr("images", "at most %d images are accepted, got %d", pc.MaxImages, len(req.Images))
	}
	in := ingest.Input{Prompt: prompt}
	for i, img := range req.Images {
		if len(img.Data) == 0 {
			return nil, inputErr("images", "image %d is empty", i+1)
		}
		if pc.MaxImageBytes > 0 && len(img.Data) > pc.MaxImageBytes {
			return nil, inputErr("images", "image %d is %d bytes, limit is %d", i+1, len(img.Data), pc.MaxImageBytes)
		}
		if !strings.HasPrefix(img.MIMEType, "image/") {
			return nil, inputErr("images", "image %d has unsupported type %q", i+1, img.MIMEType)
		}
		in.Images = append(in.Images, ingest.Screenshot{Source: "upload", MIMEType: img.MIMEType, Data: img.Data})
	}

	if max := cfg.Ingest.MaxURLs; max > 0 && len(req.URLs) > max {
		return nil, inputErr("urls", "at most %d reference URLs are accepted, got %d", max, len(req.URLs))
	}
	for _, raw := range req.URLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		// Scheme and address checks happen during ingestion and only warn.
		if _, err := url.Parse(raw); err != nil {
			return nil, inputErr("urls", "%q is not a URL", raw)
		}
		in.URLs = append(in.URLs, raw)
	}
	if in.Prompt == "" && len(in.Images) == 0 && len(in.URLs) == 0 {
		return nil, inputErr("prompt", "a prompt, an image or a reference URL is required")
	}

	opts := client.OptionsFromConfig(cfg, req.Provider, req.APIKey, req.Model)
	if opts.Provider == "" {
		return nil, inputErr("provider", "no provider selected")
	}
	if client.RequiresKey(opts.Provider) && opts.APIKey == "" {
		return nil, inputErr("apiKey", "provider %s requires an API key", opts.Provider)
	}

	params := &Params{
		Input:      in,
		Client:     opts,
		MaxRetries: pc.MaxRetries,
		MaxCostUSD: pc.MaxCostUSD,
	}
	if c := req.Constraints.MaxRetries; c != nil {
		params.MaxRetries = *c
	}
	if params.MaxRetries < 0 || params.MaxRetries > config.MaxRetriesLimit {
		return nil, inputErr("constraints.maxRetries", "must be between 0 and %d, got %d", config.MaxRetriesLimit, params.MaxRetries)
	}
	if c := req.Constraints.MaxCostUSD; c != nil {
		params.MaxCostUSD = *c
	}
	if params.MaxCostUSD < config.MinMaxCostUSD {
		return nil, inputErr("constraints.maxCostUsd", "must be at least %.2f, got %.4f", config.MinMaxCostUSD, params.MaxCostUSD)
	}

	stackName := req.OutputStack
	if stackName == "" {
		stackName = pc.OutputStack
	}
	stack, err := project.ParseStack(stackName)
	if err != nil {
		return nil, inputErr("outputStack", "%v", err)
	}
	params.Stack = stack

	modeName := req.QualityMode
	if modeName == "" {
		modeName = pc.QualityMode
	}
	mode, err := quality.ParseMode(modeName)
	if err != nil {
		return nil, inputErr("qualityMode", "%v", err)
	}
	params.Mode = mode

	return params, nil
}

func (p *Params) String() string {
	return fmt.Sprintf("provider=%s model=%s stack=%s mode=%s retries=%d cap=$%.2f",
		p.Client.Provider, p.Client.Model, p.Stack, p.Mode, p.MaxRetries, p.MaxCostUSD)
}

package config

import "time"

// Config is the full webforge configuration. It is loaded once by the CLI or
// server and handed to every component explicitly.
type Config struct {
	Provider ProviderConfig          `yaml:"provider"`
	Pricing  map[string]PricingEntry `yaml:"pricing,omitempty"`
	Pipeline PipelineConfig          `yaml:"pipeline"`
	Ingest   IngestConfig            `yaml:"ingest"`
	Policy   PolicyConfig            `yaml:"policy"`
	Runtime  RuntimeConfig           `yaml:"runtime"`
	Server   ServerConfig            `yaml:"server"`
	Logging  LoggingConfig           `yaml:"logging"`
	Audit    AuditConfig             `yaml:"audit"`

	// Runtime version information
	Version string `yaml:"-"`
}

// ProviderConfig selects the model provider.
type ProviderConfig struct {
	// Name: gemini, anthropic, ollama (default: gemini)
	Name string `yaml:"name"`
	// Model overrides the provider default.
	Model   string `yaml:"model,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`

	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	Temperature     float32       `yaml:"temperature"`
	MaxOutputTokens int32         `yaml:"max_output_tokens"`

	// Per-provider keys picked up from the environment.
	GeminiKey    string `yaml:"gemini_key,omitempty"`
	AnthropicKey string `yaml:"anthropic_key,omitempty"`
	OllamaHost   string `yaml:"ollama_host,omitempty"`
}

// KeyFor returns the API key to use for a provider.
func (c *ProviderConfig) KeyFor(provider string) string {
	switch provider {
	case "gemini":
		if c.GeminiKey != "" {
			return c.GeminiKey
		}
	case "anthropic":
		if c.AnthropicKey != "" {
			return c.AnthropicKey
		}
	}
	return c.APIKey
}

// PricingEntry is USD per million tokens.
type PricingEntry struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// PipelineConfig holds orchestrator defaults and input bounds.
type PipelineConfig struct {
	MaxRetries    int     `yaml:"max_retries"`
	MaxCostUSD    float64 `yaml:"max_cost_usd"`
	OutputStack   string  `yaml:"output_stack"`
	QualityMode   string  `yaml:"quality_mode"`
	EventBuffer   int     `yaml:"event_buffer"`
	MaxPromptChar int     `yaml:"max_prompt_chars"`
	MaxImages     int     `yaml:"max_images"`
	MaxImageBytes int     `yaml:"max_image_bytes"`

	SendTimeout time.Duration `yaml:"send_timeout"`
}

// IngestConfig bounds reference URL fetching.
type IngestConfig struct {
	MaxURLs       int           `yaml:"max_urls"`
	MaxFetchBytes int64         `yaml:"max_fetch_bytes"`
	MaxRedirects  int           `yaml:"max_redirects"`
	ContentChars  int           `yaml:"content_chars"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	// ScreenshotURL is an external renderer endpoint; the page URL is appended
	// as the "url" query parameter. Empty disables screenshots.
	ScreenshotURL string `yaml:"screenshot_url,omitempty"`
	// PageCacheTTL keeps fetched reference pages for reuse by later runs.
	// Negative disables the cache.
	PageCacheTTL  time.Duration `yaml:"page_cache_ttl"`
	PageCacheSize int           `yaml:"page_cache_size"`
}

// PolicyConfig tunes the package policy.
type PolicyConfig struct {
	Strict       bool     `yaml:"strict"`
	ExtraAllowed []string `yaml:"extra_allowed,omitempty"`
}

// RuntimeConfig controls the sandboxed build check.
type RuntimeConfig struct {
	// Mode: auto, on, off (default: auto)
	Mode        string        `yaml:"mode"`
	Timeout     time.Duration `yaml:"timeout"`
	Grace       time.Duration `yaml:"grace"`
	Install     string        `yaml:"install"`
	Build       string        `yaml:"build"`
	Test        string        `yaml:"test"`
	RunTests    bool          `yaml:"run_tests"`
	OutputLimit int           `yaml:"output_limit"`
	Remote      RemoteConfig  `yaml:"remote"`
}

// RemoteConfig points the build check at an SSH host.
type RemoteConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
	WorkRoot string `yaml:"work_root,omitempty"`
}

// Enabled reports whether a remote host is configured.
func (r RemoteConfig) Enabled() bool { return r.Host != "" }

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// RequestsPerMinute limits generation requests per client address.
	// Zero disables the limit.
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// AuditConfig controls the usage database every run's model calls are
// stored in.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Dir receives webforge.log when set.
	Dir string `yaml:"dir,omitempty"`
}

package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultProvider        = "gemini"
	DefaultHTTPTimeout     = 180 * time.Second
	DefaultTemperature     = 0.4
	DefaultMaxOutputTokens = 16384

	DefaultMaxRetries    = 1
	MaxRetriesLimit      = 2
	DefaultMaxCostUSD    = 0.50
	MinMaxCostUSD        = 0.05
	DefaultEventBuffer   = 64
	DefaultSendTimeout   = 5 * time.Second
	DefaultMaxPrompt     = 20000
	DefaultMaxImages     = 4
	DefaultMaxImageBytes = 5 << 20

	DefaultMaxURLs       = 3
	DefaultMaxFetchBytes = 1 << 20
	DefaultMaxRedirects  = 2
	DefaultContentChars  = 4000
	DefaultFetchTimeout  = 15 * time.Second
	DefaultPageCacheTTL  = 10 * time.Minute
	DefaultPageCacheSize = 64

	DefaultRuntimeMode    = "auto"
	DefaultRuntimeTimeout = 120 * time.Second
	DefaultRuntimeGrace   = 5 * time.Second
	DefaultInstallCommand = "npm install --no-audit --no-fund --loglevel=error"
	DefaultBuildCommand   = "npm run build"
	DefaultTestCommand    = "npm test"
	DefaultOutputLimit    = 64 << 10
	DefaultSSHPort        = 22

	DefaultServerAddr     = ":8080"
	DefaultRequestTimeout = 10 * time.Minute
	DefaultRequestsPerMin = 6
	DefaultBurst          = 3
)

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:            DefaultProvider,
			HTTPTimeout:     DefaultHTTPTimeout,
			Temperature:     DefaultTemperature,
			MaxOutputTokens: DefaultMaxOutputTokens,
		},
		Pipeline: PipelineConfig{
			MaxRetries:    DefaultMaxRetries,
			MaxCostUSD:    DefaultMaxCostUSD,
			OutputStack:   "framework",
			QualityMode:   "balanced",
			EventBuffer:   DefaultEventBuffer,
			SendTimeout:   DefaultSendTimeout,
			MaxPromptChar: DefaultMaxPrompt,
			MaxImages:     DefaultMaxImages,
			MaxImageBytes: DefaultMaxImageBytes,
		},
		Ingest: IngestConfig{
			MaxURLs:       DefaultMaxURLs,
			MaxFetchBytes: DefaultMaxFetchBytes,
			MaxRedirects:  DefaultMaxRedirects,
			ContentChars:  DefaultContentChars,
			FetchTimeout:  DefaultFetchTimeout,
		},
		Runtime: RuntimeConfig{
			Mode:        DefaultRuntimeMode,
			Timeout:     DefaultRuntimeTimeout,
			Grace:       DefaultRuntimeGrace,
			Install:     DefaultInstallCommand,
			Build:       DefaultBuildCommand,
			Test:        DefaultTestCommand,
			OutputLimit: DefaultOutputLimit,
			Remote:      RemoteConfig{Port: DefaultSSHPort},
		},
		Server: ServerConfig{
			Addr:              DefaultServerAddr,
			RequestTimeout:    DefaultRequestTimeout,
			RequestsPerMinute: DefaultRequestsPerMin,
			Burst:             DefaultBurst,
		},
		Logging: LoggingConfig{Level: "info"},
		Audit:   AuditConfig{Enabled: true, DBPath: defaultAuditPath()},
	}
}

// defaultAuditPath is $XDG_DATA_HOME/webforge/usage.db, or the same under
// ~/.local/share.
func defaultAuditPath() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "webforge", "usage.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "webforge", "usage.db")
}

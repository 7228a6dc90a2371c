package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads .env (if present), the YAML config file and environment
// overrides, in that order. An empty path means the default location.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path == "" {
		path = getConfigPath()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getConfigPath returns the path to the config file.
func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "webforge", "config.yaml")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "webforge", "config.yaml")
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Expand environment variables in the config file
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv applies environment overrides.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("WEBFORGE_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("WEBFORGE_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Provider.GeminiKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Provider.AnthropicKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Provider.OllamaHost = v
	}
	if v := os.Getenv("WEBFORGE_RUNTIME_MODE"); v != "" {
		cfg.Runtime.Mode = v
	}
	if v := os.Getenv("WEBFORGE_USAGE_DB"); v != "" {
		cfg.Audit.DBPath = v
	}
}

// Validate checks value ranges. Missing credentials are checked per request.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "gemini", "anthropic", "ollama":
	default:
		return ConfigError(fmt.Sprintf("unknown provider %q", c.Provider.Name))
	}
	if c.Pipeline.MaxRetries < 0 || c.Pipeline.MaxRetries > MaxRetriesLimit {
		return ConfigError(fmt.Sprintf("pipeline.max_retries must be within [0,%d]", MaxRetriesLimit))
	}
	if c.Pipeline.MaxCostUSD < MinMaxCostUSD {
		return ConfigError(fmt.Sprintf("pipeline.max_cost_usd must be at least %.2f", MinMaxCostUSD))
	}
	switch strings.ToLower(c.Runtime.Mode) {
	case "auto", "on", "off":
		c.Runtime.Mode = strings.ToLower(c.Runtime.Mode)
	default:
		return ConfigError(fmt.Sprintf("runtime.mode must be auto, on or off, got %q", c.Runtime.Mode))
	}
	if c.Runtime.Timeout <= 0 {
		c.Runtime.Timeout = DefaultRuntimeTimeout
	}
	if c.Pipeline.EventBuffer <= 0 {
		c.Pipeline.EventBuffer = DefaultEventBuffer
	}
	if c.Server.RequestsPerMinute < 0 {
		return ConfigError("server.requests_per_minute must not be negative")
	}
	return nil
}

// ConfigError is a configuration validation failure.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

// GetConfigPath returns the default config file path.
func GetConfigPath() string {
	return getConfigPath()
}

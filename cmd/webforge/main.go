package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"webforge/internal/config"
	"webforge/internal/logging"
)

var (
	version  = "0.1.0"
	cfgFile  string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webforge",
		Short: "Generate runnable web projects from prompts, screenshots and reference sites",
		Long: `webforge turns a prompt, optional screenshots and reference URLs into a
runnable web project. Each run extracts a design spec, generates files,
enforces a package policy, validates quality, checks that the project
installs and builds, and repairs it within a retry and cost budget.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/webforge/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newUsageCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("webforge version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Version = version
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// setupLogging sends logs to stderr, or to a file when the terminal belongs
// to the TUI.
func setupLogging(cfg *config.Config, tui bool) {
	level := logging.ParseLevel(cfg.Logging.Level)
	dir := cfg.Logging.Dir
	if tui && dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".webforge", "logs")
		}
	}
	if dir != "" {
		if err := logging.EnableFileLogging(dir, level); err == nil {
			return
		}
	}
	if !tui {
		logging.Configure(level, os.Stderr)
	}
}

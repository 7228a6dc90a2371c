package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"webforge/internal/audit"
	"webforge/internal/config"
	"webforge/internal/logging"
	"webforge/internal/pipeline"
	"webforge/internal/ui"
)

func newUsageCmd() *cobra.Command {
	var (
		since  time.Duration
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show recorded model spend",
		Long: `Usage summarizes every model call recorded in the usage database,
grouped by provider and model, over the given window.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg, false)
			defer logging.Close()

			if !cfg.Audit.Enabled || cfg.Audit.DBPath == "" {
				return errors.New("usage recording is disabled (audit.enabled in config)")
			}
			store, err := audit.OpenStore(cfg.Audit.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			spend, err := store.Spend(ctx, time.Now().Add(-since))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(spend)
			}
			fmt.Print(ui.RenderUsage(spend))
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 30*24*time.Hour, "how far back to sum spend")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

// openUsageStore opens the usage database, or returns nil when recording is
// off or the database cannot be opened. Generation never fails because of it.
func openUsageStore(cfg *config.Config) *audit.Store {
	if !cfg.Audit.Enabled || cfg.Audit.DBPath == "" {
		return nil
	}
	store, err := audit.OpenStore(cfg.Audit.DBPath)
	if err != nil {
		logging.Warn("usage recording disabled", "path", cfg.Audit.DBPath, "error", err)
		return nil
	}
	return store
}

// pipelineOptions wires the optional usage store into a pipeline.
func pipelineOptions(store *audit.Store) []pipeline.Option {
	if store == nil {
		return nil
	}
	return []pipeline.Option{pipeline.WithUsageSink(store)}
}

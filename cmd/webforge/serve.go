package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"webforge/internal/logging"
	"webforge/internal/pipeline"
	"webforge/internal/server"
	"webforge/internal/ssh"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generation API over HTTP",
		Long: `Serve exposes POST /api/generate (NDJSON stream), GET /api/generate/ws
(the same stream over a websocket) and GET /healthz.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg, false)
			defer logging.Close()

			if addr == "" {
				addr = cfg.Server.Addr
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var pool *ssh.Pool
			if cfg.Runtime.Remote.Enabled() {
				pool = ssh.NewPool(ssh.DefaultMaxIdle)
				defer pool.Close()
			}
			store := openUsageStore(cfg)
			if store != nil {
				defer store.Close()
			}
			return server.New(cfg, pipeline.New(cfg, pool, pipelineOptions(store)...)).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

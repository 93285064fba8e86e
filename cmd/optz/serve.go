package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zoobzio/optz/internal/config"
	"github.com/zoobzio/optz/internal/server"
)

var (
	serveAddr string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the optimizer over HTTP",
		Long: `Serve the optimizer over HTTP until interrupted.

Routes: POST /optimize (multipart field "file"), POST /optimizeEdited
(text/plain body), GET /download, GET /passes, GET /healthz.

Settings come from OPTZ_* environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from OPTZ_SERVER_HOST and OPTZ_SERVER_PORT)")
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	addr := cfg.Server.Addr()
	if serveAddr != "" {
		addr = serveAddr
	}

	p := buildPipeline(cfg.Pipeline)
	defer p.Close()

	logger.Info("Initializing optz server",
		zap.String("addr", addr),
		zap.Int("passes", p.Len()),
		zap.Int("max_input_bytes", cfg.Pipeline.MaxInputBytes),
		zap.Duration("budget", cfg.Pipeline.Budget),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(p, logger).Run(ctx, addr); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

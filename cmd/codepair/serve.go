package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codepair-dev/codepair/internal/config"
	"github.com/codepair-dev/codepair/internal/errors"
	"github.com/codepair-dev/codepair/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		addr     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		Long: `Start the collaboration relay.

Configuration comes from CODEPAIR_* environment variables; flags
override the environment. The server exposes:

  /ws       websocket endpoint for collaboration clients
  /healthz  liveness check
  /metrics  Prometheus metrics

Examples:
  codepair serve
  codepair serve --addr=:8080
  CODEPAIR_ALLOWED_ORIGINS=https://codepair.example codepair serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, logLevel)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default "+config.DefaultAddr+")")
	cmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level: debug, info, warn, error")

	return cmd
}

func runServe(addr, logLevel string) error {
	if logLevel != "" {
		os.Setenv(config.EnvLogLevel, logLevel)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := cfg.Logger(os.Stderr)
	s := server.New(&server.Config{
		Address:         cfg.Addr,
		CheckOrigin:     cfg.CheckOrigin(),
		SendBuffer:      cfg.SendBuffer,
		EventBuffer:     cfg.EventBuffer,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.New("E110").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := s.Shutdown(context.Background()); err != nil {
		return errors.FromError(err, "E110")
	}
	return <-errCh
}

// Command personamatch-server serves POST /persona.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/personamatch"
	"github.com/codeGROOVE-dev/personamatch/pkg/config"
	"github.com/codeGROOVE-dev/personamatch/pkg/logging"
	"github.com/codeGROOVE-dev/personamatch/pkg/server"
)

func main() {
	cfg := config.Load()
	logger, logCloser := logging.New(cfg.Logging(false))
	if logCloser != nil {
		defer func() { _ = logCloser.Close() }() //nolint:errcheck // best effort on exit
	}
	slog.SetDefault(logger)

	if err := serve(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1) //nolint:gocritic // exitAfterDefer is acceptable in main
	}
}

func serve(cfg config.Config, logger *slog.Logger) error {
	p, err := personamatch.New(cfg, personamatch.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("failed to close pipeline", "error", err)
		}
	}()

	srv := server.New(p,
		server.WithLogger(logger),
		server.WithMaxConcurrent(cfg.MaxConcurrentResolutions))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(":" + strconv.Itoa(cfg.Port)) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

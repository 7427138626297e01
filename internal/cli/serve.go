package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runnerr0/tabcycle/internal/app"
	"github.com/runnerr0/tabcycle/internal/server"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Daemon.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Daemon.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}

	logger, logCloser, err := setupLogger(cfg, true)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	a, err := app.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg.DaemonAddr(), server.New(a, c.version))
}

// serve runs handler on addr until ctx is cancelled.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("tabcycle daemon listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("daemon server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("daemon shutdown failed: %w", err)
	}
	slog.Info("tabcycle daemon stopped")
	return nil
}

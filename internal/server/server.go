// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/lutefisk/internal/config"
	"codeberg.org/oliverandrich/lutefisk/internal/events"
	"codeberg.org/oliverandrich/lutefisk/internal/i18n"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	if err := setupLogger(cfg.Log, cmd); err != nil {
		return err
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	app, err := open(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Notifier.Start()
	subscribeLogging(app.Bus)

	// Maintenance
	maintenanceCtx, stopMaintenance := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		stopMaintenance()
		wg.Wait()
	}()
	if interval := cfg.Accounts.ReclaimInterval; interval > 0 {
		wg.Go(func() {
			runMaintenance(maintenanceCtx, app.Clock, interval, maintenanceJobs(app))
		})
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, app)

	return startWithGracefulShutdown(ctx, e, cfg)
}

// open prepares everything a command needs: translations and the wired app.
func open(cfg *config.Config) (*App, error) {
	if err := i18n.Init(); err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}
	return NewApp(cfg, clockwork.NewRealClock())
}

// subscribeLogging writes every lifecycle event to the default logger.
func subscribeLogging(bus *events.Bus) {
	handler := events.LogHandler(slog.Default())
	for _, kind := range []events.Kind{events.SignupComplete, events.ActivationComplete, events.ConfirmationComplete} {
		bus.Subscribe(kind, handler)
	}
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

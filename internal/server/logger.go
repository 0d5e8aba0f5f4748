// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"codeberg.org/oliverandrich/lutefisk/internal/config"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"
)

const serviceName = "lutefisk"

// newLogger builds the process logger. Every record carries the service
// name and build version.
func newLogger(w io.Writer, level, format, version string) (*slog.Logger, error) {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	case "text":
		handler = tint.NewHandler(w, &tint.Options{Level: logLevel})
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	if version == "" {
		version = "dev"
	}
	return slog.New(handler).With("service", serviceName, "version", version), nil
}

// setupLogger configures the global slog logger.
func setupLogger(cfg config.LogConfig, cmd *cli.Command) error {
	logger, err := newLogger(os.Stdout, cfg.Level, cfg.Format, cmd.Root().Version)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/lutefisk/internal/config"
	"codeberg.org/oliverandrich/lutefisk/internal/repository"
	"github.com/urfave/cli/v3"
)

// CleanExpired deletes every account whose activation window ran out.
func CleanExpired(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	if err := setupLogger(cfg.Log, cmd); err != nil {
		return err
	}

	app, err := open(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	deleted, err := app.Reclaimer.Sweep(ctx)
	if err != nil {
		return err
	}

	slog.Info("clean_expired_done", "deleted", len(deleted))
	return nil
}

// SendReminders sends the activation reminder to every account due for one.
func SendReminders(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	if err := setupLogger(cfg.Log, cmd); err != nil {
		return err
	}

	app, err := open(cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	app.Notifier.Start()

	sent, err := app.Activation.SendReminders(ctx)
	if err != nil {
		return err
	}

	slog.Info("send_reminders_done", "sent", sent)
	return nil
}

// SetStaff grants or, with --revoke, withdraws staff status. Staff
// accounts are never reclaimed.
func SetStaff(ctx context.Context, cmd *cli.Command) error {
	handle := cmd.Args().First()
	if handle == "" {
		return errors.New("handle is required")
	}

	cfg := config.NewFromCLI(cmd)
	if err := setupLogger(cfg.Log, cmd); err != nil {
		return err
	}

	app, err := open(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return setStaff(ctx, app.Repo, handle, !cmd.Bool("revoke"))
}

func setStaff(ctx context.Context, repo *repository.Repository, handle string, staff bool) error {
	account, err := repo.GetAccountByHandle(ctx, handle)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("no account with handle %q", handle)
	}
	if err != nil {
		return err
	}

	if err := repo.SetStaff(ctx, account.ID, staff); err != nil {
		return fmt.Errorf("failed to update %s: %w", handle, err)
	}

	slog.InfoContext(ctx, "staff_updated", "handle", account.Handle, "is_staff", staff)
	return nil
}

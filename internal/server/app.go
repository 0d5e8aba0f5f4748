// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/lutefisk/internal/config"
	"codeberg.org/oliverandrich/lutefisk/internal/database"
	"codeberg.org/oliverandrich/lutefisk/internal/events"
	"codeberg.org/oliverandrich/lutefisk/internal/notify"
	"codeberg.org/oliverandrich/lutefisk/internal/repository"
	"codeberg.org/oliverandrich/lutefisk/internal/resettoken"
	"codeberg.org/oliverandrich/lutefisk/internal/services/activation"
	"codeberg.org/oliverandrich/lutefisk/internal/services/credential"
	"codeberg.org/oliverandrich/lutefisk/internal/services/email"
	"codeberg.org/oliverandrich/lutefisk/internal/services/emailchange"
	"codeberg.org/oliverandrich/lutefisk/internal/services/reclaim"
	"codeberg.org/oliverandrich/lutefisk/internal/services/recovery"
	"github.com/jonboulle/clockwork"
	"github.com/vinovest/sqlx"
)

// App holds the database and the account services wired on top of it.
type App struct {
	DB          *sqlx.DB
	Repo        *repository.Repository
	Clock       clockwork.Clock
	Bus         *events.Bus
	Notifier    *notify.Dispatcher
	Credentials *credential.Service
	Activation  *activation.Service
	EmailChange *emailchange.Service
	Reclaimer   *reclaim.Reclaimer
	Recovery    *recovery.Gateway
}

// NewApp opens the database and wires the services. The notification
// dispatcher is created but not started.
func NewApp(cfg *config.Config, clock clockwork.Clock) (*App, error) {
	policy, err := cfg.AccountPolicy()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	transport, err := newTransport(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	secret := []byte(cfg.Reset.Secret)
	if len(secret) == 0 {
		slog.Warn("no reset secret configured, reset links will not survive a restart")
		if secret, err = resettoken.RandomSecret(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	tokens, err := resettoken.New(secret, cfg.Reset.TTL, clock)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	repo := repository.New(db)
	bus := events.NewBus()
	dispatcher := notify.NewDispatcher(transport, cfg.Accounts.NotifyQueueSize, cfg.Accounts.NotifyWorkers)
	creds := credential.NewService(repo, nil, 0)

	return &App{
		DB:          db,
		Repo:        repo,
		Clock:       clock,
		Bus:         bus,
		Notifier:    dispatcher,
		Credentials: creds,
		Activation:  activation.NewService(repo, creds, dispatcher, bus, policy, clock),
		EmailChange: emailchange.NewService(repo, dispatcher, bus, policy, clock),
		Reclaimer:   reclaim.New(repo, policy, clock),
		Recovery:    recovery.NewGateway(repo, tokens, dispatcher),
	}, nil
}

// Close drains pending notifications and closes the database.
func (a *App) Close() {
	a.Notifier.Close()
	if err := a.DB.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

// newTransport returns the SMTP notifier, or a logging one when no SMTP
// host is configured.
func newTransport(cfg *config.Config) (notify.Notifier, error) {
	if cfg.SMTP.Host == "" {
		slog.Warn("no SMTP host configured, notifications are logged only")
		return notify.LogNotifier{}, nil
	}

	svc, err := email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to set up email: %w", err)
	}
	return svc, nil
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"codeberg.org/oliverandrich/lutefisk/internal/accounts"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

const day = 24 * time.Hour

// ErrInvalidConfig is returned for settings that contradict each other.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Accounts AccountsConfig
	Reset    ResetConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

// SMTPConfig configures outgoing mail. An empty Host logs notifications
// instead of sending them.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type AccountsConfig struct { //nolint:govet // fieldalignment not critical for config structs
	ActivationRequired bool
	ActivationDays     int
	ReminderDays       int // days before expiry; 0 disables reminders
	EmailChangeTTL     time.Duration
	ReclaimInterval    time.Duration // 0 disables the maintenance loop
	NotifyQueueSize    int
	NotifyWorkers      int
}

type ResetConfig struct {
	Secret string // HMAC key for reset tokens
	TTL    time.Duration
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Accounts: AccountsConfig{
			ActivationRequired: cmd.Bool("activation-required"),
			ActivationDays:     int(cmd.Int("activation-days")),
			ReminderDays:       int(cmd.Int("activation-reminder-days")),
			EmailChangeTTL:     cmd.Duration("email-change-ttl"),
			ReclaimInterval:    cmd.Duration("reclaim-interval"),
			NotifyQueueSize:    int(cmd.Int("notify-queue-size")),
			NotifyWorkers:      int(cmd.Int("notify-workers")),
		},
		Reset: ResetConfig{
			Secret: cmd.String("reset-secret"),
			TTL:    cmd.Duration("reset-ttl"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	return cfg
}

// AccountPolicy converts the accounts section into the lifecycle policy.
// The reminder has to fall inside the activation window.
func (c *Config) AccountPolicy() (accounts.Policy, error) {
	policy := accounts.DefaultPolicy()
	policy.ActivationRequired = c.Accounts.ActivationRequired
	if c.Accounts.ActivationDays > 0 {
		policy.ActivationWindow = time.Duration(c.Accounts.ActivationDays) * day
	}
	policy.ReminderBefore = time.Duration(max(c.Accounts.ReminderDays, 0)) * day
	policy.EmailChangeTTL = max(c.Accounts.EmailChangeTTL, 0)

	if policy.ReminderBefore >= policy.ActivationWindow {
		return accounts.Policy{}, fmt.Errorf("%w: activation-reminder-days (%d) must be less than activation-days (%d)",
			ErrInvalidConfig, c.Accounts.ReminderDays, int(policy.ActivationWindow/day))
	}
	return policy, nil
}

// buildBaseURL derives the public URL. Non-local hosts are assumed to sit
// behind a TLS-terminating proxy.
func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "https"
	if IsLocalhost(host) {
		scheme = "http"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL used in notification links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/accounts.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (empty logs notifications instead)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Lutefisk",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// Account lifecycle flags
		&cli.BoolFlag{
			Name:    "activation-required",
			Value:   true,
			Usage:   "Require new accounts to be activated by email",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ACTIVATION_REQUIRED"), toml.TOML("accounts.activation_required", configFile)),
		},
		&cli.IntFlag{
			Name:    "activation-days",
			Value:   7,
			Usage:   "Days a new account may stay unactivated",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ACTIVATION_DAYS"), toml.TOML("accounts.activation_days", configFile)),
		},
		&cli.IntFlag{
			Name:    "activation-reminder-days",
			Value:   5,
			Usage:   "Send the activation reminder this many days before expiry (0 disables)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ACTIVATION_REMINDER_DAYS"), toml.TOML("accounts.activation_reminder_days", configFile)),
		},
		&cli.DurationFlag{
			Name:    "email-change-ttl",
			Usage:   "Maximum age of an email change link (0 never expires)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_CHANGE_TTL"), toml.TOML("accounts.email_change_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "reclaim-interval",
			Value:   time.Hour,
			Usage:   "Interval of the expiry sweep and reminder run (0 disables)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RECLAIM_INTERVAL"), toml.TOML("accounts.reclaim_interval", configFile)),
		},
		&cli.IntFlag{
			Name:    "notify-queue-size",
			Value:   100,
			Usage:   "Pending notifications kept before new ones are dropped",
			Sources: cli.NewValueSourceChain(cli.EnvVar("NOTIFY_QUEUE_SIZE"), toml.TOML("accounts.notify_queue_size", configFile)),
		},
		&cli.IntFlag{
			Name:    "notify-workers",
			Value:   2,
			Usage:   "Concurrent notification senders",
			Sources: cli.NewValueSourceChain(cli.EnvVar("NOTIFY_WORKERS"), toml.TOML("accounts.notify_workers", configFile)),
		},
		// Password reset flags
		&cli.StringFlag{
			Name:    "reset-secret",
			Usage:   "Signing key for password reset links (random per process if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_SECRET"), toml.TOML("reset.secret", configFile)),
		},
		&cli.DurationFlag{
			Name:    "reset-ttl",
			Value:   72 * time.Hour,
			Usage:   "Lifetime of password reset links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_TTL"), toml.TOML("reset.ttl", configFile)),
		},
	}
}

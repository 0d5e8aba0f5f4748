// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"codeberg.org/oliverandrich/lutefisk/internal/config"
	"codeberg.org/oliverandrich/lutefisk/internal/i18n"
	"github.com/wneessen/go-mail"
)

// Service sends notifications as plain text mail via SMTP. Subject and body
// of template "x" are the localized messages "x_subject" and "x_body".
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Notify renders templateID in the locale carried by ctx and mails it.
func (s *Service) Notify(ctx context.Context, templateID, recipient string, data map[string]any) error {
	msg, err := s.Compose(ctx, templateID, recipient, data)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

// Render returns subject and body for templateID. BaseURL is always
// available to the templates.
func (s *Service) Render(ctx context.Context, templateID string, data map[string]any) (string, string, error) {
	vars := map[string]any{"BaseURL": s.baseURL}
	maps.Copy(vars, data)

	subject, err := i18n.Localize(ctx, templateID+"_subject", vars)
	if err != nil {
		return "", "", fmt.Errorf("unknown template %q: %w", templateID, err)
	}
	body, err := i18n.Localize(ctx, templateID+"_body", vars)
	if err != nil {
		return "", "", fmt.Errorf("unknown template %q: %w", templateID, err)
	}
	return subject, body, nil
}

// Compose builds the message without sending it.
func (s *Service) Compose(ctx context.Context, templateID, recipient string, data map[string]any) (*mail.Msg, error) {
	subject, body, err := s.Render(ctx, templateID, data)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return msg, nil
}

// send delivers msg via SMTP using go-mail.
func (s *Service) send(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Configure TLS based on config and port
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	// Add authentication if credentials are provided
	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/lutefisk/internal/config"
	"codeberg.org/oliverandrich/lutefisk/internal/i18n"
	"codeberg.org/oliverandrich/lutefisk/internal/notify"
	"codeberg.org/oliverandrich/lutefisk/internal/services/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"
)

var _ notify.Notifier = (*email.Service)(nil)

func validSMTPConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@example.com",
		FromName: "Test App",
		TLS:      true,
	}
}

func newService(t *testing.T) *email.Service {
	t.Helper()
	require.NoError(t, i18n.Init())
	svc, err := email.NewService(validSMTPConfig(), "https://example.com/")
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	cfg := validSMTPConfig()

	svc, err := email.NewService(cfg, "https://example.com")

	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := email.NewService(cfg, "https://example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host is required")
}

func TestNewService_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := email.NewService(cfg, "https://example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP from address is required")
}

func TestRender_Activation(t *testing.T) {
	svc := newService(t)

	subject, body, err := svc.Render(context.Background(), notify.TemplateActivation, map[string]any{
		"Handle":         "ab12c",
		"Token":          "0123456789abcdef0123456789abcdef01234567",
		"ActivationDays": 7,
	})

	require.NoError(t, err)
	assert.Equal(t, "Activate your account", subject)
	// trailing slash of the base URL is trimmed
	assert.Contains(t, body, "https://example.com/accounts/activate/ab12c/0123456789abcdef0123456789abcdef01234567")
}

func TestRender_German(t *testing.T) {
	svc := newService(t)
	ctx := i18n.WithLocale(context.Background(), language.German)

	subject, body, err := svc.Render(ctx, notify.TemplatePasswordReset, map[string]any{
		"Handle": "ab12c",
		"UID":    "1a",
		"Token":  "tok",
	})

	require.NoError(t, err)
	assert.Equal(t, "Setze dein Passwort zurück", subject)
	assert.Contains(t, body, "https://example.com/accounts/password/reset/1a/tok")
}

func TestRender_EmailChange(t *testing.T) {
	svc := newService(t)

	_, toOld, err := svc.Render(context.Background(), notify.TemplateEmailChangeOld, map[string]any{
		"Handle": "ab12c", "NewEmail": "new@example.com",
	})
	require.NoError(t, err)
	assert.Contains(t, toOld, "new@example.com")

	_, toNew, err := svc.Render(context.Background(), notify.TemplateEmailChangeNew, map[string]any{
		"Handle": "ab12c", "Token": "tok",
	})
	require.NoError(t, err)
	assert.Contains(t, toNew, "https://example.com/accounts/ab12c/email/confirm/tok")
}

func TestRender_UnknownTemplate(t *testing.T) {
	svc := newService(t)

	_, _, err := svc.Render(context.Background(), "nope", nil)

	assert.Error(t, err)
}

func TestCompose(t *testing.T) {
	svc := newService(t)

	msg, err := svc.Compose(context.Background(), notify.TemplateActivationReminder, "user@example.com", map[string]any{
		"Handle": "ab12c", "Token": "tok", "DaysLeft": 5,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Your account is not activated yet"}, msg.GetGenHeader(mail.HeaderSubject))
	to := msg.GetToString()
	require.Len(t, to, 1)
	assert.Contains(t, to[0], "user@example.com")
}

func TestCompose_InvalidRecipient(t *testing.T) {
	svc := newService(t)

	_, err := svc.Compose(context.Background(), notify.TemplateActivation, "not an address", nil)

	assert.Error(t, err)
}

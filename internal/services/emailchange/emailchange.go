// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package emailchange moves an identity to a new address once the new
// address has been confirmed.
package emailchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/lutefisk/internal/accounts"
	"codeberg.org/oliverandrich/lutefisk/internal/events"
	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"codeberg.org/oliverandrich/lutefisk/internal/notify"
	"codeberg.org/oliverandrich/lutefisk/internal/token"
	"github.com/jonboulle/clockwork"
)

// ErrEmptyEmail is returned when the requested address is blank.
var ErrEmptyEmail = errors.New("new email is empty")

// Service implements requesting and confirming email changes.
type Service struct {
	repo      accounts.Repository
	notifier  notify.Notifier
	publisher events.Publisher
	policy    accounts.Policy
	clock     clockwork.Clock
}

// NewService creates an email change service.
func NewService(
	repo accounts.Repository,
	notifier notify.Notifier,
	publisher events.Publisher,
	policy accounts.Policy,
	clock clockwork.Clock,
) *Service {
	return &Service{
		repo:      repo,
		notifier:  notifier,
		publisher: publisher,
		policy:    policy,
		clock:     clock,
	}
}

// RequestChange records newEmail as pending for identity and sends the
// confirmation link to it. The current address stays in effect and is told
// about the request. A later request replaces a pending one. Identities that
// are not active yield accounts.ErrNotFound.
func (s *Service) RequestChange(ctx context.Context, identity *models.Identity, newEmail string) error {
	if !identity.IsActive {
		return accounts.ErrNotFound
	}

	newEmail = strings.TrimSpace(newEmail)
	if newEmail == "" {
		return ErrEmptyEmail
	}

	if strings.EqualFold(newEmail, identity.Email) {
		return accounts.ErrAlreadyCurrent
	}

	inUse, err := s.repo.EmailInUseByOther(ctx, newEmail, identity.ID)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if inUse {
		return accounts.ErrInUse
	}

	_, changeToken := token.Generate(identity.Handle, "")
	err = s.repo.SetPendingEmail(ctx, identity.ID, newEmail, changeToken, s.clock.Now())
	if errors.Is(err, accounts.ErrRecordNotFound) {
		return accounts.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to store pending email: %w", err)
	}

	slog.InfoContext(ctx, "email_change_requested", "identity_id", identity.ID, "handle", identity.Handle)

	notify.Quietly(ctx, s.notifier, notify.TemplateEmailChangeOld, identity.Email, map[string]any{
		"Handle":   identity.Handle,
		"NewEmail": newEmail,
	})
	notify.Quietly(ctx, s.notifier, notify.TemplateEmailChangeNew, newEmail, map[string]any{
		"Handle": identity.Handle,
		"Token":  changeToken,
	})

	return nil
}

// ConfirmChange makes the pending address of handle current. Unknown,
// malformed or superseded tokens, and identities that are not active, yield
// accounts.ErrNotFound; tokens older
// than the policy allows yield accounts.ErrExpired.
func (s *Service) ConfirmChange(ctx context.Context, handle, changeToken string) (*models.Identity, error) {
	if !token.Valid(changeToken) {
		return nil, accounts.ErrNotFound
	}

	account, err := s.repo.FindByEmailChangeToken(ctx, handle, changeToken)
	if errors.Is(err, accounts.ErrRecordNotFound) {
		return nil, accounts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up email change: %w", err)
	}

	if s.policy.EmailChangeExpired(account, s.clock.Now()) {
		slog.InfoContext(ctx, "email_change_expired", "identity_id", account.ID, "handle", account.Handle)
		return nil, accounts.ErrExpired
	}

	oldEmail, err := s.repo.ConfirmPendingEmail(ctx, account.ID, changeToken)
	if errors.Is(err, accounts.ErrRecordNotFound) {
		return nil, accounts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to confirm email: %w", err)
	}

	identity := account.Identity
	identity.Email = account.EmailPending

	slog.InfoContext(ctx, "email_change_confirmed", "identity_id", identity.ID, "handle", identity.Handle)

	ev := events.New(events.ConfirmationComplete, identity, s.clock.Now())
	ev.OldEmail = oldEmail
	s.publisher.Publish(ctx, ev)

	return &identity, nil
}

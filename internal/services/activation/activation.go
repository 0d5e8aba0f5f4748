// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package activation signs up new identities and activates them through the
// token sent to their address.
package activation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/lutefisk/internal/accounts"
	"codeberg.org/oliverandrich/lutefisk/internal/events"
	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"codeberg.org/oliverandrich/lutefisk/internal/notify"
	"codeberg.org/oliverandrich/lutefisk/internal/token"
	"github.com/jonboulle/clockwork"
)

const (
	// HandleLength is the length of generated handles.
	HandleLength = 5
	// handleAttempts bounds the retries on a handle collision.
	handleAttempts = 16
)

// handle alphabet: lowercase and digits without the look-alikes 0, o, l, 1.
const alphabet = "23456789abcdefghjkmnpqrstuvwxyz"

// ErrNoFreeHandle is returned when every generated handle was taken.
var ErrNoFreeHandle = errors.New("no free handle")

// PasswordHasher turns a plaintext password into its stored form.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Service implements signup, activation and activation reminders.
type Service struct {
	repo      accounts.Repository
	hasher    PasswordHasher
	notifier  notify.Notifier
	publisher events.Publisher
	policy    accounts.Policy
	clock     clockwork.Clock
	newHandle func() (string, error)
}

// NewService creates an activation service.
func NewService(
	repo accounts.Repository,
	hasher PasswordHasher,
	notifier notify.Notifier,
	publisher events.Publisher,
	policy accounts.Policy,
	clock clockwork.Clock,
) *Service {
	return &Service{
		repo:      repo,
		hasher:    hasher,
		notifier:  notifier,
		publisher: publisher,
		policy:    policy,
		clock:     clock,
		newHandle: generateHandle,
	}
}

// Signup creates a new identity for email. When activation is required the
// identity starts inactive and an activation notification is sent.
func (s *Service) Signup(ctx context.Context, email, password string) (*models.Identity, error) {
	email = strings.TrimSpace(email)

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, accounts.ErrInUse
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	identity, record, err := s.create(ctx, email, passwordHash)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "signup_success",
		"identity_id", identity.ID,
		"handle", identity.Handle,
		"active", identity.IsActive,
	)

	if s.policy.ActivationRequired {
		notify.Quietly(ctx, s.notifier, notify.TemplateActivation, identity.Email, map[string]any{
			"Handle":         identity.Handle,
			"Token":          record.ActivationToken,
			"ActivationDays": days(s.policy.ActivationWindow),
		})
	}

	s.publisher.Publish(ctx, events.New(events.SignupComplete, *identity, s.clock.Now()))

	return identity, nil
}

// create inserts the identity, drawing a new handle on every collision.
func (s *Service) create(ctx context.Context, email, passwordHash string) (*models.Identity, *models.AccountRecord, error) {
	joinedAt := s.clock.Now()

	for attempt := 1; attempt <= handleAttempts; attempt++ {
		handle, err := s.newHandle()
		if err != nil {
			return nil, nil, err
		}

		identity := &models.Identity{
			Handle:       handle,
			Email:        email,
			PasswordHash: passwordHash,
			IsActive:     !s.policy.ActivationRequired,
			JoinedAt:     joinedAt,
		}
		record := &models.AccountRecord{ActivationToken: s.policy.ActivatedSentinel}
		if s.policy.ActivationRequired {
			_, record.ActivationToken = token.Generate(handle, "")
		}

		err = s.repo.CreateAccount(ctx, identity, record)
		if err == nil {
			return identity, record, nil
		}
		if !errors.Is(err, accounts.ErrRecordConflict) {
			return nil, nil, fmt.Errorf("failed to create account: %w", err)
		}
		slog.DebugContext(ctx, "handle_collision", "handle", handle, "attempt", attempt)
	}

	return nil, nil, fmt.Errorf("%w after %d attempts", ErrNoFreeHandle, handleAttempts)
}

// Activate consumes the activation token of handle and activates the
// identity. A token that is malformed, unknown or already used yields
// accounts.ErrNotFound; one past the activation window accounts.ErrExpired.
func (s *Service) Activate(ctx context.Context, handle, activationToken string) (*models.Identity, error) {
	if !token.Valid(activationToken) {
		return nil, accounts.ErrNotFound
	}

	account, err := s.repo.FindByActivationToken(ctx, handle, activationToken)
	if errors.Is(err, accounts.ErrRecordNotFound) {
		return nil, accounts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up activation: %w", err)
	}

	if account.ActivationToken == s.policy.ActivatedSentinel {
		return nil, accounts.ErrNotFound
	}
	if s.policy.ActivationExpired(account, s.clock.Now()) {
		slog.InfoContext(ctx, "activation_expired", "identity_id", account.ID, "handle", account.Handle)
		return nil, accounts.ErrExpired
	}

	err = s.repo.ConsumeActivationToken(ctx, account.ID, activationToken, s.policy.ActivatedSentinel)
	if errors.Is(err, accounts.ErrRecordNotFound) {
		// a concurrent request consumed the token first
		return nil, accounts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to activate: %w", err)
	}

	identity := account.Identity
	identity.IsActive = true

	slog.InfoContext(ctx, "activation_success", "identity_id", identity.ID, "handle", identity.Handle)
	s.publisher.Publish(ctx, events.New(events.ActivationComplete, identity, s.clock.Now()))

	return &identity, nil
}

// SendReminders notifies every unactivated account that is due for its
// single activation reminder. Returns how many reminders were sent.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	pending, err := s.repo.ListUnactivated(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list unactivated accounts: %w", err)
	}

	now := s.clock.Now()
	sent := 0
	for i := range pending {
		account := &pending[i]
		if !s.policy.ReminderDue(account, now) {
			continue
		}

		// marking first keeps it at one reminder even with concurrent runs
		err := s.repo.MarkActivationNotified(ctx, account.ID)
		if errors.Is(err, accounts.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return sent, fmt.Errorf("failed to mark reminder: %w", err)
		}

		remaining := account.JoinedAt.Add(s.policy.ActivationWindow).Sub(now)
		notify.Quietly(ctx, s.notifier, notify.TemplateActivationReminder, account.Email, map[string]any{
			"Handle":   account.Handle,
			"Token":    account.ActivationToken,
			"DaysLeft": max(days(remaining+24*time.Hour-time.Nanosecond), 1),
		})
		sent++
	}

	if sent > 0 {
		slog.InfoContext(ctx, "activation_reminders_sent", "count", sent)
	}
	return sent, nil
}

// generateHandle returns a random handle of HandleLength characters.
func generateHandle() (string, error) {
	b := make([]byte, HandleLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate handle: %w", err)
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b), nil
}

func days(d time.Duration) int {
	return int(d / (24 * time.Hour))
}

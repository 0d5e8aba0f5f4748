// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package recovery lets an identity regain access by email when the
// password is lost.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/lutefisk/internal/accounts"
	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"codeberg.org/oliverandrich/lutefisk/internal/notify"
)

// TokenGenerator issues and checks password reset tokens. A token must stop
// validating once the identity's password changes.
type TokenGenerator interface {
	Issue(identity *models.Identity) (string, error)
	Validate(identity *models.Identity, token string) bool
}

// IdentityFinder is the part of the repository the gateway reads.
type IdentityFinder interface {
	GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error)
	GetIdentityByID(ctx context.Context, id int64) (*models.Identity, error)
}

// Gateway issues reset links and resolves them back to identities.
type Gateway struct {
	repo     IdentityFinder
	tokens   TokenGenerator
	notifier notify.Notifier
}

// NewGateway creates a recovery gateway.
func NewGateway(repo IdentityFinder, tokens TokenGenerator, notifier notify.Notifier) *Gateway {
	return &Gateway{repo: repo, tokens: tokens, notifier: notifier}
}

// RequestReset sends a reset link to email if it belongs to an active
// identity. Unknown and inactive addresses succeed silently so callers
// cannot probe for accounts.
func (g *Gateway) RequestReset(ctx context.Context, email string) error {
	identity, err := g.repo.GetIdentityByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, accounts.ErrRecordNotFound) {
		slog.DebugContext(ctx, "reset_unknown_email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up identity: %w", err)
	}
	if !identity.IsActive {
		slog.DebugContext(ctx, "reset_inactive_identity", "identity_id", identity.ID)
		return nil
	}

	resetToken, err := g.tokens.Issue(identity)
	if err != nil {
		return err
	}

	notify.Quietly(ctx, g.notifier, notify.TemplatePasswordReset, identity.Email, map[string]any{
		"Handle": identity.Handle,
		"UID":    identity.UID(),
		"Token":  resetToken,
	})

	slog.InfoContext(ctx, "reset_requested", "identity_id", identity.ID)
	return nil
}

// ConfirmReset resolves a reset link to its identity. Any mismatch yields
// accounts.ErrInvalidLink.
func (g *Gateway) ConfirmReset(ctx context.Context, uid, resetToken string) (*models.Identity, error) {
	id, err := models.ParseUID(uid)
	if err != nil || id <= 0 {
		return nil, accounts.ErrInvalidLink
	}

	identity, err := g.repo.GetIdentityByID(ctx, id)
	if errors.Is(err, accounts.ErrRecordNotFound) {
		return nil, accounts.ErrInvalidLink
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	if !g.tokens.Validate(identity, resetToken) {
		slog.InfoContext(ctx, "reset_link_rejected", "identity_id", identity.ID)
		return nil, accounts.ErrInvalidLink
	}

	return identity, nil
}

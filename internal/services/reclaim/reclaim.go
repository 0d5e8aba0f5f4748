// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package reclaim deletes identities whose activation window ran out.
package reclaim

import (
	"context"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/lutefisk/internal/accounts"
	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"github.com/jonboulle/clockwork"
)

// Reclaimer removes expired, never activated, non-staff identities.
type Reclaimer struct {
	repo   accounts.Repository
	policy accounts.Policy
	clock  clockwork.Clock
}

// New creates a reclaimer.
func New(repo accounts.Repository, policy accounts.Policy, clock clockwork.Clock) *Reclaimer {
	return &Reclaimer{repo: repo, policy: policy, clock: clock}
}

// Sweep deletes every expired identity and returns the deleted ones. An
// identity that was activated, promoted to staff or re-tokened since the
// scan is left alone.
func (r *Reclaimer) Sweep(ctx context.Context) ([]models.Identity, error) {
	candidates, err := r.repo.ListUnactivated(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unactivated accounts: %w", err)
	}

	now := r.clock.Now()
	var deleted []models.Identity
	for i := range candidates {
		account := &candidates[i]
		if !r.policy.ActivationExpired(account, now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		ok, err := r.repo.DeleteUnactivated(ctx, account.ID, account.ActivationToken)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete identity %d: %w", account.ID, err)
		}
		if !ok {
			slog.DebugContext(ctx, "reclaim_skipped", "identity_id", account.ID, "handle", account.Handle)
			continue
		}

		slog.InfoContext(ctx, "reclaim_deleted",
			"identity_id", account.ID,
			"handle", account.Handle,
			"joined_at", account.JoinedAt,
		)
		deleted = append(deleted, account.Identity)
	}

	return deleted, nil
}

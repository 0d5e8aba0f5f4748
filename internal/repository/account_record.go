// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"github.com/vinovest/sqlx"
)

const accountSelect = `SELECT i.id, i.handle, i.email, i.password_hash, i.is_active, i.is_staff, i.joined_at,
	r.identity_id, r.activation_token, r.activation_notified, r.email_pending, r.email_change_token, r.email_change_token_created_at
	FROM identities i JOIN account_records r ON r.identity_id = i.id`

// GetAccountByHandle retrieves an account by handle.
func (r *Repository) GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error) {
	var account models.Account
	if err := r.db.GetContext(ctx, &account, accountSelect+` WHERE i.handle = ?`, handle); err != nil {
		return nil, wrapError(err)
	}
	return &account, nil
}

// FindByActivationToken retrieves the account holding the activation token.
func (r *Repository) FindByActivationToken(ctx context.Context, handle, token string) (*models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account,
		accountSelect+` WHERE i.handle = ? AND r.activation_token = ?`, handle, token)
	if err != nil {
		return nil, wrapError(err)
	}
	return &account, nil
}

// ConsumeActivationToken swaps the activation token for the sentinel and
// activates the identity. Only one caller can win for a given token.
func (r *Repository) ConsumeActivationToken(ctx context.Context, identityID int64, token, sentinel string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE account_records SET activation_token = ? WHERE identity_id = ? AND activation_token = ?`,
			sentinel, identityID, token)
		if err != nil {
			return err
		}
		if err := expectOneRow(res); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `UPDATE identities SET is_active = 1 WHERE id = ?`, identityID)
		if err != nil {
			return err
		}
		return expectOneRow(res)
	})
}

// MarkActivationNotified records that the activation reminder went out.
// Returns ErrNotFound if it was already marked.
func (r *Repository) MarkActivationNotified(ctx context.Context, identityID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE account_records SET activation_notified = 1 WHERE identity_id = ? AND activation_notified = 0`,
		identityID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// SetPendingEmail starts an email change, replacing any change in flight.
// Only active identities can change their email.
func (r *Repository) SetPendingEmail(ctx context.Context, identityID int64, email, token string, createdAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE account_records SET email_pending = ?, email_change_token = ?, email_change_token_created_at = ?
		 WHERE identity_id = ? AND identity_id IN (SELECT id FROM identities WHERE is_active = 1)`,
		email, token, createdAt.UTC(), identityID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// FindByEmailChangeToken retrieves the account with a pending change for the token.
func (r *Repository) FindByEmailChangeToken(ctx context.Context, handle, token string) (*models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account,
		accountSelect+` WHERE i.handle = ? AND i.is_active = 1 AND r.email_change_token = ? AND r.email_pending != ''`,
		handle, token)
	if err != nil {
		return nil, wrapError(err)
	}
	return &account, nil
}

// ConfirmPendingEmail makes the pending email current and clears the
// change. Returns the replaced email.
func (r *Repository) ConfirmPendingEmail(ctx context.Context, identityID int64, token string) (string, error) {
	var oldEmail string
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var row struct {
			Email        string `db:"email"`
			EmailPending string `db:"email_pending"`
		}
		err := tx.GetContext(ctx, &row,
			`SELECT i.email, r.email_pending FROM identities i JOIN account_records r ON r.identity_id = i.id
			 WHERE i.id = ? AND i.is_active = 1 AND r.email_change_token = ? AND r.email_pending != ''`,
			identityID, token)
		if err != nil {
			return wrapError(err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE account_records SET email_pending = '', email_change_token = '', email_change_token_created_at = NULL
			 WHERE identity_id = ? AND email_change_token = ?`,
			identityID, token)
		if err != nil {
			return err
		}
		if err := expectOneRow(res); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE identities SET email = ? WHERE id = ?`, row.EmailPending, identityID); err != nil {
			return err
		}
		oldEmail = row.Email
		return nil
	})
	return oldEmail, err
}

// ListUnactivated returns all non-staff accounts that are not active.
func (r *Repository) ListUnactivated(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.SelectContext(ctx, &accounts,
		accountSelect+` WHERE i.is_staff = 0 AND i.is_active = 0 ORDER BY i.id`)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// DeleteUnactivated deletes an identity and its record, re-checking that it
// is still inactive, non-staff and holds the token seen by the caller.
func (r *Repository) DeleteUnactivated(ctx context.Context, identityID int64, token string) (bool, error) {
	deleted := false
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM identities WHERE id = ? AND is_active = 0 AND is_staff = 0
			 AND EXISTS (SELECT 1 FROM account_records r WHERE r.identity_id = identities.id AND r.activation_token = ?)`,
			identityID, token)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM account_records WHERE identity_id = ?`, identityID); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"github.com/vinovest/sqlx"
)

// CreateAccount creates an identity and its account record in one transaction.
func (r *Repository) CreateAccount(ctx context.Context, identity *models.Identity, record *models.AccountRecord) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO identities (handle, email, password_hash, is_active, is_staff, joined_at) VALUES (?, ?, ?, ?, ?, ?)`,
			identity.Handle, identity.Email, identity.PasswordHash, identity.IsActive, identity.IsStaff, identity.JoinedAt.UTC())
		if err != nil {
			return wrapError(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_records (identity_id, activation_token, activation_notified, email_pending, email_change_token, email_change_token_created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, record.ActivationToken, record.ActivationNotified, record.EmailPending, record.EmailChangeToken, record.EmailChangeTokenCreatedAt)
		if err != nil {
			return wrapError(err)
		}

		identity.ID = id
		record.IdentityID = id
		return nil
	})
}

// GetIdentityByID retrieves an identity by ID.
func (r *Repository) GetIdentityByID(ctx context.Context, id int64) (*models.Identity, error) {
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, `SELECT * FROM identities WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &identity, nil
}

// GetIdentityByEmail retrieves an identity by email, ignoring case. Active
// identities win over pending ones sharing the address.
func (r *Repository) GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	var identity models.Identity
	err := r.db.GetContext(ctx, &identity,
		`SELECT * FROM identities WHERE email = ? COLLATE NOCASE ORDER BY is_active DESC, id ASC LIMIT 1`, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &identity, nil
}

// EmailExists checks if any identity uses the email, ignoring case.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM identities WHERE email = ? COLLATE NOCASE)`, email)
	return exists, err
}

// EmailInUseByOther checks if an active identity other than excludeID uses
// the email, ignoring case.
func (r *Repository) EmailInUseByOther(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM identities WHERE email = ? COLLATE NOCASE AND id != ? AND is_active = 1)`,
		email, excludeID)
	return exists, err
}

// UpdatePassword replaces an identity's password hash.
func (r *Repository) UpdatePassword(ctx context.Context, identityID int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE identities SET password_hash = ? WHERE id = ?`, passwordHash, identityID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// SetStaff sets or removes staff status for an identity.
func (r *Repository) SetStaff(ctx context.Context, identityID int64, isStaff bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE identities SET is_staff = ? WHERE id = ?`, isStaff, identityID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

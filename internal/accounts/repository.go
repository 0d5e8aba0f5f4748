// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package accounts

import (
	"context"
	"errors"
	"time"

	"codeberg.org/oliverandrich/lutefisk/internal/models"
)

// Errors every Repository implementation reports.
var (
	// ErrRecordNotFound is returned when no row matches a lookup or a
	// compare-and-swap.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordConflict is returned when a uniqueness constraint rejects a write.
	ErrRecordConflict = errors.New("record already exists")
)

// Repository persists identities together with their account records.
//
// Lookups return ErrRecordNotFound when nothing matches. Methods that
// consume a token compare the stored token inside their transaction and
// return ErrRecordNotFound when it no longer matches. Email change lookups
// and confirmations only match active identities.
type Repository interface {
	// CreateAccount inserts both rows atomically and fills identity.ID.
	// A taken handle yields ErrRecordConflict.
	CreateAccount(ctx context.Context, identity *models.Identity, record *models.AccountRecord) error
	GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error)
	GetIdentityByID(ctx context.Context, id int64) (*models.Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	EmailInUseByOther(ctx context.Context, email string, excludeID int64) (bool, error)
	UpdatePassword(ctx context.Context, identityID int64, passwordHash string) error

	FindByActivationToken(ctx context.Context, handle, token string) (*models.Account, error)
	ConsumeActivationToken(ctx context.Context, identityID int64, token, sentinel string) error
	MarkActivationNotified(ctx context.Context, identityID int64) error

	SetPendingEmail(ctx context.Context, identityID int64, email, token string, createdAt time.Time) error
	FindByEmailChangeToken(ctx context.Context, handle, token string) (*models.Account, error)
	ConfirmPendingEmail(ctx context.Context, identityID int64, token string) (oldEmail string, err error)

	// ListUnactivated returns non-staff accounts that are not active.
	ListUnactivated(ctx context.Context) ([]models.Account, error)
	// DeleteUnactivated deletes the identity only if it is still inactive,
	// non-staff and holds the given activation token. Reports whether a
	// row was deleted.
	DeleteUnactivated(ctx context.Context, identityID int64, token string) (bool, error)
}

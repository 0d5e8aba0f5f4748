// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/lutefisk/internal/database"
	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"codeberg.org/oliverandrich/lutefisk/internal/repository"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// Sentinel is the activated sentinel used by fixtures.
const Sentinel = "ALREADY_ACTIVATED"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// AccountOpts describes a fixture account.
type AccountOpts struct {
	Handle   string
	Email    string
	Token    string // activation token; Sentinel for active accounts
	Active   bool
	Staff    bool
	JoinedAt time.Time
}

// NewTestAccount inserts an identity with its account record.
func NewTestAccount(t *testing.T, repo *repository.Repository, opts AccountOpts) *models.Identity {
	t.Helper()
	if opts.JoinedAt.IsZero() {
		opts.JoinedAt = time.Now()
	}
	if opts.Token == "" {
		opts.Token = Sentinel
	}
	identity := &models.Identity{
		Handle:       opts.Handle,
		Email:        opts.Email,
		PasswordHash: "not-a-real-hash",
		IsActive:     opts.Active,
		IsStaff:      opts.Staff,
		JoinedAt:     opts.JoinedAt,
	}
	record := &models.AccountRecord{ActivationToken: opts.Token}
	require.NoError(t, repo.CreateAccount(context.Background(), identity, record))
	return identity
}

// GetAccount loads an account by handle, failing the test if it is missing.
func GetAccount(t *testing.T, repo *repository.Repository, handle string) *models.Account {
	t.Helper()
	account, err := repo.GetAccountByHandle(context.Background(), handle)
	require.NoError(t, err)
	return account
}

// Notification is a message captured by Recorder.
type Notification struct {
	Template  string
	Recipient string
	Data      map[string]any
}

// Recorder is a notifier that keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
	// Err, when set, is returned from Notify after recording.
	Err error
}

// ErrDeliveryFailed is a convenience failure for Recorder.Err.
var ErrDeliveryFailed = errors.New("delivery failed")

// Notify records the notification.
func (r *Recorder) Notify(_ context.Context, templateID, recipient string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Notification{Template: templateID, Recipient: recipient, Data: data})
	return r.Err
}

// Sent returns a copy of all recorded notifications.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

// ByTemplate returns recorded notifications for one template.
func (r *Recorder) ByTemplate(templateID string) []Notification {
	var out []Notification
	for _, n := range r.Sent() {
		if n.Template == templateID {
			out = append(out, n)
		}
	}
	return out
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// AccountRecord stores the verification state attached to one Identity.
type AccountRecord struct { //nolint:govet // fieldalignment: readability over optimization
	IdentityID                int64      `db:"identity_id" json:"-"`
	ActivationToken           string     `db:"activation_token" json:"-"`
	ActivationNotified        bool       `db:"activation_notified" json:"activation_notified"`
	EmailPending              string     `db:"email_pending" json:"email_pending,omitempty"`
	EmailChangeToken          string     `db:"email_change_token" json:"-"`
	EmailChangeTokenCreatedAt *time.Time `db:"email_change_token_created_at" json:"-"`
}

// HasPendingEmail reports whether an email change is in flight.
func (r *AccountRecord) HasPendingEmail() bool {
	return r.EmailPending != "" && r.EmailChangeToken != ""
}

// State is the lifecycle state of an account.
type State string

const (
	StatePendingActivation  State = "pending_activation"
	StateActive             State = "active"
	StateActiveEmailPending State = "active_email_pending"
)

// Account is an Identity joined with its AccountRecord.
type Account struct {
	Identity
	AccountRecord
}

// State derives the lifecycle state.
func (a *Account) State() State {
	if !a.IsActive {
		return StatePendingActivation
	}
	if a.HasPendingEmail() {
		return StateActiveEmailPending
	}
	return StateActive
}

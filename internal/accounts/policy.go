// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package accounts holds what the account services share: the policy they
// are configured with, the failure kinds they return and the repository
// they persist through.
package accounts

import (
	"time"

	"codeberg.org/oliverandrich/lutefisk/internal/models"
)

const (
	// DefaultActivatedSentinel marks an activation token as consumed.
	DefaultActivatedSentinel = "ALREADY_ACTIVATED"
	// DefaultActivationWindow is how long a new account may stay unactivated.
	DefaultActivationWindow = 7 * 24 * time.Hour
	// DefaultReminderBefore is how long before expiry the reminder goes out.
	DefaultReminderBefore = 5 * 24 * time.Hour
)

// Policy configures the account lifecycle.
type Policy struct {
	ActivationRequired bool
	ActivationWindow   time.Duration
	ActivatedSentinel  string
	// ReminderBefore is the distance to expiry at which an activation
	// reminder is sent. Zero disables reminders.
	ReminderBefore time.Duration
	// EmailChangeTTL bounds the age of an email change token. Zero means
	// email change tokens never expire.
	EmailChangeTTL time.Duration
}

// DefaultPolicy returns the stock account policy.
func DefaultPolicy() Policy {
	return Policy{
		ActivationRequired: true,
		ActivationWindow:   DefaultActivationWindow,
		ActivatedSentinel:  DefaultActivatedSentinel,
		ReminderBefore:     DefaultReminderBefore,
	}
}

// ActivationExpired reports whether there is nothing left to activate for
// the account: either the token was consumed or the window has elapsed.
func (p Policy) ActivationExpired(a *models.Account, now time.Time) bool {
	if a.ActivationToken == p.ActivatedSentinel {
		return true
	}
	return !now.Before(a.JoinedAt.Add(p.ActivationWindow))
}

// ReminderDue reports whether an activation reminder should be sent now.
func (p Policy) ReminderDue(a *models.Account, now time.Time) bool {
	if p.ReminderBefore <= 0 || a.ActivationNotified || p.ActivationExpired(a, now) {
		return false
	}
	return !now.Before(a.JoinedAt.Add(p.ActivationWindow - p.ReminderBefore))
}

// EmailChangeExpired reports whether the pending email change token is too
// old to confirm.
func (p Policy) EmailChangeExpired(a *models.Account, now time.Time) bool {
	if p.EmailChangeTTL <= 0 || a.EmailChangeTokenCreatedAt == nil {
		return false
	}
	return !now.Before(a.EmailChangeTokenCreatedAt.Add(p.EmailChangeTTL))
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package accounts

import "errors"

// Failure kinds returned by the account services.
var (
	// ErrNotFound is returned when no matching identity or consumable token exists.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when a token is well-formed but past its window.
	ErrExpired = errors.New("expired")

	// ErrAlreadyCurrent is returned when the requested email is already the current one.
	ErrAlreadyCurrent = errors.New("email is already current")

	// ErrInUse is returned when the email belongs to another identity.
	ErrInUse = errors.New("email already in use")

	// ErrInvalidLink is returned when a password reset link is rejected.
	ErrInvalidLink = errors.New("invalid reset link")
)

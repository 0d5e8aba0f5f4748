// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strconv"
	"time"
)

// Identity is the core credential record of a user.
type Identity struct { //nolint:govet // fieldalignment not critical for models
	ID           int64     `db:"id" json:"id"`
	Handle       string    `db:"handle" json:"handle"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	IsStaff      bool      `db:"is_staff" json:"is_staff"`
	JoinedAt     time.Time `db:"joined_at" json:"joined_at"`
}

// UID returns the base36 form of the identity ID used in reset links.
func (i *Identity) UID() string {
	return strconv.FormatInt(i.ID, 36)
}

// ParseUID is the inverse of Identity.UID.
func ParseUID(uid string) (int64, error) {
	return strconv.ParseInt(uid, 36, 64)
}

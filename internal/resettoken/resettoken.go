// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package resettoken issues signed password reset tokens.
//
// A token names the identity and a fingerprint of its current password
// hash, so it stops validating as soon as the password changes.
package resettoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// DefaultTTL is how long a reset link stays usable.
const DefaultTTL = 72 * time.Hour

const issuer = "lutefisk/password-reset"

// ErrEmptySecret is returned when no signing key is configured.
var ErrEmptySecret = errors.New("reset token secret is empty")

type claims struct {
	jwt.RegisteredClaims
	Fingerprint string `json:"fp"`
}

// Generator issues and validates HS256 reset tokens.
type Generator struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

// New creates a generator. ttl 0 selects DefaultTTL.
func New(secret []byte, ttl time.Duration, clock clockwork.Clock) (*Generator, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{secret: secret, ttl: ttl, clock: clock}, nil
}

// RandomSecret returns a fresh 32 byte signing key.
func RandomSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	return secret, nil
}

// Issue returns a token for identity.
func (g *Generator) Issue(identity *models.Identity) (string, error) {
	now := g.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(identity.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
		Fingerprint: fingerprint(identity.PasswordHash),
	})

	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

// Validate reports whether token was issued for identity in its current
// state and has not expired.
func (g *Generator) Validate(identity *models.Identity, token string) bool {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c,
		func(*jwt.Token) (any, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(strconv.FormatInt(identity.ID, 10)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return false
	}
	return c.Fingerprint == fingerprint(identity.PasswordHash)
}

func fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

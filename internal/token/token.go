// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token generates the opaque verification tokens used for account
// activation and email confirmation.
package token

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // tokens are single-use lookup keys, not password material
	"encoding/hex"
	"regexp"
)

// SaltLength is the length of a generated salt.
const SaltLength = 5

var pattern = regexp.MustCompile(`^[a-f0-9]{40}$`)

// Generate derives a token from seed. An empty salt is replaced by a random
// one. Returns (salt, token); the token is 40 lowercase hex characters.
func Generate(seed, salt string) (string, string) {
	if salt == "" {
		salt = randomSalt()
	}
	sum := sha1.Sum([]byte(salt + seed)) //nolint:gosec // see import
	return salt, hex.EncodeToString(sum[:])
}

// Valid reports whether s has the shape of a generated token.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

func randomSalt() string {
	b := make([]byte, SaltLength)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:SaltLength]
}

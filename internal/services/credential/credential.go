// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package credential hashes, verifies and replaces account passwords.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")
)

// PasswordStore persists password hashes.
type PasswordStore interface {
	UpdatePassword(ctx context.Context, identityID int64, passwordHash string) error
}

// Service hashes and verifies passwords with bcrypt.
type Service struct {
	store     PasswordStore
	validator *PasswordValidator
	cost      int
}

// NewService creates a credential service. cost 0 selects bcrypt.DefaultCost.
func NewService(store PasswordStore, validator *PasswordValidator, cost int) *Service {
	if validator == nil {
		validator = DefaultPasswordValidator()
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{store: store, validator: validator, cost: cost}
}

// Validator returns the password policy for use in request validation.
func (s *Service) Validator() *PasswordValidator {
	return s.validator
}

// Hash returns the bcrypt hash of password.
func (s *Service) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify checks password against the identity's stored hash.
func (s *Service) Verify(identity *models.Identity, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password))
	if err != nil {
		slog.Debug("credential_mismatch", "identity_id", identity.ID)
		return ErrInvalidCredentials
	}
	return nil
}

// SetPassword validates and stores a new password for identity. On success
// identity.PasswordHash holds the new hash.
func (s *Service) SetPassword(ctx context.Context, identity *models.Identity, password string) error {
	if err := s.validator.Validate(password, identity.Email, identity.Handle); err != nil {
		return err
	}

	hash, err := s.Hash(password)
	if err != nil {
		return err
	}

	if err := s.store.UpdatePassword(ctx, identity.ID, hash); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}
	identity.PasswordHash = hash

	slog.InfoContext(ctx, "password_changed", "identity_id", identity.ID)
	return nil
}

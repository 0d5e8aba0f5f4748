// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models_test

import (
	"testing"
	"time"

	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_UID(t *testing.T) {
	tests := []struct {
		id       int64
		expected string
	}{
		{1, "1"},
		{35, "z"},
		{36, "10"},
		{9223372036854775807, "1y2p0ij32e8e7"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			identity := &models.Identity{ID: tt.id}

			uid := identity.UID()

			assert.Equal(t, tt.expected, uid)
			parsed, err := models.ParseUID(uid)
			require.NoError(t, err)
			assert.Equal(t, tt.id, parsed)
		})
	}
}

func TestParseUID_Invalid(t *testing.T) {
	_, err := models.ParseUID("not-base36!")

	assert.Error(t, err)
}

func TestAccount_State(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		account  models.Account
		expected models.State
	}{
		{
			name: "inactive",
			account: models.Account{
				Identity:      models.Identity{IsActive: false},
				AccountRecord: models.AccountRecord{ActivationToken: "0123456789abcdef0123456789abcdef01234567"},
			},
			expected: models.StatePendingActivation,
		},
		{
			name: "active",
			account: models.Account{
				Identity:      models.Identity{IsActive: true},
				AccountRecord: models.AccountRecord{ActivationToken: "ALREADY_ACTIVATED"},
			},
			expected: models.StateActive,
		},
		{
			name: "active with pending email",
			account: models.Account{
				Identity: models.Identity{IsActive: true},
				AccountRecord: models.AccountRecord{
					ActivationToken:           "ALREADY_ACTIVATED",
					EmailPending:              "new@example.com",
					EmailChangeToken:          "0123456789abcdef0123456789abcdef01234567",
					EmailChangeTokenCreatedAt: &now,
				},
			},
			expected: models.StateActiveEmailPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.account.State())
		})
	}
}

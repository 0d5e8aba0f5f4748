// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package credential_test

import (
	"testing"

	"codeberg.org/oliverandrich/lutefisk/internal/services/credential"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordValidator(t *testing.T) {
	v := credential.DefaultPasswordValidator()

	tests := []struct {
		name     string
		password string
		attrs    []string
		codes    []string
	}{
		{"valid", "violet-harbour-lamp", []string{"someone@example.com"}, nil},
		{"too short", "abc", nil, []string{"min_length"}},
		{"numeric", "12345678901", nil, []string{"entirely_numeric"}},
		{"common", "password123", nil, []string{"common_password"}},
		{"common ignores case", "PASSWORD123", nil, []string{"common_password"}},
		{"contains email local part", "someone-rules-42", []string{"someone@example.com"}, []string{"too_similar"}},
		{"contains handle", "xyz-ab12c-xyz-q", []string{"ab12c"}, []string{"too_similar"}},
		{"short attributes ignored", "violet-harbour-lamp", []string{"vi"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.password, tt.attrs...)

			if tt.codes == nil {
				assert.NoError(t, err)
				return
			}
			var verr *credential.PasswordValidationError
			require.ErrorAs(t, err, &verr)
			for _, code := range tt.codes {
				assert.Contains(t, verr.Codes(), code)
			}
		})
	}
}

func TestPasswordValidator_Rule(t *testing.T) {
	v := credential.DefaultPasswordValidator()

	assert.NoError(t, validation.Validate("violet-harbour-lamp", v.Rule("someone@example.com")))
	assert.Error(t, validation.Validate("short", v.Rule()))
	assert.NoError(t, validation.Validate("", v.Rule()), "emptiness is left to validation.Required")
}

func TestPasswordValidationError_Message(t *testing.T) {
	err := &credential.PasswordValidationError{}
	assert.Equal(t, "password validation failed", err.Error())

	err.Errors = []credential.ValidationError{{Code: "min_length", Message: "too short"}}
	assert.Equal(t, "too short", err.Error())
}

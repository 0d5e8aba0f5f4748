// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/lutefisk/internal/accounts"
	"codeberg.org/oliverandrich/lutefisk/internal/i18n"
	"codeberg.org/oliverandrich/lutefisk/internal/services/credential"
	"codeberg.org/oliverandrich/lutefisk/internal/services/emailchange"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// failure maps a service error to its status and code.
func failure(err error) (int, string) {
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, accounts.ErrExpired):
		return http.StatusGone, "expired"
	case errors.Is(err, accounts.ErrInUse):
		return http.StatusConflict, "in_use"
	case errors.Is(err, accounts.ErrAlreadyCurrent):
		return http.StatusConflict, "already_current"
	case errors.Is(err, accounts.ErrInvalidLink):
		return http.StatusBadRequest, "invalid_link"
	case errors.Is(err, credential.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError renders err as an ErrorResponse in the request locale.
func writeError(c echo.Context, err error) error {
	ctx := c.Request().Context()

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return writeValidation(c, fieldMessages(verrs))
	}
	if errors.Is(err, emailchange.ErrEmptyEmail) {
		return writeValidation(c, map[string]string{"email": "cannot be blank"})
	}
	var perr *credential.PasswordValidationError
	if errors.As(err, &perr) {
		return writeValidation(c, map[string]string{"password": perr.Error()})
	}

	status, code := failure(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request_failed", "error", err)
	}
	return c.JSON(status, ErrorResponse{
		Error:   code,
		Message: i18n.T(ctx, "error_"+code),
	})
}

func writeValidation(c echo.Context, fields map[string]string) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation",
		Message: i18n.T(c.Request().Context(), "error_validation"),
		Fields:  fields,
	})
}

func fieldMessages(verrs validation.Errors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for field, err := range verrs {
		fields[field] = err.Error()
	}
	return fields
}

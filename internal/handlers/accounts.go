// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"codeberg.org/oliverandrich/lutefisk/internal/accounts"
	"codeberg.org/oliverandrich/lutefisk/internal/i18n"
	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"codeberg.org/oliverandrich/lutefisk/internal/services/activation"
	"codeberg.org/oliverandrich/lutefisk/internal/services/credential"
	"codeberg.org/oliverandrich/lutefisk/internal/services/emailchange"
	"codeberg.org/oliverandrich/lutefisk/internal/services/recovery"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"
)

// AccountHandlers exposes the account lifecycle as a JSON API.
type AccountHandlers struct {
	repo        accounts.Repository
	activation  *activation.Service
	emailChange *emailchange.Service
	recovery    *recovery.Gateway
	credentials *credential.Service
}

// NewAccounts creates a new AccountHandlers instance.
func NewAccounts(
	repo accounts.Repository,
	act *activation.Service,
	ec *emailchange.Service,
	rec *recovery.Gateway,
	creds *credential.Service,
) *AccountHandlers {
	return &AccountHandlers{
		repo:        repo,
		activation:  act,
		emailChange: ec,
		recovery:    rec,
		credentials: creds,
	}
}

// AccountResponse describes an identity and its lifecycle state.
type AccountResponse struct {
	Handle string       `json:"handle"`
	Email  string       `json:"email"`
	State  models.State `json:"state"`
}

func stateOf(identity *models.Identity) models.State {
	if identity.IsActive {
		return models.StateActive
	}
	return models.StatePendingActivation
}

// SignupRequest is the request body for creating an account.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the payload before any account is touched.
func (r SignupRequest) Validate(passwords *credential.PasswordValidator) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 72), passwords.Rule(r.Email)),
	)
}

// Signup creates a new account.
func (h *AccountHandlers) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid request"})
	}
	if err := req.Validate(h.credentials.Validator()); err != nil {
		return writeError(c, err)
	}

	identity, err := h.activation.Signup(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, AccountResponse{
		Handle: identity.Handle,
		Email:  identity.Email,
		State:  stateOf(identity),
	})
}

// Activate consumes an activation link.
func (h *AccountHandlers) Activate(c echo.Context) error {
	identity, err := h.activation.Activate(c.Request().Context(), c.Param("handle"), c.Param("token"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, AccountResponse{
		Handle: identity.Handle,
		Email:  identity.Email,
		State:  models.StateActive,
	})
}

// EmailChangeRequest is the request body for starting an email change.
type EmailChangeRequest struct {
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Validate checks the payload.
func (r EmailChangeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
	)
}

// RequestEmailChange starts an email change after re-checking the password.
func (h *AccountHandlers) RequestEmailChange(c echo.Context) error {
	var req EmailChangeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid request"})
	}
	if err := req.Validate(); err != nil {
		return writeError(c, err)
	}

	ctx := c.Request().Context()
	account, err := h.repo.GetAccountByHandle(ctx, c.Param("handle"))
	if errors.Is(err, accounts.ErrRecordNotFound) || (err == nil && !account.IsActive) {
		return writeError(c, accounts.ErrNotFound)
	}
	if err != nil {
		return writeError(c, err)
	}

	if err := h.credentials.Verify(&account.Identity, req.Password); err != nil {
		return writeError(c, err)
	}

	if err := h.emailChange.RequestChange(ctx, &account.Identity, req.Email); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusAccepted, AccountResponse{
		Handle: account.Handle,
		Email:  account.Email,
		State:  models.StateActiveEmailPending,
	})
}

// ConfirmEmailChange consumes an email confirmation link.
func (h *AccountHandlers) ConfirmEmailChange(c echo.Context) error {
	identity, err := h.emailChange.ConfirmChange(c.Request().Context(), c.Param("handle"), c.Param("token"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, AccountResponse{
		Handle: identity.Handle,
		Email:  identity.Email,
		State:  stateOf(identity),
	})
}

// ResetRequest is the request body for asking for a reset link.
type ResetRequest struct {
	Email string `json:"email"`
}

// Validate checks the payload.
func (r ResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// RequestReset asks for a reset link. The answer does not reveal whether
// the address belongs to an account.
func (h *AccountHandlers) RequestReset(c echo.Context) error {
	var req ResetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid request"})
	}
	if err := req.Validate(); err != nil {
		return writeError(c, err)
	}

	ctx := c.Request().Context()
	if err := h.recovery.RequestReset(ctx, req.Email); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": i18n.T(ctx, "reset_requested"),
	})
}

// ResetConfirmRequest is the request body for choosing a new password.
type ResetConfirmRequest struct {
	Password string `json:"password"`
}

// ConfirmReset sets a new password through a reset link.
func (h *AccountHandlers) ConfirmReset(c echo.Context) error {
	var req ResetConfirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid request"})
	}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Password, validation.Required, validation.Length(1, 72)),
	)
	if err != nil {
		return writeError(c, err)
	}

	ctx := c.Request().Context()
	identity, err := h.recovery.ConfirmReset(ctx, c.Param("uid"), c.Param("token"))
	if err != nil {
		return writeError(c, err)
	}

	if err := h.credentials.SetPassword(ctx, identity, req.Password); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, AccountResponse{
		Handle: identity.Handle,
		Email:  identity.Email,
		State:  stateOf(identity),
	})
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/lutefisk/internal/database"
	"github.com/labstack/echo/v4"
	"github.com/vinovest/sqlx"
)

// Handlers contains the operational HTTP handlers.
type Handlers struct {
	db *sqlx.DB
}

// New creates a new Handlers instance.
func New(db *sqlx.DB) *Handlers {
	return &Handlers{db: db}
}

// Health reports whether the database answers and which schema it runs.
func (h *Handlers) Health(c echo.Context) error {
	if err := h.db.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
	}

	version, err := database.MigrationVersion(h.db.DB)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"schema_version": version,
	})
}

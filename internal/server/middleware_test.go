// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/lutefisk/internal/i18n"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestI18nMiddleware(t *testing.T) {
	// Initialize i18n bundle
	require.NoError(t, i18n.Init())

	e := echo.New()
	e.Use(i18nMiddleware())

	var locale string
	e.GET("/", func(c echo.Context) error {
		locale = i18n.GetLocale(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"English header", "en-US", "en"},
		{"German header", "de-DE,de;q=0.9", "de"},
		{"unsupported falls back to English", "fr-FR", "en"},
		{"no header", "", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.True(t, strings.HasPrefix(locale, tt.want), "expected locale to start with %q, got %s", tt.want, locale)
		})
	}
}

func TestSetupMiddleware_BodyLimit(t *testing.T) {
	e := echo.New()
	setupMiddleware(e, testConfig())
	e.POST("/echo", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	body := strings.NewReader(strings.Repeat("x", 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/echo", body)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSetupMiddleware_Headers(t *testing.T) {
	e := echo.New()
	setupMiddleware(e, testConfig())
	e.GET("/ping", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/lutefisk/internal/handlers"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, app *App) {
	h := handlers.New(app.DB)
	accounts := handlers.NewAccounts(app.Repo, app.Activation, app.EmailChange, app.Recovery, app.Credentials)

	e.GET("/health", h.Health)

	g := e.Group("/accounts")
	g.POST("/signup", accounts.Signup)
	g.GET("/activate/:handle/:token", accounts.Activate)
	g.POST("/password/reset", accounts.RequestReset)
	g.POST("/password/reset/:uid/:token", accounts.ConfirmReset)
	g.POST("/:handle/email", accounts.RequestEmailChange)
	g.GET("/:handle/email/confirm/:token", accounts.ConfirmEmailChange)
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"codeberg.org/oliverandrich/lutefisk/internal/config"
	"codeberg.org/oliverandrich/lutefisk/internal/server"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:    "lutefisk",
		Usage:   "Account activation, email change and password recovery service",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: server.Run,
			},
			{
				Name:   "clean-expired",
				Usage:  "Delete accounts whose activation window has run out",
				Action: server.CleanExpired,
			},
			{
				Name:   "send-reminders",
				Usage:  "Send activation reminders that are due",
				Action: server.SendReminders,
			},
			{
				Name:      "set-staff",
				Usage:     "Mark an account as staff so it is never reclaimed",
				ArgsUsage: "<handle>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "revoke",
						Usage: "Remove staff status instead",
					},
				},
				Action: server.SetStaff,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

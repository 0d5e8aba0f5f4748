// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

type job struct {
	name string
	run  func(context.Context) error
}

// maintenanceJobs reclaims expired accounts before reminding the rest, so
// no reminder goes to an account that is about to be deleted.
func maintenanceJobs(app *App) []job {
	return []job{
		{name: "reclaim", run: func(ctx context.Context) error {
			_, err := app.Reclaimer.Sweep(ctx)
			return err
		}},
		{name: "activation_reminders", run: func(ctx context.Context) error {
			_, err := app.Activation.SendReminders(ctx)
			return err
		}},
	}
}

// runMaintenance runs jobs every interval until ctx is done. A failed job
// is logged and retried on the next tick.
func runMaintenance(ctx context.Context, clock clockwork.Clock, interval time.Duration, jobs []job) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			for _, j := range jobs {
				if err := j.run(ctx); err != nil && ctx.Err() == nil {
					slog.ErrorContext(ctx, "maintenance_failed", "job", j.name, "error", err)
				}
			}
		}
	}
}

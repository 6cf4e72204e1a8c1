package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// newScheduler registers the periodic maintenance jobs.
func (app *application) newScheduler() (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	_, err := c.AddFunc("@hourly", app.purgeExpiredTokens)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (app *application) purgeExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := app.userService.PurgeExpiredTokens(ctx)
	if err != nil {
		app.logger.Error("failed to purge expired tokens", slog.String("error", err.Error()))
		return
	}

	app.logger.Info("purged expired tokens", slog.Int64("count", n))
}

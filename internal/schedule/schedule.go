package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// WaitUntil blocks until runAt or until ctx is done, whichever comes first.
func WaitUntil(ctx context.Context, runAt time.Time) error {
	delay := time.Until(runAt)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Every calls execute at each run time of cron until ctx is done. It returns
// an error for an invalid expression or one with no future run times, and
// nil once ctx is done.
func Every(ctx context.Context, cron string, execute func(ctx context.Context)) error {
	expr, err := ParseCron(cron)
	if err != nil {
		return err
	}

	for {
		next := expr.Next(time.Now().UTC())
		if next.IsZero() {
			return fmt.Errorf("cron expression %q has no upcoming run times", cron)
		}

		slog.Debug("Waiting for next scheduled run", "cron", cron, "runAt", next)
		if err := WaitUntil(ctx, next); err != nil {
			return nil
		}
		execute(ctx)
	}
}

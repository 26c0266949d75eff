package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration returns the duration from now until the next fire time
// of sched.
func nextCronDuration(sched cron.Schedule, now time.Time) time.Duration {
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RunSchedule calls fn at every fire time of the 5-field cron expression
// expr until ctx is cancelled. It returns an error only for an invalid
// expression.
func RunSchedule(ctx context.Context, expr string, fn func(context.Context)) error {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("notify: parse cron %q: %w", expr, err)
	}
	timer := time.NewTimer(nextCronDuration(sched, time.Now()))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			fn(ctx)
			timer.Reset(nextCronDuration(sched, time.Now()))
		}
	}
}

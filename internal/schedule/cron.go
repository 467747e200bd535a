package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

var ErrInvalidCron = errors.New("invalid cron expression")

// ParseCron parses a standard five-field expression, a seven-field one whose
// first field is seconds, or a macro such as @hourly.
func ParseCron(cron string) (*cronexpr.Expression, error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidCron, cron, err)
	}
	return expr, nil
}

// NextRunTimes returns the next n run times of cron after the given time,
// in UTC. Fewer are returned when the expression runs out of run times.
func NextRunTimes(cron string, after time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, fmt.Errorf("count must be greater than 0, got %d", n)
	}
	expr, err := ParseCron(cron)
	if err != nil {
		return nil, err
	}
	times := expr.NextN(after.UTC(), uint(n))
	for i := range times {
		times[i] = times[i].UTC()
	}
	return times, nil
}

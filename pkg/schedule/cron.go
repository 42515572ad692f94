package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard 5-field cron expressions
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Expression is a parsed cron expression
type Expression struct {
	expr     string
	schedule cron.Schedule
}

// Parse parses a 5-field cron expression
func Parse(expr string) (*Expression, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &Expression{expr: expr, schedule: schedule}, nil
}

// String returns the original expression text
func (e *Expression) String() string {
	return e.expr
}

// Next returns the first fire time strictly after t
func (e *Expression) Next(t time.Time) time.Time {
	return e.schedule.Next(t)
}

// FireTimesSince returns an iterator over the ascending fire times
// strictly after t0. Each call yields the next firing.
func (e *Expression) FireTimesSince(t0 time.Time) func() time.Time {
	cursor := t0
	return func() time.Time {
		cursor = e.schedule.Next(cursor)
		return cursor
	}
}

// DueWithin reports whether the expression has a firing t with t <= now
// and now-t <= maxAge. Firings older than maxAge are considered missed
// and are not backfilled.
func (e *Expression) DueWithin(now time.Time, maxAge time.Duration) bool {
	t := e.schedule.Next(now.Add(-maxAge).Add(-time.Nanosecond))
	if t.IsZero() || t.After(now) {
		return false
	}
	return now.Sub(t) <= maxAge
}

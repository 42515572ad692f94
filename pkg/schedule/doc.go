// Package schedule provides the declared job schedule and cron helpers.
//
// A Source yields the full set of ScheduledJob declarations; FileSource
// reads them from a YAML file and validates every entry (positive
// weight, at least one attempt, parseable cron, unique ids and locks).
//
// Cron expressions use the standard 5-field form. Expression wraps a
// parsed expression with the two operations the leader needs: the next
// fire time after an instant, and whether a firing is currently due
// within a job's max age:
//
//	expr, _ := schedule.Parse("*/5 * * * *")
//	if expr.DueWithin(now, 2*time.Minute) {
//		// queue an instance
//	}
//
// Firings older than the max age are treated as missed and are never
// backfilled.
package schedule

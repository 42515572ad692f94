package leader

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/drover/pkg/events"
	"github.com/cuemby/drover/pkg/metrics"
	"github.com/cuemby/drover/pkg/schedule"
	"github.com/cuemby/drover/pkg/storage"
)

// QueueScheduledJobs turns due schedule entries into queued job
// records. A schedule entry is skipped while a queued or running
// instance still holds its lock, and a firing older than the entry's
// max job age is considered missed and never backfilled.
func (l *Leader) QueueScheduledJobs(ctx context.Context) error {
	if !l.state.IsLeader() {
		return nil
	}

	if err := l.syncJobMirror(); err != nil {
		return err
	}

	now := l.clock.Now()
	for _, scheduled := range l.state.ScheduleSnapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if l.state.LockHeld(scheduled.Lock) {
			continue
		}

		expr, err := schedule.Parse(scheduled.Schedule.Cron)
		if err != nil {
			l.logger.Warn().Err(err).Str("job_id", scheduled.JobID).Msg("skipping job with invalid cron expression")
			continue
		}
		if !expr.DueWithin(now, scheduled.Schedule.MaxJobAge) {
			continue
		}

		queued := scheduled.ToQueuedJob(now)
		if err := l.jobs.CreateQueuedJob(queued); err != nil {
			if errors.Is(err, storage.ErrLockHeld) {
				// Another writer won the lock; the next mirror sync picks it up
				l.logger.Debug().Str("lock", queued.Lock).Msg("lock already held, skipping firing")
				continue
			}
			return fmt.Errorf("failed to queue job %s: %w", scheduled.JobID, err)
		}

		// Persisted first; only then does the mirror change
		l.state.InsertQueued(queued)
		metrics.JobsQueuedTotal.Inc()
		l.logger.Info().Str("job_id", queued.JobID).Str("lock", queued.Lock).Msg("job queued")
		l.publish(events.EventJobQueued, "scheduled job queued", map[string]string{
			"job_id": queued.JobID,
			"lock":   queued.Lock,
		})
	}

	return nil
}

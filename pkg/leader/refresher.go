package leader

import (
	"context"
	"fmt"
)

// RefreshJobsSchedule replaces the schedule mirror with the current
// snapshot from the schedule source. Followers skip the refresh unless
// ignoreLeader is set; any node may warm its schedule cache that way.
func (l *Leader) RefreshJobsSchedule(ctx context.Context, ignoreLeader bool) error {
	if !ignoreLeader && !l.state.IsLeader() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	scheduled, err := l.source.GetJobsSchedule()
	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}

	l.state.ReplaceSchedule(scheduled)
	l.logger.Debug().Int("jobs", len(scheduled)).Msg("schedule refreshed")
	return nil
}

package leader

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/drover/pkg/events"
	"github.com/cuemby/drover/pkg/metrics"
	"github.com/cuemby/drover/pkg/storage"
	"github.com/cuemby/drover/pkg/types"
)

// CleanDeadNodesJobs recovers jobs running on nodes that are no longer
// present and active in the registry. A job with remaining attempts is
// requeued keeping its attempt count; a job at its attempt limit is
// finalized as failed. The node snapshot is taken once per invocation,
// so every job in a pass sees the same liveness picture.
func (l *Leader) CleanDeadNodesJobs(ctx context.Context) error {
	if !l.state.IsLeader() {
		return nil
	}

	if err := l.syncJobMirror(); err != nil {
		return err
	}

	nodes, err := l.registry.GetAllNodes()
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	alive := make(map[string]bool)
	for _, node := range nodes {
		if node.Group == l.cfg.Group && node.Active {
			alive[node.ID] = true
		}
	}

	now := l.clock.Now()
	for _, running := range l.state.RunningSnapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if alive[running.AssignedNodeID] {
			continue
		}

		if running.Attempts < running.MaxAttempts {
			if err := l.requeueDeadJob(running); err != nil {
				return err
			}
			continue
		}

		message := fmt.Sprintf("%s is dead and max attempts has been reached", running.AssignedNodeID)
		if _, err := l.jobs.MoveRunningToFinished(running, types.JobResultFailure, message, now); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				l.state.RemoveRunning(running.Lock)
				continue
			}
			return fmt.Errorf("failed to finalize job %s: %w", running.JobID, err)
		}

		l.state.RemoveRunning(running.Lock)
		metrics.JobsFailedTotal.Inc()
		l.logger.Warn().Str("job_id", running.JobID).Str("node_id", running.AssignedNodeID).
			Int("attempts", running.Attempts).Msg("job failed, dead node and no attempts left")
		l.publish(events.EventJobFinished, message, map[string]string{
			"job_id": running.JobID,
			"lock":   running.Lock,
			"result": string(types.JobResultFailure),
		})
	}

	return nil
}

func (l *Leader) requeueDeadJob(running *types.RunningJob) error {
	queued, err := l.jobs.MoveRunningToQueued(running)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			l.state.RemoveRunning(running.Lock)
			return nil
		}
		return fmt.Errorf("failed to requeue job %s: %w", running.JobID, err)
	}

	l.state.MarkRequeued(queued)
	metrics.JobsRecoveredTotal.Inc()
	l.logger.Info().Str("job_id", running.JobID).Str("node_id", running.AssignedNodeID).
		Int("attempts", running.Attempts).Msg("job requeued from dead node")
	l.publish(events.EventJobRequeued, "job requeued from dead node", map[string]string{
		"job_id":  running.JobID,
		"lock":    running.Lock,
		"node_id": running.AssignedNodeID,
	})
	return nil
}

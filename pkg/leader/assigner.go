package leader

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cuemby/drover/pkg/events"
	"github.com/cuemby/drover/pkg/metrics"
	"github.com/cuemby/drover/pkg/storage"
	"github.com/cuemby/drover/pkg/types"
)

// AssignQueuedJobs matches queued jobs to active nodes. Jobs are
// processed highest-priority first; each goes to the eligible node
// with the most remaining weight capacity. Jobs without an eligible
// node stay queued, so a full cluster assigns partially rather than
// not at all.
func (l *Leader) AssignQueuedJobs(ctx context.Context) error {
	if !l.state.IsLeader() {
		return nil
	}

	if err := l.syncJobMirror(); err != nil {
		return err
	}

	queued := l.state.QueuedSnapshot()
	if len(queued) == 0 {
		return nil
	}

	nodes, err := l.registry.GetAllNodes()
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	var active []*types.Node
	for _, node := range nodes {
		if node.Group == l.cfg.Group && node.Active {
			active = append(active, node)
		}
	}
	if len(active) < l.cfg.MinActiveNodes {
		l.logger.Debug().Int("active", len(active)).Int("min", l.cfg.MinActiveNodes).
			Msg("not enough active nodes, deferring assignment")
		return nil
	}

	capacity := l.remainingCapacity(active)

	// Highest priority first, job id breaks ties deterministically
	sort.Slice(queued, func(i, j int) bool {
		if queued[i].Priority != queued[j].Priority {
			return queued[i].Priority < queued[j].Priority
		}
		return queued[i].JobID < queued[j].JobID
	})

	now := l.clock.Now()
	for _, job := range queued {
		if err := ctx.Err(); err != nil {
			return err
		}

		node := pickNode(active, capacity, job, l.eligibleNodeFilter())
		if node == nil {
			continue
		}

		running, err := l.jobs.MoveQueuedToRunning(job, node.ID, now)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// The job left the queue under us; resync next tick
				l.logger.Debug().Str("lock", job.Lock).Msg("queued job vanished, skipping")
				continue
			}
			return fmt.Errorf("failed to assign job %s: %w", job.JobID, err)
		}

		l.state.MarkRunning(running)
		capacity[node.ID] -= job.Weight
		metrics.JobsAssignedTotal.Inc()
		l.logger.Info().Str("job_id", job.JobID).Str("node_id", node.ID).
			Int("weight", job.Weight).Msg("job assigned")
		l.publish(events.EventJobAssigned, "job assigned to node", map[string]string{
			"job_id":  job.JobID,
			"lock":    job.Lock,
			"node_id": node.ID,
		})
	}

	return nil
}

// remainingCapacity computes per-node remaining weight capacity from
// the running mirror. Assignments made during a pass keep the map
// current, so one pass never overcommits a node.
func (l *Leader) remainingCapacity(active []*types.Node) map[string]int {
	capacity := make(map[string]int, len(active))
	for _, node := range active {
		capacity[node.ID] = l.cfg.MaxWeightPerNode
	}
	for _, running := range l.state.RunningSnapshot() {
		if _, ok := capacity[running.AssignedNodeID]; ok {
			capacity[running.AssignedNodeID] -= running.Weight
		}
	}
	return capacity
}

// eligibleNodeFilter returns the per-node eligibility check applied on
// top of capacity: version requirements, and keeping work off the
// leader when it is not also a worker.
func (l *Leader) eligibleNodeFilter() func(node *types.Node, job *types.QueuedJob) bool {
	return func(node *types.Node, job *types.QueuedJob) bool {
		if !l.cfg.LeaderAlsoWorker && node.ID == l.cfg.NodeID {
			return false
		}
		if job.MinVersion != "" && node.Version < job.MinVersion {
			return false
		}
		return true
	}
}

// pickNode selects the eligible node with the greatest remaining
// capacity, breaking ties by node id. Returns nil when no node fits.
func pickNode(active []*types.Node, capacity map[string]int, job *types.QueuedJob, eligible func(*types.Node, *types.QueuedJob) bool) *types.Node {
	var best *types.Node
	for _, node := range active {
		if capacity[node.ID] < job.Weight {
			continue
		}
		if !eligible(node, job) {
			continue
		}
		if best == nil {
			best = node
			continue
		}
		if capacity[node.ID] > capacity[best.ID] ||
			(capacity[node.ID] == capacity[best.ID] && node.ID < best.ID) {
			best = node
		}
	}
	return best
}

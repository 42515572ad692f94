package leader

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/drover/pkg/events"
	"github.com/cuemby/drover/pkg/types"
)

// ElectClusterLeader recomputes this node's leader flag.
//
// The leader of a group is the oldest active node, with node ids
// breaking join-time ties deterministically. A head node younger than
// YoungestLeaderAge blocks the whole group from electing a leader this
// tick, so a freshly bootstrapped cluster does not elect a transient
// leader. Leadership transitions load or clear the state mirror as a
// single observable step.
func (l *Leader) ElectClusterLeader(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nodes, err := l.registry.GetAllNodes()
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	head := l.electionHead(nodes)

	shouldLead := false
	if head != nil {
		now := l.clock.Now()
		if now.Sub(head.JoinTime) >= l.cfg.YoungestLeaderAge {
			shouldLead = head.ID == l.cfg.NodeID
		}
	}

	wasLeader := l.state.IsLeader()
	switch {
	case shouldLead && !wasLeader:
		if err := l.becomeLeader(ctx); err != nil {
			return err
		}
		l.logger.Info().Str("group", l.cfg.Group).Msg("gained group leadership")
		l.publish(events.EventLeaderGained, "node gained group leadership", map[string]string{
			"node_id": l.cfg.NodeID,
			"group":   l.cfg.Group,
		})
	case !shouldLead && wasLeader:
		l.state.StepDown()
		l.logger.Info().Str("group", l.cfg.Group).Msg("lost group leadership")
		l.publish(events.EventLeaderLost, "node lost group leadership", map[string]string{
			"node_id": l.cfg.NodeID,
			"group":   l.cfg.Group,
		})
	}

	return nil
}

// electionHead returns the election winner candidate for this group,
// or nil when the group has no active nodes
func (l *Leader) electionHead(nodes []*types.Node) *types.Node {
	var candidates []*types.Node
	for _, node := range nodes {
		if node.Group == l.cfg.Group && node.Active {
			candidates = append(candidates, node)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].JoinTime.Equal(candidates[j].JoinTime) {
			return candidates[i].JoinTime.Before(candidates[j].JoinTime)
		}
		return candidates[i].ID < candidates[j].ID
	})

	return candidates[0]
}

// becomeLeader loads the full schedule and job mirrors, then flips the
// leader flag. Everything is fetched before any state changes, so a
// store failure leaves the node a plain follower.
func (l *Leader) becomeLeader(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	scheduled, err := l.source.GetJobsSchedule()
	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}
	queued, err := l.jobs.GetQueuedJobs()
	if err != nil {
		return fmt.Errorf("failed to load queued jobs: %w", err)
	}
	running, err := l.jobs.GetRunningJobs()
	if err != nil {
		return fmt.Errorf("failed to load running jobs: %w", err)
	}

	return l.state.BecomeLeader(scheduled, queued, running)
}

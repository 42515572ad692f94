package leader

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/drover/pkg/clock"
	"github.com/cuemby/drover/pkg/storage"
	"github.com/cuemby/drover/pkg/types"
	"github.com/stretchr/testify/require"
)

// stubSource serves a fixed schedule
type stubSource struct {
	jobs []*types.ScheduledJob
	err  error
}

func (s *stubSource) GetJobsSchedule() ([]*types.ScheduledJob, error) {
	return s.jobs, s.err
}

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig(nodeID string) Config {
	return Config{
		NodeID:            nodeID,
		Group:             "g",
		YoungestLeaderAge: 10 * time.Second,
		MaxWeightPerNode:  100,
		LeaderAlsoWorker:  true,
	}
}

func newTestLeader(cfg Config, store *storage.MemoryStore, source *stubSource, clk clock.Clock) *Leader {
	return New(cfg, store, store, source, clk, nil)
}

func addNode(t *testing.T, store *storage.MemoryStore, id string, joined time.Time, active bool) {
	t.Helper()
	require.NoError(t, store.CreateNode(&types.Node{
		ID:       id,
		Group:    "g",
		JoinTime: joined,
		Active:   active,
		Version:  "1.0.0",
	}))
}

func scheduledJob(id string, weight, priority int) *types.ScheduledJob {
	return &types.ScheduledJob{
		JobID:   id,
		Lock:    id,
		JobType: "noop",
		Weight:  weight,
		Schedule: types.JobSchedule{
			Cron:      "* * * * *",
			MaxJobAge: 2 * time.Minute,
		},
		MaxAttempts: 3,
		Priority:    priority,
	}
}

// electLeader promotes the given node by running a real election
func electLeader(t *testing.T, l *Leader) {
	t.Helper()
	require.NoError(t, l.ElectClusterLeader(context.Background()))
	require.True(t, l.IsLeader())
}

func TestLeaderOnlyDutiesNoopOnFollowers(t *testing.T) {
	store := storage.NewMemoryStore()
	clk := clock.NewFake(testEpoch)
	l := newTestLeader(testConfig("n1"), store, &stubSource{jobs: []*types.ScheduledJob{scheduledJob("j1", 10, 1)}}, clk)

	ctx := context.Background()
	require.NoError(t, l.QueueScheduledJobs(ctx))
	require.NoError(t, l.AssignQueuedJobs(ctx))
	require.NoError(t, l.CleanDeadNodesJobs(ctx))

	queued, err := store.GetQueuedJobs()
	require.NoError(t, err)
	require.Empty(t, queued, "follower must not queue jobs")
}

package leader

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/drover/pkg/clock"
	"github.com/cuemby/drover/pkg/storage"
	"github.com/cuemby/drover/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshReplacesScheduleMirror(t *testing.T) {
	store := storage.NewMemoryStore()
	clk := clock.NewFake(testEpoch)
	addNode(t, store, "node-a", testEpoch.Add(-time.Hour), true)

	source := &stubSource{jobs: []*types.ScheduledJob{scheduledJob("j1", 10, 1)}}
	l := newTestLeader(testConfig("node-a"), store, source, clk)
	electLeader(t, l)
	require.Len(t, l.State().ScheduleSnapshot(), 1)

	// The source grows a job; the next refresh picks it up
	source.jobs = append(source.jobs, scheduledJob("j2", 10, 1))
	require.NoError(t, l.RefreshJobsSchedule(context.Background(), false))
	assert.Len(t, l.State().ScheduleSnapshot(), 2)
}

func TestRefreshSkipsFollowersUnlessForced(t *testing.T) {
	store := storage.NewMemoryStore()
	clk := clock.NewFake(testEpoch)

	source := &stubSource{jobs: []*types.ScheduledJob{scheduledJob("j1", 10, 1)}}
	l := newTestLeader(testConfig("node-a"), store, source, clk)
	require.False(t, l.IsLeader())

	require.NoError(t, l.RefreshJobsSchedule(context.Background(), false))
	assert.Empty(t, l.State().ScheduleSnapshot(), "followers skip the refresh")

	// Any node may warm its schedule cache with the override
	require.NoError(t, l.RefreshJobsSchedule(context.Background(), true))
	assert.Len(t, l.State().ScheduleSnapshot(), 1)
}

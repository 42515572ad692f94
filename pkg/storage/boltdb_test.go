package storage

import (
	"testing"
	"time"

	"github.com/cuemby/drover/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// withStores runs the same assertions against both Store implementations
func withStores(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("bolt", func(t *testing.T) {
		store, err := NewBoltStore(t.TempDir())
		require.NoError(t, err)
		defer store.Close()
		fn(t, store)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
}

func testNode(id, group string, joined time.Time, active bool) *types.Node {
	return &types.Node{ID: id, Group: group, JoinTime: joined, Active: active, Version: "1.0.0"}
}

func testQueued(lock string, weight int) *types.QueuedJob {
	return &types.QueuedJob{
		JobID:       lock,
		Lock:        lock,
		JobType:     "noop",
		Weight:      weight,
		MaxAttempts: 3,
		QueuedTime:  storeEpoch,
	}
}

func TestNodeLifecycle(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		node := testNode("n1", "g", storeEpoch, true)
		require.NoError(t, store.CreateNode(node))

		got, err := store.GetNode("n1")
		require.NoError(t, err)
		assert.Equal(t, "g", got.Group)
		assert.True(t, got.JoinTime.Equal(storeEpoch))

		require.NoError(t, store.UpdateNodeStatus("n1", false))
		got, err = store.GetNode("n1")
		require.NoError(t, err)
		assert.False(t, got.Active)

		require.NoError(t, store.DeleteNode("n1"))
		_, err = store.GetNode("n1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestNodeGroupQueries(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		require.NoError(t, store.CreateNode(testNode("a", "g", storeEpoch.Add(-3*time.Hour), true)))
		require.NoError(t, store.CreateNode(testNode("b", "g", storeEpoch.Add(-2*time.Hour), true)))
		require.NoError(t, store.CreateNode(testNode("c", "g", storeEpoch.Add(-1*time.Hour), true)))
		require.NoError(t, store.CreateNode(testNode("d", "g", storeEpoch, false)))
		require.NoError(t, store.CreateNode(testNode("e", "other", storeEpoch, true)))

		count, err := store.GetAllActiveNodesCountByGroup("g")
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		youngest, err := store.GetYoungestActiveNodesByGroup("g", 2)
		require.NoError(t, err)
		require.Len(t, youngest, 2)
		assert.Equal(t, "c", youngest[0].ID)
		assert.Equal(t, "b", youngest[1].ID)

		inactive, err := store.GetAllInactiveNodesByGroup("g")
		require.NoError(t, err)
		require.Len(t, inactive, 1)
		assert.Equal(t, "d", inactive[0].ID)
	})
}

func TestUpdateStatusOfUnknownNode(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		assert.ErrorIs(t, store.UpdateNodeStatus("ghost", false), ErrNotFound)
	})
}

// TestLockUniqueness verifies the core serialization property: a lock
// value is held by at most one queued-or-running instance
func TestLockUniqueness(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		q := testQueued("j1", 10)
		require.NoError(t, store.CreateQueuedJob(q))

		// A second queued instance on the same lock is refused
		assert.ErrorIs(t, store.CreateQueuedJob(testQueued("j1", 20)), ErrLockHeld)

		// Still refused while the instance is running
		_, err := store.MoveQueuedToRunning(q, "n1", storeEpoch)
		require.NoError(t, err)
		assert.ErrorIs(t, store.CreateQueuedJob(testQueued("j1", 20)), ErrLockHeld)

		// Released once the instance finishes
		running, err := store.GetRunningJobs()
		require.NoError(t, err)
		require.Len(t, running, 1)
		_, err = store.MoveRunningToFinished(running[0], types.JobResultSuccess, "", storeEpoch)
		require.NoError(t, err)
		assert.NoError(t, store.CreateQueuedJob(testQueued("j1", 20)))
	})
}

func TestJobTransitions(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		q := testQueued("j1", 10)
		require.NoError(t, store.CreateQueuedJob(q))

		running, err := store.MoveQueuedToRunning(q, "n1", storeEpoch)
		require.NoError(t, err)
		assert.Equal(t, "n1", running.AssignedNodeID)
		assert.Equal(t, 1, running.Attempts)

		// The move is atomic: the instance is in exactly one set
		queued, err := store.GetQueuedJobs()
		require.NoError(t, err)
		assert.Empty(t, queued)

		byNode, err := store.GetRunningJobsByNode("n1")
		require.NoError(t, err)
		require.Len(t, byNode, 1)

		requeued, err := store.MoveRunningToQueued(running)
		require.NoError(t, err)
		assert.Equal(t, 1, requeued.Attempts, "requeue keeps the attempt count")

		running2, err := store.MoveQueuedToRunning(requeued, "n2", storeEpoch.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 2, running2.Attempts)

		finished, err := store.MoveRunningToFinished(running2, types.JobResultFailure, "boom", storeEpoch.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, types.JobResultFailure, finished.Result)
		assert.Equal(t, "boom", finished.Message)

		archived, err := store.GetFinishedJobs()
		require.NoError(t, err)
		require.Len(t, archived, 1)
		assert.Equal(t, 2, archived[0].Attempts)
	})
}

func TestMoveMissingJobFails(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		q := testQueued("ghost", 10)
		_, err := store.MoveQueuedToRunning(q, "n1", storeEpoch)
		assert.ErrorIs(t, err, ErrNotFound)

		r := q.ToRunningJob("n1", storeEpoch)
		_, err = store.MoveRunningToQueued(r)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.MoveRunningToFinished(r, types.JobResultSuccess, "", storeEpoch)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// TestFinishedHistoryAccumulates verifies that recurring jobs keep one
// archived record per instance instead of overwriting
func TestFinishedHistoryAccumulates(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		for i := 0; i < 3; i++ {
			q := testQueued("recurring", 10)
			require.NoError(t, store.CreateQueuedJob(q))
			running, err := store.MoveQueuedToRunning(q, "n1", storeEpoch)
			require.NoError(t, err)
			_, err = store.MoveRunningToFinished(running, types.JobResultSuccess, "", storeEpoch)
			require.NoError(t, err)
		}

		archived, err := store.GetFinishedJobs()
		require.NoError(t, err)
		assert.Len(t, archived, 3)
	})
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.CreateNode(testNode("n1", "g", storeEpoch, true)))
	require.NoError(t, store.CreateQueuedJob(testQueued("j1", 10)))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	node, err := reopened.GetNode("n1")
	require.NoError(t, err)
	assert.Equal(t, "g", node.Group)

	queued, err := reopened.GetQueuedJobs()
	require.NoError(t, err)
	assert.Len(t, queued, 1)
}

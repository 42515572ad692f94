package autoscaler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/drover/pkg/clock"
	"github.com/cuemby/drover/pkg/storage"
	"github.com/cuemby/drover/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCloud records scale requests and can be made to fail
type fakeCloud struct {
	upCalls   []int
	downCalls [][]string
	err       error
}

func (f *fakeCloud) ScaleUp(ctx context.Context, n int) error {
	if f.err != nil {
		return f.err
	}
	f.upCalls = append(f.upCalls, n)
	return nil
}

func (f *fakeCloud) ScaleDown(ctx context.Context, nodeIDs []string) error {
	if f.err != nil {
		return f.err
	}
	f.downCalls = append(f.downCalls, nodeIDs)
	return nil
}

var scaleEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testScaleConfig() Config {
	return Config{
		Group:              "g",
		MinNodes:           5,
		MaxNodes:           10,
		CoolDownPeriod:     60 * time.Second,
		EvaluationPeriod:   30 * time.Second,
		ScaleUpThreshold:   80,
		ScaleDownThreshold: 40,
		ScaleUpStep:        3,
		ScaleDownStep:      3,
	}
}

func newTestController(cfg Config, active int) (*Controller, *storage.MemoryStore, *fakeCloud, *clock.Fake) {
	store := storage.NewMemoryStore()
	for i := 0; i < active; i++ {
		_ = store.CreateNode(&types.Node{
			ID:       string(rune('a' + i)),
			Group:    "g",
			JoinTime: scaleEpoch.Add(-time.Duration(active-i) * time.Hour),
			Active:   true,
		})
	}

	cloudManager := &fakeCloud{}
	clk := clock.NewFake(scaleEpoch)
	return New(cfg, store, cloudManager, clk, nil), store, cloudManager, clk
}

// TestScaleUpPipeline walks the sustained-demand scale-up sequence:
// first breach opens the window, a second breach past the evaluation
// period scales, and the cool-down swallows further signals
func TestScaleUpPipeline(t *testing.T) {
	c, _, cloudManager, clk := newTestController(testScaleConfig(), 5)
	ctx := context.Background()

	// t=0: util 90%, window opens, no cloud call yet
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	assert.Empty(t, cloudManager.upCalls)

	// t=31s: window elapsed, scale-up fires
	clk.Advance(31 * time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	require.Equal(t, []int{3}, cloudManager.upCalls)
	assert.True(t, c.scaleUpNeededSince.IsZero(), "window clears after acting")

	// t=50s: inside the cool-down, the breach is ignored
	clk.Advance(19 * time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	assert.Equal(t, []int{3}, cloudManager.upCalls)
}

// TestScaleDownDrain verifies the two-phase drain: youngest nodes are
// marked inactive first, then removed once idle
func TestScaleDownDrain(t *testing.T) {
	c, store, cloudManager, clk := newTestController(testScaleConfig(), 6)
	ctx := context.Background()

	// util 20%: window opens
	require.NoError(t, c.ScaleCluster(ctx, 120, 600))
	clk.Advance(31 * time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 120, 600))

	// 6 active, floor 5: exactly the one youngest node drains
	inactive, err := store.GetAllInactiveNodesByGroup("g")
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "f", inactive[0].ID, "the youngest node drains first")

	count, err := store.GetAllActiveNodesCountByGroup("g")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Empty(t, cloudManager.downCalls, "draining does not remove the machine yet")

	// Idle drained nodes are physically removed
	require.NoError(t, c.CleanInactiveNodes(ctx, nil))
	require.Equal(t, [][]string{{"f"}}, cloudManager.downCalls)

	_, err = store.GetNode("f")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCleanInactiveNodesSkipsBusyNodes(t *testing.T) {
	c, store, cloudManager, _ := newTestController(testScaleConfig(), 2)
	ctx := context.Background()

	require.NoError(t, store.UpdateNodeStatus("a", false))
	require.NoError(t, store.UpdateNodeStatus("b", false))

	require.NoError(t, c.CleanInactiveNodes(ctx, map[string]bool{"a": true}))
	require.Len(t, cloudManager.downCalls, 1)
	assert.Equal(t, []string{"b"}, cloudManager.downCalls[0], "a node still running work survives")

	_, err := store.GetNode("a")
	assert.NoError(t, err)
}

// TestScaleHysteresis checks that two calls within the cool-down
// produce at most one cloud invocation
func TestScaleHysteresis(t *testing.T) {
	c, _, cloudManager, clk := newTestController(testScaleConfig(), 5)
	ctx := context.Background()

	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	clk.Advance(31 * time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	clk.Advance(time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	clk.Advance(time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))

	assert.Len(t, cloudManager.upCalls, 1)
}

func TestDeadBandCancelsPendingWindows(t *testing.T) {
	c, _, cloudManager, clk := newTestController(testScaleConfig(), 5)
	ctx := context.Background()

	// Open a scale-up window, then fall back into the dead band
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	clk.Advance(10 * time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 300, 500)) // 60%
	assert.True(t, c.scaleUpNeededSince.IsZero())

	// Another breach must restart the evaluation window from scratch
	clk.Advance(time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	clk.Advance(10 * time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	assert.Empty(t, cloudManager.upCalls, "window restarted, evaluation period not yet served")
}

func TestCrossingIntoOppositeTerritoryCancelsWindow(t *testing.T) {
	c, _, _, clk := newTestController(testScaleConfig(), 5)
	ctx := context.Background()

	require.NoError(t, c.ScaleCluster(ctx, 450, 500)) // opens up-window
	clk.Advance(time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 100, 500)) // 20%: down territory
	assert.True(t, c.scaleUpNeededSince.IsZero())
	assert.False(t, c.scaleDownNeededSince.IsZero())
}

func TestScaleUpRespectsNodeCeiling(t *testing.T) {
	cfg := testScaleConfig()
	cfg.MaxNodes = 6
	c, _, cloudManager, clk := newTestController(cfg, 5)
	ctx := context.Background()

	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	clk.Advance(31 * time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))

	assert.Equal(t, []int{1}, cloudManager.upCalls, "step is clamped to the remaining headroom")
}

func TestScaleUpNoopAtCeilingKeepsWindow(t *testing.T) {
	cfg := testScaleConfig()
	cfg.MaxNodes = 5
	c, _, cloudManager, clk := newTestController(cfg, 5)
	ctx := context.Background()

	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	clk.Advance(31 * time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))

	assert.Empty(t, cloudManager.upCalls)
	assert.False(t, c.scaleUpNeededSince.IsZero(),
		"the ceiling is a resource fact, not a signal change")
}

func TestScaleDownRespectsNodeFloor(t *testing.T) {
	c, store, _, clk := newTestController(testScaleConfig(), 5)
	ctx := context.Background()

	require.NoError(t, c.ScaleCluster(ctx, 100, 500))
	clk.Advance(31 * time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 100, 500))

	count, err := store.GetAllActiveNodesCountByGroup("g")
	require.NoError(t, err)
	assert.Equal(t, 5, count, "already at the floor, nothing drains")
	assert.False(t, c.scaleDownNeededSince.IsZero())
}

// TestCloudFailureKeepsWindow checks the cloud-unavailable policy: the
// pending window survives so the decision re-fires once the provider
// recovers
func TestCloudFailureKeepsWindow(t *testing.T) {
	c, _, cloudManager, clk := newTestController(testScaleConfig(), 5)
	ctx := context.Background()

	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	clk.Advance(31 * time.Second)

	cloudManager.err = errors.New("provider unavailable")
	require.Error(t, c.ScaleCluster(ctx, 450, 500))
	assert.False(t, c.scaleUpNeededSince.IsZero())

	cloudManager.err = nil
	clk.Advance(time.Second)
	require.NoError(t, c.ScaleCluster(ctx, 450, 500))
	assert.Equal(t, []int{3}, cloudManager.upCalls)
}

func TestScaleClusterRequiresCapacity(t *testing.T) {
	c, _, _, _ := newTestController(testScaleConfig(), 0)
	err := c.ScaleCluster(context.Background(), 100, 0)
	require.Error(t, err)
}

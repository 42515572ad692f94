package autoscaler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/drover/pkg/clock"
	"github.com/cuemby/drover/pkg/cloud"
	"github.com/cuemby/drover/pkg/events"
	"github.com/cuemby/drover/pkg/log"
	"github.com/cuemby/drover/pkg/metrics"
	"github.com/cuemby/drover/pkg/storage"
	"github.com/rs/zerolog"
)

// Config holds the hysteresis parameters of the scale controller
type Config struct {
	Group              string
	MinNodes           int
	MaxNodes           int
	CoolDownPeriod     time.Duration
	EvaluationPeriod   time.Duration
	ScaleUpThreshold   int // percent
	ScaleDownThreshold int // percent
	ScaleUpStep        int
	ScaleDownStep      int
}

// Controller is the hysteretic autoscaler. A utilisation breach must
// persist for EvaluationPeriod before any action, and CoolDownPeriod
// must elapse between two scale events. Scale-down is two-phase: the
// youngest nodes are drained first and physically removed only once
// idle, so weight capacity invariants hold throughout.
type Controller struct {
	cfg      Config
	registry storage.NodeRegistry
	cloud    cloud.Manager
	clock    clock.Clock
	broker   *events.Broker
	logger   zerolog.Logger

	// The three timers transition jointly; one mutex guards them all.
	mu                   sync.Mutex
	lastScaleActivity    time.Time
	scaleUpNeededSince   time.Time // zero when no window is open
	scaleDownNeededSince time.Time
}

// New creates a scale controller
func New(cfg Config, registry storage.NodeRegistry, cloudManager cloud.Manager, clk clock.Clock, broker *events.Broker) *Controller {
	return &Controller{
		cfg:      cfg,
		registry: registry,
		cloud:    cloudManager,
		clock:    clk,
		broker:   broker,
		logger:   log.WithComponent("autoscaler"),
	}
}

// ScaleCluster evaluates cluster utilisation and drives the cloud
// manager when a sustained breach calls for it. totalWeight is the
// summed weight of queued and running jobs; totalCapacity is the
// summed weight capacity of active nodes and must be positive.
func (c *Controller) ScaleCluster(ctx context.Context, totalWeight, totalCapacity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if now.Sub(c.lastScaleActivity) < c.cfg.CoolDownPeriod {
		return nil
	}

	if totalCapacity <= 0 {
		return fmt.Errorf("no active capacity in group %s", c.cfg.Group)
	}

	util := float64(totalWeight) / float64(totalCapacity) * 100

	switch {
	case util > float64(c.cfg.ScaleUpThreshold):
		c.scaleDownNeededSince = time.Time{}
		return c.scaleUpIfDue(ctx, now, util)
	case util < float64(c.cfg.ScaleDownThreshold):
		c.scaleUpNeededSince = time.Time{}
		return c.scaleDownIfDue(ctx, now, util)
	default:
		// Inside the dead band both pending windows cancel
		c.scaleUpNeededSince = time.Time{}
		c.scaleDownNeededSince = time.Time{}
		return nil
	}
}

// scaleUpIfDue requests new nodes once demand has persisted for the
// evaluation period. Called with the mutex held.
func (c *Controller) scaleUpIfDue(ctx context.Context, now time.Time, util float64) error {
	if c.scaleUpNeededSince.IsZero() {
		c.scaleUpNeededSince = now
		c.logger.Debug().Float64("util", util).Msg("scale-up window opened")
		return nil
	}
	if now.Sub(c.scaleUpNeededSince) < c.cfg.EvaluationPeriod {
		return nil
	}

	count, err := c.registry.GetAllActiveNodesCountByGroup(c.cfg.Group)
	if err != nil {
		return fmt.Errorf("failed to count active nodes: %w", err)
	}
	if count >= c.cfg.MaxNodes {
		// At the ceiling; the window stays open because demand is still there
		c.logger.Debug().Int("active", count).Msg("scale-up due but node ceiling reached")
		return nil
	}

	step := c.cfg.ScaleUpStep
	if count+step > c.cfg.MaxNodes {
		step = c.cfg.MaxNodes - count
	}

	if err := c.cloud.ScaleUp(ctx, step); err != nil {
		// The pending window survives a cloud failure so the decision
		// re-fires once the provider recovers
		return fmt.Errorf("cloud scale-up failed: %w", err)
	}

	c.lastScaleActivity = now
	c.scaleUpNeededSince = time.Time{}
	metrics.ScaleEventsTotal.WithLabelValues("up").Inc()
	c.logger.Info().Int("nodes", step).Float64("util", util).Msg("scale up requested")
	c.publish(events.EventScaleUp, "cluster scale-up requested", map[string]string{
		"group": c.cfg.Group,
		"nodes": fmt.Sprintf("%d", step),
	})
	return nil
}

// scaleDownIfDue drains the youngest nodes once low utilisation has
// persisted for the evaluation period. Draining only marks nodes
// inactive; CleanInactiveNodes removes them when they go idle.
// Called with the mutex held.
func (c *Controller) scaleDownIfDue(ctx context.Context, now time.Time, util float64) error {
	if c.scaleDownNeededSince.IsZero() {
		c.scaleDownNeededSince = now
		c.logger.Debug().Float64("util", util).Msg("scale-down window opened")
		return nil
	}
	if now.Sub(c.scaleDownNeededSince) < c.cfg.EvaluationPeriod {
		return nil
	}

	count, err := c.registry.GetAllActiveNodesCountByGroup(c.cfg.Group)
	if err != nil {
		return fmt.Errorf("failed to count active nodes: %w", err)
	}
	if count <= c.cfg.MinNodes {
		c.logger.Debug().Int("active", count).Msg("scale-down due but node floor reached")
		return nil
	}

	step := c.cfg.ScaleDownStep
	if count-step < c.cfg.MinNodes {
		step = count - c.cfg.MinNodes
	}

	// Youngest first: they are least likely to hold long-running work,
	// and the oldest node, the leader, is never drained this way
	youngest, err := c.registry.GetYoungestActiveNodesByGroup(c.cfg.Group, step)
	if err != nil {
		return fmt.Errorf("failed to pick drain candidates: %w", err)
	}

	for _, node := range youngest {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.registry.UpdateNodeStatus(node.ID, false); err != nil {
			return fmt.Errorf("failed to drain node %s: %w", node.ID, err)
		}
		c.logger.Info().Str("node_id", node.ID).Msg("node draining")
		c.publish(events.EventNodeDrained, "node marked for drain", map[string]string{
			"node_id": node.ID,
			"group":   c.cfg.Group,
		})
	}

	c.lastScaleActivity = now
	c.scaleDownNeededSince = time.Time{}
	metrics.ScaleEventsTotal.WithLabelValues("down").Inc()
	c.logger.Info().Int("nodes", len(youngest)).Float64("util", util).Msg("scale down requested")
	c.publish(events.EventScaleDown, "cluster scale-down requested", map[string]string{
		"group": c.cfg.Group,
		"nodes": fmt.Sprintf("%d", len(youngest)),
	})
	return nil
}

// CleanInactiveNodes physically removes drained nodes that hold no
// running jobs anymore. busyNodes is the set of node ids still
// executing a job.
func (c *Controller) CleanInactiveNodes(ctx context.Context, busyNodes map[string]bool) error {
	inactive, err := c.registry.GetAllInactiveNodesByGroup(c.cfg.Group)
	if err != nil {
		return fmt.Errorf("failed to list inactive nodes: %w", err)
	}

	var idle []string
	for _, node := range inactive {
		if !busyNodes[node.ID] {
			idle = append(idle, node.ID)
		}
	}
	if len(idle) == 0 {
		return nil
	}

	if err := c.cloud.ScaleDown(ctx, idle); err != nil {
		// Nodes stay registered and will be retried next tick
		return fmt.Errorf("cloud scale-down failed: %w", err)
	}

	for _, nodeID := range idle {
		if err := c.registry.DeleteNode(nodeID); err != nil {
			return fmt.Errorf("failed to deregister node %s: %w", nodeID, err)
		}
		c.logger.Info().Str("node_id", nodeID).Msg("node removed")
		c.publish(events.EventNodeRemoved, "idle drained node removed", map[string]string{
			"node_id": nodeID,
			"group":   c.cfg.Group,
		})
	}

	return nil
}

func (c *Controller) publish(eventType events.EventType, message string, metadata map[string]string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(events.New(eventType, message, metadata))
}

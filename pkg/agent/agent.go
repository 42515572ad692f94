package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/drover/pkg/autoscaler"
	"github.com/cuemby/drover/pkg/clock"
	"github.com/cuemby/drover/pkg/cloud"
	"github.com/cuemby/drover/pkg/config"
	"github.com/cuemby/drover/pkg/events"
	"github.com/cuemby/drover/pkg/executor"
	"github.com/cuemby/drover/pkg/leader"
	"github.com/cuemby/drover/pkg/log"
	"github.com/cuemby/drover/pkg/metrics"
	"github.com/cuemby/drover/pkg/schedule"
	"github.com/cuemby/drover/pkg/storage"
	"github.com/cuemby/drover/pkg/types"
	"github.com/rs/zerolog"
)

// baseTick is the resolution of the duty loop; each duty runs at its
// own configured period on top of it
const baseTick = time.Second

// Agent supervises one node: it registers the node in the cluster,
// runs every periodic duty on a single serial loop, and hosts the
// executor and the observability endpoints. Duties sharing the loop
// means LeaderState is only ever written from one goroutine.
type Agent struct {
	cfg       *config.Config
	store     storage.Store
	leader    *leader.Leader
	scaler    *autoscaler.Controller
	executor  *executor.Executor
	broker    *events.Broker
	collector *metrics.Collector
	clock     clock.Clock
	logger    zerolog.Logger

	httpServer *http.Server
	cancel     context.CancelFunc
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// New wires an agent from its collaborators
func New(cfg *config.Config, store storage.Store, source schedule.Source, cloudManager cloud.Manager, clk clock.Clock) *Agent {
	broker := events.NewBroker()

	leaderCfg := leader.Config{
		NodeID:            cfg.Node.ID,
		Group:             cfg.Node.Group,
		YoungestLeaderAge: cfg.Leader.YoungestLeaderAge.Std(),
		MaxWeightPerNode:  cfg.Leader.MaxWeightPerNode,
		MinActiveNodes:    cfg.Leader.MinActiveNodes,
		LeaderAlsoWorker:  cfg.Leader.LeaderAlsoWorker,
	}

	scaleCfg := autoscaler.Config{
		Group:              cfg.Node.Group,
		MinNodes:           cfg.Scale.MinNodes,
		MaxNodes:           cfg.Scale.MaxNodes,
		CoolDownPeriod:     cfg.Scale.CoolDownPeriod.Std(),
		EvaluationPeriod:   cfg.Scale.EvaluationPeriod.Std(),
		ScaleUpThreshold:   cfg.Scale.ScaleUpThreshold,
		ScaleDownThreshold: cfg.Scale.ScaleDownThreshold,
		ScaleUpStep:        cfg.Scale.ScaleUpStep,
		ScaleDownStep:      cfg.Scale.ScaleDownStep,
	}

	return &Agent{
		cfg:       cfg,
		store:     store,
		leader:    leader.New(leaderCfg, store, store, source, clk, broker),
		scaler:    autoscaler.New(scaleCfg, store, cloudManager, clk, broker),
		executor:  executor.New(cfg.Node.ID, store, clk, broker, 5*time.Second),
		broker:    broker,
		collector: metrics.NewCollector(store),
		clock:     clk,
		logger:    log.WithComponent("agent"),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Executor exposes the job executor so callers can register handlers
func (a *Agent) Executor() *executor.Executor {
	return a.executor
}

// Broker exposes the cluster event broker
func (a *Agent) Broker() *events.Broker {
	return a.broker
}

// Start registers the node and launches all loops
func (a *Agent) Start() error {
	if err := a.registerNode(); err != nil {
		return err
	}

	a.broker.Start()
	a.collector.Start()
	a.executor.Start()

	if a.cfg.MetricsAddr != "" {
		a.startHTTP()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.dutyLoop(ctx)

	a.logger.Info().Str("node_id", a.cfg.Node.ID).Str("group", a.cfg.Node.Group).Msg("agent started")
	return nil
}

// Stop shuts the agent down, leaving persisted state consistent
func (a *Agent) Stop() {
	close(a.stopCh)
	if a.cancel != nil {
		a.cancel()
	}
	<-a.doneCh

	a.executor.Stop()
	a.collector.Stop()
	a.broker.Stop()

	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.httpServer.Shutdown(shutdownCtx)
	}

	a.logger.Info().Msg("agent stopped")
}

// registerNode creates this node's registry record on first start. A
// restarted node keeps its original join time so its election age is
// preserved.
func (a *Agent) registerNode() error {
	if _, err := a.store.GetNode(a.cfg.Node.ID); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to look up node record: %w", err)
	}

	node := &types.Node{
		ID:       a.cfg.Node.ID,
		Group:    a.cfg.Node.Group,
		JoinTime: a.clock.Now(),
		Active:   true,
		Version:  a.cfg.Node.Version,
	}
	if err := a.store.CreateNode(node); err != nil {
		return fmt.Errorf("failed to register node: %w", err)
	}

	a.logger.Info().Str("node_id", node.ID).Str("group", node.Group).Msg("node registered")
	return nil
}

func (a *Agent) startHTTP() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

	a.httpServer = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// dutyLoop runs every periodic duty serially. Leader-only duties
// no-op on followers inside the leader package, so the loop itself
// stays identical on every node.
func (a *Agent) dutyLoop(ctx context.Context) {
	defer close(a.doneCh)

	ticker := time.NewTicker(baseTick)
	defer ticker.Stop()

	last := make(map[string]time.Time)
	due := func(name string, period time.Duration) bool {
		if time.Since(last[name]) < period {
			return false
		}
		last[name] = time.Now()
		return true
	}

	for {
		select {
		case <-ticker.C:
			if due("election", a.cfg.Leader.ElectionPeriod.Std()) {
				if a.runDuty(ctx, "election", a.leader.ElectClusterLeader) {
					return
				}
				a.observeLeadership()
			}
			if due("refresh", a.cfg.Leader.RefreshPeriod.Std()) {
				if a.runDuty(ctx, "refresh", func(ctx context.Context) error {
					return a.leader.RefreshJobsSchedule(ctx, false)
				}) {
					return
				}
			}
			if due("queue", a.cfg.Leader.QueuePeriod.Std()) {
				if a.runDuty(ctx, "queue", a.leader.QueueScheduledJobs) {
					return
				}
			}
			if due("assign", a.cfg.Leader.AssignPeriod.Std()) {
				if a.runDuty(ctx, "assign", a.leader.AssignQueuedJobs) {
					return
				}
			}
			if due("recover", a.cfg.Leader.RecoverPeriod.Std()) {
				if a.runDuty(ctx, "recover", a.leader.CleanDeadNodesJobs) {
					return
				}
			}
			if a.cfg.Scale.Enabled && due("scale", a.cfg.Scale.ScalePeriod.Std()) {
				if a.runDuty(ctx, "scale", a.scaleDuty) {
					return
				}
				if a.runDuty(ctx, "clean_inactive", a.cleanInactiveDuty) {
					return
				}
			}
		case <-a.stopCh:
			return
		}
	}
}

// runDuty executes one duty with timing and error accounting. The
// return value reports whether the duty loop must stop: an invariant
// violation means this node must not keep mutating cluster state.
func (a *Agent) runDuty(ctx context.Context, name string, duty func(context.Context) error) bool {
	timer := metrics.NewTimer()
	err := duty(ctx)
	timer.ObserveDuration(metrics.DutyDuration.WithLabelValues(name))

	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	metrics.DutyErrorsTotal.WithLabelValues(name).Inc()
	if errors.Is(err, leader.ErrInvariantViolation) {
		a.logger.Error().Err(err).Str("duty", name).
			Msg("invariant violation detected, stopping leader duties")
		metrics.UpdateComponent("duties", false, err.Error())
		return true
	}

	// Transient store/cloud failures surface here; the next tick retries
	a.logger.Error().Err(err).Str("duty", name).Msg("duty failed")
	return false
}

func (a *Agent) observeLeadership() {
	if a.leader.IsLeader() {
		metrics.IsLeader.Set(1)
	} else {
		metrics.IsLeader.Set(0)
	}
}

// scaleDuty computes cluster utilisation inputs and runs the scale
// controller. Followers skip it; the scale loop is a leader duty.
func (a *Agent) scaleDuty(ctx context.Context) error {
	if !a.leader.IsLeader() {
		return nil
	}

	queued, err := a.store.GetQueuedJobs()
	if err != nil {
		return fmt.Errorf("failed to load queued jobs: %w", err)
	}
	running, err := a.store.GetRunningJobs()
	if err != nil {
		return fmt.Errorf("failed to load running jobs: %w", err)
	}
	activeCount, err := a.store.GetAllActiveNodesCountByGroup(a.cfg.Node.Group)
	if err != nil {
		return fmt.Errorf("failed to count active nodes: %w", err)
	}
	if activeCount == 0 {
		return nil
	}

	totalWeight := 0
	for _, job := range queued {
		totalWeight += job.Weight
	}
	for _, job := range running {
		totalWeight += job.Weight
	}
	totalCapacity := activeCount * a.cfg.Leader.MaxWeightPerNode

	metrics.ClusterUtilization.Set(float64(totalWeight) / float64(totalCapacity) * 100)
	return a.scaler.ScaleCluster(ctx, totalWeight, totalCapacity)
}

// cleanInactiveDuty removes drained nodes that no longer run any job
func (a *Agent) cleanInactiveDuty(ctx context.Context) error {
	if !a.leader.IsLeader() {
		return nil
	}

	running, err := a.store.GetRunningJobs()
	if err != nil {
		return fmt.Errorf("failed to load running jobs: %w", err)
	}

	busy := make(map[string]bool)
	for _, job := range running {
		busy[job.AssignedNodeID] = true
	}

	return a.scaler.CleanInactiveNodes(ctx, busy)
}

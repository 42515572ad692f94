package leader

import (
	"fmt"
	"time"

	"github.com/cuemby/drover/pkg/clock"
	"github.com/cuemby/drover/pkg/events"
	"github.com/cuemby/drover/pkg/log"
	"github.com/cuemby/drover/pkg/schedule"
	"github.com/cuemby/drover/pkg/storage"
	"github.com/rs/zerolog"
)

// Config holds the leader duty configuration for one node
type Config struct {
	NodeID            string
	Group             string
	YoungestLeaderAge time.Duration
	MaxWeightPerNode  int
	MinActiveNodes    int
	LeaderAlsoWorker  bool
}

// Leader runs the leader duties of one node: election, schedule
// refresh, queueing, assignment, and dead-node recovery. Every duty is
// a no-op on followers except election and the explicit
// ignore-leader schedule refresh.
type Leader struct {
	cfg      Config
	registry storage.NodeRegistry
	jobs     storage.JobStore
	source   schedule.Source
	state    *State
	clock    clock.Clock
	broker   *events.Broker
	logger   zerolog.Logger
}

// New creates the leader duty runner for this node
func New(cfg Config, registry storage.NodeRegistry, jobs storage.JobStore, source schedule.Source, clk clock.Clock, broker *events.Broker) *Leader {
	return &Leader{
		cfg:      cfg,
		registry: registry,
		jobs:     jobs,
		source:   source,
		state:    NewState(),
		clock:    clk,
		broker:   broker,
		logger:   log.WithComponent("leader"),
	}
}

// State exposes the node's leader state mirror
func (l *Leader) State() *State {
	return l.state
}

// IsLeader reports whether this node currently leads its group
func (l *Leader) IsLeader() bool {
	return l.state.IsLeader()
}

func (l *Leader) publish(eventType events.EventType, message string, metadata map[string]string) {
	if l.broker == nil {
		return
	}
	l.broker.Publish(events.New(eventType, message, metadata))
}

// syncJobMirror refreshes the queued/running mirrors from the store.
// Duties call this on entry so mirror reads reflect transitions made
// outside the leader, such as executors finishing jobs.
func (l *Leader) syncJobMirror() error {
	queued, err := l.jobs.GetQueuedJobs()
	if err != nil {
		return fmt.Errorf("failed to load queued jobs: %w", err)
	}
	running, err := l.jobs.GetRunningJobs()
	if err != nil {
		return fmt.Errorf("failed to load running jobs: %w", err)
	}
	return l.state.ReplaceJobs(queued, running)
}

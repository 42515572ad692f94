package storage

import (
	"errors"
	"time"

	"github.com/cuemby/drover/pkg/types"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrLockHeld is returned when a queued or running job already holds the lock
	ErrLockHeld = errors.New("job lock already held")
)

// NodeRegistry is the durable record of every node in the cluster
type NodeRegistry interface {
	CreateNode(node *types.Node) error
	GetNode(id string) (*types.Node, error)
	GetAllNodes() ([]*types.Node, error)
	GetYoungestActiveNodesByGroup(group string, n int) ([]*types.Node, error)
	GetAllActiveNodesCountByGroup(group string) (int, error)
	GetAllInactiveNodesByGroup(group string) ([]*types.Node, error)
	UpdateNodeStatus(nodeID string, active bool) error
	DeleteNode(id string) error
}

// JobStore is the durable record of queued, running, and finished jobs.
// The lock value is the primary key for the queued and running sets, so a
// lock is held by at most one of them at a time. All Move operations are
// atomic transitions.
type JobStore interface {
	CreateQueuedJob(q *types.QueuedJob) error
	GetQueuedJobs() ([]*types.QueuedJob, error)
	GetRunningJobs() ([]*types.RunningJob, error)
	GetRunningJobsByNode(nodeID string) ([]*types.RunningJob, error)
	MoveQueuedToRunning(q *types.QueuedJob, nodeID string, now time.Time) (*types.RunningJob, error)
	MoveRunningToQueued(r *types.RunningJob) (*types.QueuedJob, error)
	MoveRunningToFinished(r *types.RunningJob, result types.JobResult, message string, now time.Time) (*types.FinishedJob, error)
	GetFinishedJobs() ([]*types.FinishedJob, error)
}

// Store combines both registries behind a single backing database
type Store interface {
	NodeRegistry
	JobStore

	Close() error
}

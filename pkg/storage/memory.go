package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/drover/pkg/types"
	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory. It mirrors BoltStore
// semantics, including lock-keyed queued/running sets, and is used by
// tests and single-node development setups.
type MemoryStore struct {
	mu       sync.RWMutex
	nodes    map[string]*types.Node
	queued   map[string]*types.QueuedJob  // keyed by lock
	running  map[string]*types.RunningJob // keyed by lock
	finished map[string]*types.FinishedJob
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[string]*types.Node),
		queued:   make(map[string]*types.QueuedJob),
		running:  make(map[string]*types.RunningJob),
		finished: make(map[string]*types.FinishedJob),
	}
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) CreateNode(node *types.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *node
	s.nodes[node.ID] = &copied
	return nil
}

func (s *MemoryStore) GetNode(id string) (*types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	copied := *node
	return &copied, nil
}

func (s *MemoryStore) GetAllNodes() ([]*types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*types.Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		copied := *node
		nodes = append(nodes, &copied)
	}
	return nodes, nil
}

func (s *MemoryStore) GetYoungestActiveNodesByGroup(group string, n int) ([]*types.Node, error) {
	nodes, err := s.GetAllNodes()
	if err != nil {
		return nil, err
	}

	var active []*types.Node
	for _, node := range nodes {
		if node.Group == group && node.Active {
			active = append(active, node)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if !active[i].JoinTime.Equal(active[j].JoinTime) {
			return active[i].JoinTime.After(active[j].JoinTime)
		}
		return active[i].ID < active[j].ID
	})

	if n < len(active) {
		active = active[:n]
	}
	return active, nil
}

func (s *MemoryStore) GetAllActiveNodesCountByGroup(group string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, node := range s.nodes {
		if node.Group == group && node.Active {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) GetAllInactiveNodesByGroup(group string) ([]*types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var inactive []*types.Node
	for _, node := range s.nodes {
		if node.Group == group && !node.Active {
			copied := *node
			inactive = append(inactive, &copied)
		}
	}
	return inactive, nil
}

func (s *MemoryStore) UpdateNodeStatus(nodeID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[nodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
	}
	node.Active = active
	return nil
}

func (s *MemoryStore) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.nodes, id)
	return nil
}

func (s *MemoryStore) CreateQueuedJob(q *types.QueuedJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.queued[q.Lock]; held {
		return fmt.Errorf("lock %s: %w", q.Lock, ErrLockHeld)
	}
	if _, held := s.running[q.Lock]; held {
		return fmt.Errorf("lock %s: %w", q.Lock, ErrLockHeld)
	}

	copied := *q
	s.queued[q.Lock] = &copied
	return nil
}

func (s *MemoryStore) GetQueuedJobs() ([]*types.QueuedJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*types.QueuedJob, 0, len(s.queued))
	for _, job := range s.queued {
		copied := *job
		jobs = append(jobs, &copied)
	}
	return jobs, nil
}

func (s *MemoryStore) GetRunningJobs() ([]*types.RunningJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*types.RunningJob, 0, len(s.running))
	for _, job := range s.running {
		copied := *job
		jobs = append(jobs, &copied)
	}
	return jobs, nil
}

func (s *MemoryStore) GetRunningJobsByNode(nodeID string) ([]*types.RunningJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var assigned []*types.RunningJob
	for _, job := range s.running {
		if job.AssignedNodeID == nodeID {
			copied := *job
			assigned = append(assigned, &copied)
		}
	}
	return assigned, nil
}

func (s *MemoryStore) MoveQueuedToRunning(q *types.QueuedJob, nodeID string, now time.Time) (*types.RunningJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queued[q.Lock]; !ok {
		return nil, fmt.Errorf("queued job %s: %w", q.Lock, ErrNotFound)
	}

	running := q.ToRunningJob(nodeID, now)
	delete(s.queued, q.Lock)
	copied := *running
	s.running[q.Lock] = &copied
	return running, nil
}

func (s *MemoryStore) MoveRunningToQueued(r *types.RunningJob) (*types.QueuedJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.running[r.Lock]; !ok {
		return nil, fmt.Errorf("running job %s: %w", r.Lock, ErrNotFound)
	}

	queued := r.ToQueuedJob()
	delete(s.running, r.Lock)
	copied := *queued
	s.queued[r.Lock] = &copied
	return queued, nil
}

func (s *MemoryStore) MoveRunningToFinished(r *types.RunningJob, result types.JobResult, message string, now time.Time) (*types.FinishedJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.running[r.Lock]; !ok {
		return nil, fmt.Errorf("running job %s: %w", r.Lock, ErrNotFound)
	}

	finished := r.ToFinishedJob(result, message, now)
	delete(s.running, r.Lock)
	copied := *finished
	s.finished[uuid.NewString()] = &copied
	return finished, nil
}

func (s *MemoryStore) GetFinishedJobs() ([]*types.FinishedJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*types.FinishedJob, 0, len(s.finished))
	for _, job := range s.finished {
		copied := *job
		jobs = append(jobs, &copied)
	}
	return jobs, nil
}

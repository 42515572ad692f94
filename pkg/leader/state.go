package leader

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/drover/pkg/types"
)

// ErrInvariantViolation reports cluster state the leader must not touch,
// such as a lock present in both the queued and running sets. The duty
// that detects it stops; re-election follows an operator restart.
var ErrInvariantViolation = errors.New("cluster state invariant violated")

// State is the per-node in-memory mirror of the slice of cluster state
// the leader needs: the declared schedule, the queued and running job
// sets, and the leader flag. The store stays authoritative; duties
// re-sync the mirror from it before acting. Followers carry an empty
// mirror.
//
// All transitions happen under one mutex, so leadership changes are
// observable as a single step.
type State struct {
	mu       sync.RWMutex
	isLeader bool
	schedule []*types.ScheduledJob
	queued   map[string]*types.QueuedJob  // keyed by lock
	running  map[string]*types.RunningJob // keyed by lock
}

// NewState creates an empty follower state
func NewState() *State {
	return &State{
		queued:  make(map[string]*types.QueuedJob),
		running: make(map[string]*types.RunningJob),
	}
}

// IsLeader reports whether this node currently holds group leadership
func (s *State) IsLeader() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLeader
}

// BecomeLeader sets the leader flag and installs the freshly loaded
// mirrors in a single step
func (s *State) BecomeLeader(schedule []*types.ScheduledJob, queued []*types.QueuedJob, running []*types.RunningJob) error {
	queuedByLock, runningByLock, err := indexJobs(queued, running)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLeader = true
	s.schedule = schedule
	s.queued = queuedByLock
	s.running = runningByLock
	return nil
}

// StepDown clears the leader flag and the mirrors in a single step
func (s *State) StepDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLeader = false
	s.schedule = nil
	s.queued = make(map[string]*types.QueuedJob)
	s.running = make(map[string]*types.RunningJob)
}

// ReplaceSchedule atomically swaps the schedule mirror
func (s *State) ReplaceSchedule(schedule []*types.ScheduledJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = schedule
}

// ReplaceJobs atomically swaps the queued and running mirrors with a
// fresh store snapshot
func (s *State) ReplaceJobs(queued []*types.QueuedJob, running []*types.RunningJob) error {
	queuedByLock, runningByLock, err := indexJobs(queued, running)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = queuedByLock
	s.running = runningByLock
	return nil
}

// ScheduleSnapshot returns the current schedule mirror
func (s *State) ScheduleSnapshot() []*types.ScheduledJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make([]*types.ScheduledJob, len(s.schedule))
	copy(snapshot, s.schedule)
	return snapshot
}

// QueuedSnapshot returns the queued jobs in the mirror
func (s *State) QueuedSnapshot() []*types.QueuedJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*types.QueuedJob, 0, len(s.queued))
	for _, job := range s.queued {
		jobs = append(jobs, job)
	}
	return jobs
}

// RunningSnapshot returns the running jobs in the mirror
func (s *State) RunningSnapshot() []*types.RunningJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*types.RunningJob, 0, len(s.running))
	for _, job := range s.running {
		jobs = append(jobs, job)
	}
	return jobs
}

// LockHeld reports whether a queued or running instance holds the lock
func (s *State) LockHeld(lock string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, queued := s.queued[lock]
	_, running := s.running[lock]
	return queued || running
}

// InsertQueued mirrors a freshly persisted queued job
func (s *State) InsertQueued(q *types.QueuedJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[q.Lock] = q
}

// MarkRunning mirrors a queued-to-running transition
func (s *State) MarkRunning(r *types.RunningJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queued, r.Lock)
	s.running[r.Lock] = r
}

// MarkRequeued mirrors a running-to-queued transition
func (s *State) MarkRequeued(q *types.QueuedJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, q.Lock)
	s.queued[q.Lock] = q
}

// RemoveRunning mirrors a running-to-finished transition
func (s *State) RemoveRunning(lock string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, lock)
}

func indexJobs(queued []*types.QueuedJob, running []*types.RunningJob) (map[string]*types.QueuedJob, map[string]*types.RunningJob, error) {
	queuedByLock := make(map[string]*types.QueuedJob, len(queued))
	for _, job := range queued {
		queuedByLock[job.Lock] = job
	}

	runningByLock := make(map[string]*types.RunningJob, len(running))
	for _, job := range running {
		if _, held := queuedByLock[job.Lock]; held {
			return nil, nil, fmt.Errorf("lock %s is both queued and running: %w", job.Lock, ErrInvariantViolation)
		}
		runningByLock[job.Lock] = job
	}

	return queuedByLock, runningByLock, nil
}

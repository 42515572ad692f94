package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/drover/pkg/types"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketNodes    = []byte("nodes")
	bucketQueued   = []byte("queued_jobs")
	bucketRunning  = []byte("running_jobs")
	bucketFinished = []byte("finished_jobs")
)

// BoltStore implements Store using BoltDB. Queued and running jobs are
// keyed by their lock, which makes the at-most-one-instance-per-lock
// invariant a property of the storage layout rather than a convention.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "drover.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketNodes,
			bucketQueued,
			bucketRunning,
			bucketFinished,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Node operations

func (s *BoltStore) CreateNode(node *types.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		return b.Put([]byte(node.ID), data)
	})
}

func (s *BoltStore) GetNode(id string) (*types.Node, error) {
	var node types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("node %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &node)
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *BoltStore) GetAllNodes() ([]*types.Node, error) {
	var nodes []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		return b.ForEach(func(k, v []byte) error {
			var node types.Node
			if err := json.Unmarshal(v, &node); err != nil {
				return err
			}
			nodes = append(nodes, &node)
			return nil
		})
	})
	return nodes, err
}

func (s *BoltStore) GetYoungestActiveNodesByGroup(group string, n int) ([]*types.Node, error) {
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

	// Youngest first; node id breaks join-time ties deterministically
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

func (s *BoltStore) GetAllActiveNodesCountByGroup(group string) (int, error) {
	nodes, err := s.GetAllNodes()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, node := range nodes {
		if node.Group == group && node.Active {
			count++
		}
	}
	return count, nil
}

func (s *BoltStore) GetAllInactiveNodesByGroup(group string) ([]*types.Node, error) {
	nodes, err := s.GetAllNodes()
	if err != nil {
		return nil, err
	}

	var inactive []*types.Node
	for _, node := range nodes {
		if node.Group == group && !node.Active {
			inactive = append(inactive, node)
		}
	}
	return inactive, nil
}

func (s *BoltStore) UpdateNodeStatus(nodeID string, active bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data := b.Get([]byte(nodeID))
		if data == nil {
			return fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
		}

		var node types.Node
		if err := json.Unmarshal(data, &node); err != nil {
			return err
		}
		node.Active = active

		updated, err := json.Marshal(&node)
		if err != nil {
			return err
		}
		return b.Put([]byte(nodeID), updated)
	})
}

func (s *BoltStore) DeleteNode(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		return b.Delete([]byte(id))
	})
}

// Job operations

func (s *BoltStore) CreateQueuedJob(q *types.QueuedJob) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(q.Lock)
		if tx.Bucket(bucketQueued).Get(key) != nil || tx.Bucket(bucketRunning).Get(key) != nil {
			return fmt.Errorf("lock %s: %w", q.Lock, ErrLockHeld)
		}

		data, err := json.Marshal(q)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketQueued).Put(key, data)
	})
}

func (s *BoltStore) GetQueuedJobs() ([]*types.QueuedJob, error) {
	var jobs []*types.QueuedJob
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueued)
		return b.ForEach(func(k, v []byte) error {
			var job types.QueuedJob
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	return jobs, err
}

func (s *BoltStore) GetRunningJobs() ([]*types.RunningJob, error) {
	var jobs []*types.RunningJob
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRunning)
		return b.ForEach(func(k, v []byte) error {
			var job types.RunningJob
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	return jobs, err
}

func (s *BoltStore) GetRunningJobsByNode(nodeID string) ([]*types.RunningJob, error) {
	jobs, err := s.GetRunningJobs()
	if err != nil {
		return nil, err
	}

	var assigned []*types.RunningJob
	for _, job := range jobs {
		if job.AssignedNodeID == nodeID {
			assigned = append(assigned, job)
		}
	}
	return assigned, nil
}

func (s *BoltStore) MoveQueuedToRunning(q *types.QueuedJob, nodeID string, now time.Time) (*types.RunningJob, error) {
	running := q.ToRunningJob(nodeID, now)

	err := s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(q.Lock)
		if tx.Bucket(bucketQueued).Get(key) == nil {
			return fmt.Errorf("queued job %s: %w", q.Lock, ErrNotFound)
		}

		data, err := json.Marshal(running)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketQueued).Delete(key); err != nil {
			return err
		}
		return tx.Bucket(bucketRunning).Put(key, data)
	})
	if err != nil {
		return nil, err
	}
	return running, nil
}

func (s *BoltStore) MoveRunningToQueued(r *types.RunningJob) (*types.QueuedJob, error) {
	queued := r.ToQueuedJob()

	err := s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(r.Lock)
		if tx.Bucket(bucketRunning).Get(key) == nil {
			return fmt.Errorf("running job %s: %w", r.Lock, ErrNotFound)
		}

		data, err := json.Marshal(queued)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketRunning).Delete(key); err != nil {
			return err
		}
		return tx.Bucket(bucketQueued).Put(key, data)
	})
	if err != nil {
		return nil, err
	}
	return queued, nil
}

func (s *BoltStore) MoveRunningToFinished(r *types.RunningJob, result types.JobResult, message string, now time.Time) (*types.FinishedJob, error) {
	finished := r.ToFinishedJob(result, message, now)

	err := s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(r.Lock)
		if tx.Bucket(bucketRunning).Get(key) == nil {
			return fmt.Errorf("running job %s: %w", r.Lock, ErrNotFound)
		}

		data, err := json.Marshal(finished)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketRunning).Delete(key); err != nil {
			return err
		}
		// Finished jobs accumulate history, so each instance gets its own key
		return tx.Bucket(bucketFinished).Put([]byte(uuid.NewString()), data)
	})
	if err != nil {
		return nil, err
	}
	return finished, nil
}

func (s *BoltStore) GetFinishedJobs() ([]*types.FinishedJob, error) {
	var jobs []*types.FinishedJob
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFinished)
		return b.ForEach(func(k, v []byte) error {
			var job types.FinishedJob
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	return jobs, err
}

package types

import (
	"time"
)

// Node represents a worker node registered in the cluster
type Node struct {
	ID       string
	Group    string
	JoinTime time.Time
	Active   bool   // false means the node is being drained
	Version  string // opaque ordered string, compared lexicographically
}

// Age returns how long the node has been part of the cluster
func (n *Node) Age(now time.Time) time.Duration {
	return now.Sub(n.JoinTime)
}

// JobSchedule describes when a scheduled job fires
type JobSchedule struct {
	Cron      string        // standard 5-field cron expression
	MaxJobAge time.Duration // firings older than this are skipped, not backfilled
}

// ScheduledJob is a declared job definition, the eternal root of the
// job lifecycle. Instances derived from it flow queued -> running -> finished.
type ScheduledJob struct {
	JobID       string
	Lock        string // serialization key; at most one queued or running instance per lock
	JobType     string
	Weight      int // positive load score, summed per node against MaxWeightPerNode
	Data        map[string]string
	Schedule    JobSchedule
	MaxAttempts int
	Priority    int    // lower value = higher priority
	MinVersion  string // minimum node version eligible to run this job; empty = any
}

// ToQueuedJob derives a fresh queued instance at the given time
func (s *ScheduledJob) ToQueuedJob(now time.Time) *QueuedJob {
	return &QueuedJob{
		JobID:       s.JobID,
		Lock:        s.Lock,
		JobType:     s.JobType,
		Weight:      s.Weight,
		Data:        s.Data,
		MaxAttempts: s.MaxAttempts,
		Priority:    s.Priority,
		MinVersion:  s.MinVersion,
		QueuedTime:  now,
		Attempts:    0,
	}
}

// QueuedJob is a job instance waiting for assignment to a node
type QueuedJob struct {
	JobID       string
	Lock        string
	JobType     string
	Weight      int
	Data        map[string]string
	MaxAttempts int
	Priority    int
	MinVersion  string
	QueuedTime  time.Time
	Attempts    int
}

// ToRunningJob transitions the queued instance onto a node
func (q *QueuedJob) ToRunningJob(nodeID string, now time.Time) *RunningJob {
	return &RunningJob{
		JobID:          q.JobID,
		Lock:           q.Lock,
		JobType:        q.JobType,
		Weight:         q.Weight,
		Data:           q.Data,
		MaxAttempts:    q.MaxAttempts,
		Priority:       q.Priority,
		MinVersion:     q.MinVersion,
		QueuedTime:     q.QueuedTime,
		Attempts:       q.Attempts + 1,
		AssignedNodeID: nodeID,
		StartTime:      now,
	}
}

// RunningJob is a job instance assigned to a node
type RunningJob struct {
	JobID          string
	Lock           string
	JobType        string
	Weight         int
	Data           map[string]string
	MaxAttempts    int
	Priority       int
	MinVersion     string
	QueuedTime     time.Time
	Attempts       int // >= 1 once running
	AssignedNodeID string
	StartTime      time.Time
}

// ToQueuedJob requeues the running instance, retaining its attempt count
func (r *RunningJob) ToQueuedJob() *QueuedJob {
	return &QueuedJob{
		JobID:       r.JobID,
		Lock:        r.Lock,
		JobType:     r.JobType,
		Weight:      r.Weight,
		Data:        r.Data,
		MaxAttempts: r.MaxAttempts,
		Priority:    r.Priority,
		MinVersion:  r.MinVersion,
		QueuedTime:  r.QueuedTime,
		Attempts:    r.Attempts,
	}
}

// ToFinishedJob terminalizes the running instance
func (r *RunningJob) ToFinishedJob(result JobResult, message string, now time.Time) *FinishedJob {
	return &FinishedJob{
		JobID:          r.JobID,
		Lock:           r.Lock,
		JobType:        r.JobType,
		Weight:         r.Weight,
		Data:           r.Data,
		Attempts:       r.Attempts,
		AssignedNodeID: r.AssignedNodeID,
		QueuedTime:     r.QueuedTime,
		StartTime:      r.StartTime,
		FinishTime:     now,
		Result:         result,
		Message:        message,
	}
}

// JobResult is the terminal outcome of a job instance
type JobResult string

const (
	JobResultSuccess JobResult = "success"
	JobResultFailure JobResult = "failure"
)

// FinishedJob is an archived, terminal job instance
type FinishedJob struct {
	JobID          string
	Lock           string
	JobType        string
	Weight         int
	Data           map[string]string
	Attempts       int
	AssignedNodeID string
	QueuedTime     time.Time
	StartTime      time.Time
	FinishTime     time.Time
	Result         JobResult
	Message        string
}

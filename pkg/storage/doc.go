/*
Package storage provides persistent cluster state storage for Drover.

Two contracts live here. NodeRegistry records every node's identity,
group, join time, active flag, and version. JobStore records queued,
running, and finished job instances and owns the transitions between
those sets. BoltStore implements both on a single embedded BoltDB
database; MemoryStore implements both in process memory for tests and
single-node development.

# Storage Layout

BoltDB buckets:

	nodes          node records keyed by node id
	queued_jobs    queued instances keyed by lock
	running_jobs   running instances keyed by lock
	finished_jobs  archived instances keyed by a per-instance uuid

Keying the queued and running buckets by lock makes the cluster-wide
uniqueness invariant (at most one queued-or-running instance per lock)
a structural property: CreateQueuedJob refuses a lock that is present
in either bucket, and concurrent writers racing on the same lock see
one write win and the other fail with ErrLockHeld.

# Atomic Transitions

MoveQueuedToRunning, MoveRunningToQueued, and MoveRunningToFinished
each run as a single BoltDB transaction (delete from one bucket, put
into the other), so a crash or cancellation between duties never leaves
a job in zero or two states.

Finished instances are never overwritten: each gets a fresh uuid key so
the history of a recurring job accumulates.
*/
package storage

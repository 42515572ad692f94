/*
Package types defines the core data structures used throughout Drover.

This package contains the domain model of the job-scheduling cluster:
nodes, scheduled job declarations, and the queued/running/finished job
instances derived from them. These types are used by all other packages
for state management, persistence, and the leader control loops.

# Job Lifecycle

A ScheduledJob is an eternal declaration (cron + metadata). The leader
derives instances from it that flow through three states:

	ScheduledJob ──queue──▶ QueuedJob ──assign──▶ RunningJob ──finish──▶ FinishedJob

Each transition method (ToQueuedJob, ToRunningJob, ToFinishedJob,
and RunningJob.ToQueuedJob for retries) produces a new value; instances
are never mutated in place.

# Serialization Keys

The Lock field serializes instances of the same scheduled job: at most
one queued or running instance exists per lock value at any time. The
persistence layer enforces this by keying the queued and running record
sets on the lock.

# Node Lifecycle

Nodes join with a recorded JoinTime and remain active until the
autoscaler drains them (Active=false) and, once idle, removes them.
Leadership within a group belongs to the oldest active node.

All types are designed to be:
  - Serializable (JSON for the BoltDB store)
  - Immutable where possible (transitions build new values)
  - Self-documenting (clear field names and comments)
*/
package types

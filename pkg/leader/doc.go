/*
Package leader implements the leader duties of a Drover node.

Within each node group, at most one node leads: the one with the
earliest join time among active nodes, ties broken by node id. The
leader alone mutates cluster job state. Every duty here is periodic,
no-ops on followers, and re-reads the slice of store state it needs
before acting.

# Duties

	ElectClusterLeader    recompute the leader flag; load or clear the
	                      state mirror on transitions
	RefreshJobsSchedule   pull the declared schedule into the mirror
	QueueScheduledJobs    turn due cron firings into queued jobs
	AssignQueuedJobs      place queued jobs on nodes under weight,
	                      version, and priority constraints
	CleanDeadNodesJobs    requeue or finalize jobs whose owner node died

# Election

A head node younger than YoungestLeaderAge blocks election for the
whole group, preventing a transient leader on a freshly bootstrapped
cluster. Gaining leadership synchronously loads the schedule and the
queued/running job sets into the State mirror; losing it clears them.
Both transitions are a single observable step.

# Placement

Queued jobs are assigned highest-priority first. Each goes to the
eligible node with the greatest remaining weight capacity; capacity
consumed earlier in a pass is visible to later assignments, so one
pass never overcommits a node. Jobs with no eligible node stay queued.

# Consistency

Every job transition is persisted through the store's atomic move
operations before the mirror is updated, so a crash between the two
leaves the store authoritative and the mirror merely stale. A lock
found in both the queued and running sets is an invariant violation;
the detecting duty returns ErrInvariantViolation and the agent stops
leader duties on this node.
*/
package leader

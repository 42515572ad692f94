/*
Package agent supervises a single Drover node.

The agent registers the node in its group, then runs every periodic
duty on one serial loop: leader election, schedule refresh, job
queueing, assignment, dead-node recovery, and the scale controller.
Duties sharing one goroutine means the leader state mirror only ever
has a single writer, which is the concurrency model the leader package
assumes.

Leader-only duties no-op on followers, so the same loop runs on every
node and leadership transitions need no coordination beyond the
election itself.

The agent also hosts the per-node job executor, the metrics collector,
the event broker, and the /metrics, /health, and /live HTTP endpoints.

	a := agent.New(cfg, store, source, cloudManager, clock.Real{})
	a.Executor().Register("shell", shellHandler)
	if err := a.Start(); err != nil {
		return err
	}
	defer a.Stop()

A duty that reports an invariant violation stops the loop: a node that
has observed corrupt cluster state must not keep mutating it, and
operators restart it after investigating.
*/
package agent

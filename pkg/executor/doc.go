/*
Package executor runs assigned jobs on a Drover node.

The Executor polls the job store for running jobs assigned to this
node and dispatches each to the handler registered for its job type.
A successful handler finishes the job; a failing one sends it back to
the queue while attempts remain, and finalizes it as failed once the
attempt limit is reached.

	exec := agent.Executor()
	exec.Register("report", func(ctx context.Context, job *types.RunningJob) error {
		return buildReport(ctx, job.Data["path"])
	})

Handlers receive a context that is cancelled when the executor stops;
long-running handlers should honor it. Each job executes in its own
goroutine, and a job already in flight is never claimed twice.
*/
package executor

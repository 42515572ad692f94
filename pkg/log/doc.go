/*
Package log provides structured logging for Drover using zerolog.

The package wraps zerolog with a global logger, level configuration,
and child-logger helpers that attach the fields used across the
codebase (component, node_id, group, job_id).

# Usage

Initialize once at startup:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Then log through the global helpers or a scoped child logger:

	logger := log.WithComponent("assigner")
	logger.Info().Str("job_id", job.JobID).Str("node_id", node.ID).Msg("job assigned")

Console output (JSONOutput=false) is human-readable and intended for
interactive use; JSON output is for production log pipelines.
*/
package log

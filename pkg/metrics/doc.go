/*
Package metrics provides Prometheus metrics and health endpoints for Drover.

All metrics carry the drover_ prefix and are registered at package
initialization. Control loops increment the duty counters directly;
the Collector periodically reads the store and refreshes the state
gauges (nodes by status, queued/running/finished jobs).

# Exposed Endpoints

	/metrics   Prometheus exposition (Handler)
	/health    aggregated component health (HealthHandler)
	/live      process liveness (LivenessHandler)

# Usage

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

	mux.Handle("/metrics", metrics.Handler())

Duties measure themselves with a Timer:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DutyDuration.WithLabelValues("assign"))
*/
package metrics

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "drover_nodes_total",
			Help: "Total number of nodes by group and status",
		},
		[]string{"group", "status"},
	)

	QueuedJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drover_queued_jobs",
			Help: "Number of jobs waiting for assignment",
		},
	)

	RunningJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drover_running_jobs",
			Help: "Number of jobs currently assigned to nodes",
		},
	)

	FinishedJobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "drover_finished_jobs",
			Help: "Number of archived job instances by result",
		},
		[]string{"result"},
	)

	// Leadership metrics
	IsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drover_is_leader",
			Help: "Whether this node leads its group (1 = leader, 0 = follower)",
		},
	)

	// Duty metrics
	JobsQueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drover_jobs_queued_total",
			Help: "Total number of schedule firings turned into queued jobs",
		},
	)

	JobsAssignedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drover_jobs_assigned_total",
			Help: "Total number of jobs assigned to nodes",
		},
	)

	JobsRecoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drover_jobs_recovered_total",
			Help: "Total number of jobs requeued from dead nodes",
		},
	)

	JobsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drover_jobs_failed_total",
			Help: "Total number of jobs finalized as failed",
		},
	)

	JobsExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_jobs_executed_total",
			Help: "Total number of jobs executed on this node by result",
		},
		[]string{"result"},
	)

	DutyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drover_duty_duration_seconds",
			Help:    "Duration of leader duty invocations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"duty"},
	)

	DutyErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_duty_errors_total",
			Help: "Total number of failed duty invocations by duty",
		},
		[]string{"duty"},
	)

	// Autoscaler metrics
	ScaleEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_scale_events_total",
			Help: "Total number of scale events by direction",
		},
		[]string{"direction"},
	)

	ClusterUtilization = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drover_cluster_utilization_percent",
			Help: "Queued and running job weight as a percentage of active capacity",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(QueuedJobs)
	prometheus.MustRegister(RunningJobs)
	prometheus.MustRegister(FinishedJobs)
	prometheus.MustRegister(IsLeader)
	prometheus.MustRegister(JobsQueuedTotal)
	prometheus.MustRegister(JobsAssignedTotal)
	prometheus.MustRegister(JobsRecoveredTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(JobsExecutedTotal)
	prometheus.MustRegister(DutyDuration)
	prometheus.MustRegister(DutyErrorsTotal)
	prometheus.MustRegister(ScaleEventsTotal)
	prometheus.MustRegister(ClusterUtilization)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"time"

	"github.com/cuemby/drover/pkg/storage"
	"github.com/cuemby/drover/pkg/types"
)

// Collector periodically reads cluster state from the store and
// exposes it as gauges
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectNodeMetrics()
	c.collectJobMetrics()
}

func (c *Collector) collectNodeMetrics() {
	nodes, err := c.store.GetAllNodes()
	if err != nil {
		return
	}

	counts := make(map[string]map[string]int)
	for _, node := range nodes {
		status := "active"
		if !node.Active {
			status = "inactive"
		}
		if counts[node.Group] == nil {
			counts[node.Group] = make(map[string]int)
		}
		counts[node.Group][status]++
	}

	NodesTotal.Reset()
	for group, statuses := range counts {
		for status, count := range statuses {
			NodesTotal.WithLabelValues(group, status).Set(float64(count))
		}
	}
}

func (c *Collector) collectJobMetrics() {
	if queued, err := c.store.GetQueuedJobs(); err == nil {
		QueuedJobs.Set(float64(len(queued)))
	}
	if running, err := c.store.GetRunningJobs(); err == nil {
		RunningJobs.Set(float64(len(running)))
	}
	if finished, err := c.store.GetFinishedJobs(); err == nil {
		counts := map[types.JobResult]int{}
		for _, job := range finished {
			counts[job.Result]++
		}
		FinishedJobs.Reset()
		for result, count := range counts {
			FinishedJobs.WithLabelValues(string(result)).Set(float64(count))
		}
	}
}

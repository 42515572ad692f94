package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/drover/pkg/clock"
	"github.com/cuemby/drover/pkg/events"
	"github.com/cuemby/drover/pkg/log"
	"github.com/cuemby/drover/pkg/metrics"
	"github.com/cuemby/drover/pkg/storage"
	"github.com/cuemby/drover/pkg/types"
	"github.com/rs/zerolog"
)

// Handler executes one job instance. A nil return finishes the job
// successfully; an error triggers a retry while attempts remain.
type Handler func(ctx context.Context, job *types.RunningJob) error

// Executor is the per-node job runner. It polls the store for running
// jobs assigned to this node and executes them through registered
// handlers, finishing or requeueing each instance in the store.
type Executor struct {
	nodeID       string
	jobs         storage.JobStore
	clock        clock.Clock
	broker       *events.Broker
	logger       zerolog.Logger
	pollInterval time.Duration

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	inFlightMu sync.Mutex
	inFlight   map[string]bool // locks currently executing on this node

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates an executor for this node
func New(nodeID string, jobs storage.JobStore, clk clock.Clock, broker *events.Broker, pollInterval time.Duration) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		nodeID:       nodeID,
		jobs:         jobs,
		clock:        clk,
		broker:       broker,
		logger:       log.WithComponent("executor"),
		pollInterval: pollInterval,
		handlers:     make(map[string]Handler),
		inFlight:     make(map[string]bool),
		ctx:          ctx,
		cancel:       cancel,
		stopCh:       make(chan struct{}),
	}
}

// Register installs the handler for a job type
func (e *Executor) Register(jobType string, handler Handler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.handlers[jobType] = handler
}

// Start begins the polling loop
func (e *Executor) Start() {
	go e.run()
}

// Stop cancels in-flight jobs and waits for them to settle
func (e *Executor) Stop() {
	close(e.stopCh)
	e.cancel()
	e.wg.Wait()
}

func (e *Executor) run() {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.poll(); err != nil {
				e.logger.Error().Err(err).Msg("executor poll failed")
			}
		case <-e.stopCh:
			return
		}
	}
}

// poll claims this node's running jobs that are not yet executing
func (e *Executor) poll() error {
	assigned, err := e.jobs.GetRunningJobsByNode(e.nodeID)
	if err != nil {
		return fmt.Errorf("failed to list assigned jobs: %w", err)
	}

	for _, job := range assigned {
		e.inFlightMu.Lock()
		if e.inFlight[job.Lock] {
			e.inFlightMu.Unlock()
			continue
		}
		e.inFlight[job.Lock] = true
		e.inFlightMu.Unlock()

		e.wg.Add(1)
		go e.execute(job)
	}

	return nil
}

func (e *Executor) execute(job *types.RunningJob) {
	defer e.wg.Done()
	defer func() {
		e.inFlightMu.Lock()
		delete(e.inFlight, job.Lock)
		e.inFlightMu.Unlock()
	}()

	e.handlersMu.RLock()
	handler, ok := e.handlers[job.JobType]
	e.handlersMu.RUnlock()

	if !ok {
		e.finish(job, types.JobResultFailure, fmt.Sprintf("no handler registered for job type %q", job.JobType))
		return
	}

	e.logger.Info().Str("job_id", job.JobID).Str("job_type", job.JobType).
		Int("attempts", job.Attempts).Msg("executing job")

	if err := handler(e.ctx, job); err != nil {
		if job.Attempts < job.MaxAttempts {
			e.retry(job, err)
			return
		}
		e.finish(job, types.JobResultFailure, err.Error())
		return
	}

	e.finish(job, types.JobResultSuccess, "")
}

// retry puts a failed job back in the queue, keeping its attempt count
func (e *Executor) retry(job *types.RunningJob, cause error) {
	if _, err := e.jobs.MoveRunningToQueued(job); err != nil {
		e.logger.Error().Err(err).Str("job_id", job.JobID).Msg("failed to requeue job")
		return
	}

	e.logger.Warn().Err(cause).Str("job_id", job.JobID).
		Int("attempts", job.Attempts).Int("max_attempts", job.MaxAttempts).
		Msg("job failed, requeued for retry")
	e.publish(events.EventJobRequeued, "job failed and was requeued", map[string]string{
		"job_id":  job.JobID,
		"lock":    job.Lock,
		"node_id": e.nodeID,
	})
}

func (e *Executor) finish(job *types.RunningJob, result types.JobResult, message string) {
	now := e.clock.Now()
	if _, err := e.jobs.MoveRunningToFinished(job, result, message, now); err != nil {
		e.logger.Error().Err(err).Str("job_id", job.JobID).Msg("failed to finalize job")
		return
	}

	metrics.JobsExecutedTotal.WithLabelValues(string(result)).Inc()
	e.logger.Info().Str("job_id", job.JobID).Str("result", string(result)).Msg("job finished")
	e.publish(events.EventJobFinished, "job finished", map[string]string{
		"job_id":  job.JobID,
		"lock":    job.Lock,
		"node_id": e.nodeID,
		"result":  string(result),
	})
}

func (e *Executor) publish(eventType events.EventType, message string, metadata map[string]string) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(events.New(eventType, message, metadata))
}

// Package scheduler provides gocron-v2-based scheduling for the repeating
// "serve" run loop. This module has exactly one recurring task kind (run
// the pipeline), so the manager is deliberately a single-job-family
// wrapper rather than a general job registry.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"proxypulse/internal/logging"
	"proxypulse/internal/shared/runclock"
)

// PipelineJob is the single unit of scheduled work: one full run of the
// core pipeline.
type PipelineJob interface {
	Execute(ctx context.Context) error
}

// SchedulerManager wraps a gocron scheduler with a Start/Stop/IsStarted
// lifecycle.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logging.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a SchedulerManager using the run clock's
// display timezone for any cron-expression jobs.
func NewSchedulerManager(log logging.Interface) (*SchedulerManager, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(runclock.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: s,
		logger:    log,
	}, nil
}

// RegisterPipelineJob schedules job to run every interval, starting
// immediately, with a per-run timeout and reschedule-on-overlap semantics —
// if a run is still in flight when the next tick arrives, gocron defers the
// next tick rather than running it concurrently, since the Store is
// single-writer.
func (m *SchedulerManager) RegisterPipelineJob(interval time.Duration, timeout time.Duration, job PipelineJob) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			m.runPipeline(ctx, job)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("pipeline", "run"),
		gocron.WithName("pipeline-run"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered pipeline job", "interval", interval.String())
	return nil
}

func (m *SchedulerManager) runPipeline(ctx context.Context, job PipelineJob) {
	start := runclock.NowUTC()
	m.logger.Debugw("pipeline run started")

	if err := job.Execute(ctx); err != nil {
		if ctx.Err() != nil {
			m.logger.Warnw("pipeline run cancelled", "duration", time.Since(start))
			return
		}
		m.logger.Errorw("pipeline run failed", "error", err, "duration", time.Since(start))
		return
	}

	m.logger.Infow("pipeline run completed", "duration", time.Since(start))
}

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler, waiting for any in-flight run.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}

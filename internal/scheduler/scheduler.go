package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pricescout/pricescout/internal/models"
	"github.com/pricescout/pricescout/internal/scrape"
)

const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Runner is the piece of the orchestrator the scheduler drives.
type Runner interface {
	Run(ctx context.Context, opts scrape.RunOptions) (*models.RunReport, error)
}

// ExecutionRecorder persists the job history. Implemented by
// database.ExecutionRepository.
type ExecutionRecorder interface {
	RecordJobExecution(ctx context.Context, exec *models.JobExecution) error
	FinishJobExecution(ctx context.Context, exec *models.JobExecution) error
}

// ErrRunInFlight is returned by TriggerNow when a run is already
// executing.
var ErrRunInFlight = fmt.Errorf("a scrape run is already in flight")

// Scheduler fires the daily scrape and accepts manual triggers. At
// most one run executes at a time; a trigger that lands while a run is
// in flight is recorded as skipped, never queued.
type Scheduler struct {
	runner   Runner
	recorder ExecutionRecorder
	cron     *cron.Cron
	spec     string
	running  atomic.Bool
	baseCtx  context.Context
	logger   *slog.Logger
}

func New(runner Runner, recorder ExecutionRecorder, spec string) *Scheduler {
	return &Scheduler{
		runner:   runner,
		recorder: recorder,
		cron:     cron.New(),
		spec:     spec,
		baseCtx:  context.Background(),
		logger:   slog.Default().With("component", "scheduler"),
	}
}

// Start registers the cron entry and begins firing. The context bounds
// every scheduled run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx = ctx

	if _, err := s.cron.AddFunc(s.spec, func() {
		s.fire(TriggerScheduled, scrape.RunOptions{})
	}); err != nil {
		return fmt.Errorf("failed to register cron schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the cron loop. An in-flight run keeps going until its
// context is cancelled.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// Running reports whether a run is currently executing.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// TriggerNow starts a manual run in the background. Returns
// ErrRunInFlight without queueing if one is already executing. The
// flag is claimed here, not in the goroutine, so concurrent callers
// get an authoritative answer: exactly one acquires the run.
func (s *Scheduler) TriggerNow(opts scrape.RunOptions) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunInFlight
	}

	go s.execute(TriggerManual, opts)
	return nil
}

// fire is the scheduled entry point. A trigger that lands while a run
// is in flight leaves a skipped row in the job history.
func (s *Scheduler) fire(trigger string, opts scrape.RunOptions) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("run already in flight, skipping trigger", "trigger", trigger)
		s.recordSkipped(s.baseCtx, trigger)
		return
	}

	s.execute(trigger, opts)
}

// execute drives one run end to end. The caller must have claimed the
// in-flight flag; execute releases it.
func (s *Scheduler) execute(trigger string, opts scrape.RunOptions) {
	defer s.running.Store(false)

	ctx := s.baseCtx
	exec := &models.JobExecution{
		Trigger:   trigger,
		Status:    models.ExecutionRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.recorder.RecordJobExecution(ctx, exec); err != nil {
		s.logger.Error("failed to record job execution", "error", err)
	}

	report, err := s.runSafely(ctx, opts)

	finished := time.Now().UTC()
	exec.FinishedAt = &finished

	if err != nil {
		exec.Status = models.ExecutionFailed
		exec.ErrorDetail = err.Error()
		s.logger.Error("run failed", "trigger", trigger, "error", err)
	} else {
		exec.Status = models.ExecutionCompleted
		exec.Attempted = report.Attempted()
		exec.Succeeded = report.Succeeded()
		exec.Failed = report.Failed()
		s.logger.Info("run completed",
			"trigger", trigger,
			"attempted", exec.Attempted,
			"succeeded", exec.Succeeded,
			"failed", exec.Failed)
	}

	if err := s.recorder.FinishJobExecution(ctx, exec); err != nil {
		s.logger.Error("failed to finish job execution", "error", err)
	}
}

// runSafely contains panics so a crashing run can never take the host
// process down with it.
func (s *Scheduler) runSafely(ctx context.Context, opts scrape.RunOptions) (report *models.RunReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()
	return s.runner.Run(ctx, opts)
}

func (s *Scheduler) recordSkipped(ctx context.Context, trigger string) {
	now := time.Now().UTC()
	exec := &models.JobExecution{
		Trigger:     trigger,
		Status:      models.ExecutionSkipped,
		StartedAt:   now,
		FinishedAt:  &now,
		ErrorDetail: "previous run still in flight",
	}
	if err := s.recorder.RecordJobExecution(ctx, exec); err != nil {
		s.logger.Error("failed to record skipped execution", "error", err)
	}
}

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/pricescout/internal/models"
	"github.com/pricescout/pricescout/internal/scrape"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	lastOps scrape.RunOptions
	block   chan struct{} // closed to release a blocked run
	started chan struct{}
	panics  bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		block:   make(chan struct{}),
		started: make(chan struct{}, 8),
	}
}

func (r *fakeRunner) Run(_ context.Context, opts scrape.RunOptions) (*models.RunReport, error) {
	r.mu.Lock()
	r.calls++
	r.lastOps = opts
	r.mu.Unlock()

	r.started <- struct{}{}
	if r.panics {
		panic("extractor blew up")
	}
	<-r.block

	return &models.RunReport{
		ID: uuid.New(),
		Results: []models.TargetResult{
			{Status: models.TargetPersisted},
			{Status: models.TargetFailed, Error: "navigation failed"},
		},
	}, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []*models.JobExecution
	finished []*models.JobExecution
	done     chan struct{}
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{done: make(chan struct{}, 8)}
}

func (r *fakeRecorder) RecordJobExecution(_ context.Context, exec *models.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *exec
	r.recorded = append(r.recorded, &copied)
	if exec.Status == models.ExecutionSkipped {
		r.done <- struct{}{}
	}
	return nil
}

func (r *fakeRecorder) FinishJobExecution(_ context.Context, exec *models.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *exec
	r.finished = append(r.finished, &copied)
	r.done <- struct{}{}
	return nil
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduler")
	}
}

func TestTriggerNowRunsAndRecords(t *testing.T) {
	runner := newFakeRunner()
	recorder := newFakeRecorder()
	s := New(runner, recorder, "0 8 * * *")

	require.NoError(t, s.TriggerNow(scrape.RunOptions{DryRun: true}))
	waitFor(t, runner.started)
	close(runner.block)
	waitFor(t, recorder.done)

	require.Len(t, recorder.recorded, 1)
	assert.Equal(t, TriggerManual, recorder.recorded[0].Trigger)
	assert.Equal(t, models.ExecutionRunning, recorder.recorded[0].Status)

	require.Len(t, recorder.finished, 1)
	final := recorder.finished[0]
	assert.Equal(t, models.ExecutionCompleted, final.Status)
	assert.Equal(t, 2, final.Attempted)
	assert.Equal(t, 1, final.Succeeded)
	assert.Equal(t, 1, final.Failed)
	require.NotNil(t, final.FinishedAt)

	assert.True(t, runner.lastOps.DryRun)
	assert.False(t, s.Running())
}

func TestTriggerNowRejectsOverlap(t *testing.T) {
	runner := newFakeRunner()
	recorder := newFakeRecorder()
	s := New(runner, recorder, "0 8 * * *")

	require.NoError(t, s.TriggerNow(scrape.RunOptions{}))

	// The flag is claimed before TriggerNow returns, so a racing second
	// trigger is rejected even before the run goroutine is scheduled.
	assert.True(t, s.Running())
	assert.ErrorIs(t, s.TriggerNow(scrape.RunOptions{}), ErrRunInFlight)

	waitFor(t, runner.started)
	close(runner.block)
	waitFor(t, recorder.done)

	assert.Equal(t, 1, runner.calls)

	// The rejected trigger got its error synchronously; it must not
	// also appear in the job history as skipped.
	for _, rec := range recorder.recorded {
		assert.NotEqual(t, models.ExecutionSkipped, rec.Status)
	}
}

func TestOverlappingFireRecordsSkipped(t *testing.T) {
	runner := newFakeRunner()
	recorder := newFakeRecorder()
	s := New(runner, recorder, "0 8 * * *")

	// Simulate a run in flight when a scheduled trigger fires.
	s.running.Store(true)
	s.fire(TriggerScheduled, scrape.RunOptions{})
	waitFor(t, recorder.done)

	require.Len(t, recorder.recorded, 1)
	skipped := recorder.recorded[0]
	assert.Equal(t, models.ExecutionSkipped, skipped.Status)
	assert.Equal(t, TriggerScheduled, skipped.Trigger)
	assert.Equal(t, 0, runner.calls)

	// The in-flight flag is owned by the real run, not the skip.
	assert.True(t, s.Running())
}

func TestPanickingRunIsContained(t *testing.T) {
	runner := newFakeRunner()
	runner.panics = true
	recorder := newFakeRecorder()
	s := New(runner, recorder, "0 8 * * *")

	require.NoError(t, s.TriggerNow(scrape.RunOptions{}))
	waitFor(t, recorder.done)

	require.Len(t, recorder.finished, 1)
	final := recorder.finished[0]
	assert.Equal(t, models.ExecutionFailed, final.Status)
	assert.Contains(t, final.ErrorDetail, "panicked")
	assert.False(t, s.Running())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	runner := newFakeRunner()
	recorder := newFakeRecorder()
	s := New(runner, recorder, "not a cron spec")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Error(t, s.Start(ctx))
}

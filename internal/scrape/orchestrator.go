package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pricescout/pricescout/internal/extract"
	"github.com/pricescout/pricescout/internal/models"
	"github.com/pricescout/pricescout/internal/storage"
)

// Gateway is the persistence surface the orchestrator needs. The
// database package implements it; tests use fakes.
type Gateway interface {
	ListScrapeTargets(ctx context.Context, filter models.TargetFilter) ([]models.ScrapeTarget, error)
	SaveScrapedPrice(ctx context.Context, record *models.PriceRecord) error
}

// Capturer produces page artifacts. Implemented by browser.Capturer.
type Capturer interface {
	Capture(ctx context.Context, url string) (*models.CaptureArtifact, error)
}

// Pacer spaces out work between targets. Implemented by
// ratelimit.Limiter.
type Pacer interface {
	Wait(ctx context.Context, suggested time.Duration)
	RecordFailure()
	RecordSuccess()
}

// RunOptions selects which targets a run covers and whether results
// are persisted.
type RunOptions struct {
	Filter models.TargetFilter
	DryRun bool
}

type sleepFunc func(ctx context.Context, d time.Duration)

func defaultSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Orchestrator walks the target list sequentially, driving each target
// through capture, extraction, validation and persistence. One bad
// target never stops the run.
type Orchestrator struct {
	gateway    Gateway
	capturer   Capturer
	extractors []extract.Extractor
	validator  *Validator
	pacer      Pacer
	store      *storage.ArtifactStore
	metrics    *Metrics

	maxAttempts int
	baseDelay   time.Duration
	sleep       sleepFunc
	logger      *slog.Logger
}

type OrchestratorOption func(*Orchestrator)

// WithPacer installs an inter-target pacer.
func WithPacer(p Pacer) OrchestratorOption {
	return func(o *Orchestrator) { o.pacer = p }
}

// WithArtifactStore retains capture artifacts for failed and
// low-confidence targets.
func WithArtifactStore(s *storage.ArtifactStore) OrchestratorOption {
	return func(o *Orchestrator) { o.store = s }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithMaxAttempts overrides the per-target attempt budget.
func WithMaxAttempts(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// WithRetryBaseDelay overrides the first retry wait.
func WithRetryBaseDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.baseDelay = d
		}
	}
}

func withSleep(fn sleepFunc) OrchestratorOption {
	return func(o *Orchestrator) { o.sleep = fn }
}

// NewOrchestrator wires the pipeline. Extractors are tried in order:
// the first is the primary strategy, later ones take over after an
// extraction failure on a subsequent attempt.
func NewOrchestrator(gateway Gateway, capturer Capturer, extractors []extract.Extractor, validator *Validator, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		gateway:     gateway,
		capturer:    capturer,
		extractors:  extractors,
		validator:   validator,
		maxAttempts: 3,
		baseDelay:   1 * time.Second,
		sleep:       defaultSleep,
		logger:      slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one scrape pass over the selected targets. The returned
// report always covers every listed target; the error is non-nil only
// when the run could not start at all.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*models.RunReport, error) {
	if len(o.extractors) == 0 {
		return nil, fmt.Errorf("no extractors configured")
	}

	report := &models.RunReport{
		ID:        uuid.New(),
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}

	mode := "full"
	if !opts.Filter.Empty() {
		mode = "filtered"
	}
	if opts.DryRun {
		mode = "dry_run"
	}
	o.metrics.IncRun(mode)

	targets, err := o.gateway.ListScrapeTargets(ctx, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape targets: %w", err)
	}

	o.logger.Info("run started",
		"run_id", report.ID,
		"mode", mode,
		"targets", len(targets))

	for i, target := range targets {
		if ctx.Err() != nil {
			o.logger.Warn("run cancelled", "run_id", report.ID, "processed", i)
			break
		}

		if i > 0 && o.pacer != nil {
			o.pacer.Wait(ctx, target.ScrapeDelay)
		}

		result := o.processTarget(ctx, target, opts.DryRun)
		report.Results = append(report.Results, result)
		o.metrics.IncTarget(string(result.Status))

		if o.pacer != nil {
			if result.Status == models.TargetFailed {
				o.pacer.RecordFailure()
			} else {
				o.pacer.RecordSuccess()
			}
		}
	}

	report.FinishedAt = time.Now().UTC()

	o.logger.Info("run finished",
		"run_id", report.ID,
		"attempted", report.Attempted(),
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds())

	return report, nil
}

// processTarget drives one target through up to maxAttempts passes.
// Panics are contained here so a misbehaving extractor cannot take the
// rest of the run down with it.
func (o *Orchestrator) processTarget(ctx context.Context, target models.ScrapeTarget, dryRun bool) (result models.TargetResult) {
	start := time.Now()
	result = models.TargetResult{Target: target}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic while processing target",
				"product_id", target.ProductID,
				"platform", target.PlatformName,
				"panic", r)
			result.Status = models.TargetFailed
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		o.metrics.ObserveTarget(time.Since(start))
	}()

	logger := o.logger.With(
		"product_id", target.ProductID,
		"platform", target.PlatformName)

	extractorIdx := 0
	var lastErr error

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		result.Attempts = attempt
		o.metrics.IncAttempt(target.PlatformName)

		record, artifact, err := o.attempt(ctx, target, o.extractors[extractorIdx], dryRun)
		if err == nil {
			if dryRun {
				result.Status = models.TargetSkipped
			} else {
				result.Status = models.TargetPersisted
			}
			result.Record = record

			if o.store != nil && record.NeedsReview && artifact != nil {
				if _, serr := o.store.Save(target, artifact); serr != nil {
					logger.Warn("failed to retain review artifact", "error", serr)
				}
			}
			return result
		}

		lastErr = err
		o.metrics.IncError(errorType(err))
		logger.Warn("attempt failed",
			"attempt", attempt,
			"strategy", o.extractors[extractorIdx].Name(),
			"error_type", errorType(err),
			"error", err)

		if o.store != nil && artifact != nil && attempt == o.maxAttempts {
			if _, serr := o.store.Save(target, artifact); serr != nil {
				logger.Warn("failed to retain failure artifact", "error", serr)
			}
		}

		if !isRetryable(err) || attempt == o.maxAttempts {
			break
		}

		// An extraction problem earns the next strategy a turn; capture
		// problems keep the current one.
		if isExtractionFailure(err) && extractorIdx+1 < len(o.extractors) {
			extractorIdx++
			logger.Info("switching extraction strategy",
				"strategy", o.extractors[extractorIdx].Name(),
				"next_attempt", attempt+1)
		}

		delay := o.backoffDelay(attempt)
		o.metrics.IncRetry()
		logger.Info("retrying", "next_attempt", attempt+1, "delay", delay)
		o.sleep(ctx, delay)

		if ctx.Err() != nil {
			lastErr = fmt.Errorf("run cancelled: %w", ctx.Err())
			break
		}
	}

	result.Status = models.TargetFailed
	result.Error = lastErr.Error()
	return result
}

// attempt is one full pass: capture, extract, validate, persist.
func (o *Orchestrator) attempt(ctx context.Context, target models.ScrapeTarget, extractor extract.Extractor, dryRun bool) (*models.PriceRecord, *models.CaptureArtifact, error) {
	captureStart := time.Now()
	artifact, err := o.capturer.Capture(ctx, target.ProductURL)
	o.metrics.ObserveCapture(time.Since(captureStart))
	if err != nil {
		return nil, nil, err
	}

	extraction, err := extractor.Extract(ctx, target, artifact)
	if err != nil {
		return nil, artifact, err
	}

	record, err := o.validator.Validate(target, extraction)
	if err != nil {
		return nil, artifact, err
	}

	if dryRun {
		return record, artifact, nil
	}

	if err := o.gateway.SaveScrapedPrice(ctx, record); err != nil {
		return nil, artifact, &PersistenceError{Err: err}
	}

	return record, artifact, nil
}

// backoffDelay doubles per completed attempt: 1s after the first, 2s
// after the second, and so on.
func (o *Orchestrator) backoffDelay(attempt int) time.Duration {
	return o.baseDelay << (attempt - 1)
}

func isExtractionFailure(err error) bool {
	return errorType(err) == "model_unavailable" ||
		errorType(err) == "parse" ||
		errorType(err) == "selector_not_found"
}

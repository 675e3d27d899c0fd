package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockStatus is the normalized availability of a product on a platform.
type StockStatus string

const (
	StockInStock    StockStatus = "IN_STOCK"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
	StockPreOrder   StockStatus = "PRE_ORDER"
	StockLimited    StockStatus = "LIMITED"
	StockUnknown    StockStatus = "UNKNOWN"
)

// ScrapeTarget is one (product, platform, URL) tuple to scrape.
// Targets are read from the database at the start of a run and never
// mutated; (ProductID, PlatformID) identifies a target uniquely.
type ScrapeTarget struct {
	ProductID    int64         `json:"product_id"`
	ProductName  string        `json:"product_name"`
	PlatformID   int64         `json:"platform_id"`
	PlatformName string        `json:"platform_name"`
	ProductURL   string        `json:"product_url"`
	Currency     string        `json:"currency"`
	ScrapeDelay  time.Duration `json:"scrape_delay"`
}

// TargetFilter narrows a run to one product, one platform, or both.
// The zero value selects everything.
type TargetFilter struct {
	ProductID *int64
	Platform  string
}

// Empty reports whether the filter selects all targets.
func (f TargetFilter) Empty() bool {
	return f.ProductID == nil && f.Platform == ""
}

// CaptureArtifact is the screenshot plus rendered page produced by
// navigating to a target URL. It lives only for the duration of one
// extraction and is never persisted unless debug retention is enabled.
type CaptureArtifact struct {
	Image      []byte
	HTML       string
	Width      int
	Height     int
	CapturedAt time.Time
	SourceURL  string
}

// ExtractionResult is the raw structured output of an extraction
// strategy, before validation and normalization.
type ExtractionResult struct {
	Price        decimal.Decimal
	Currency     string
	Availability string
	Seller       string
	Quantity     *int
	Confidence   float64
	RawResponse  string
}

// PriceRecord is the unit persisted for every successful scrape.
// Records are append-only: a new row per scrape, never an update.
type PriceRecord struct {
	ID               int64           `json:"id"`
	ProductID        int64           `json:"product_id"`
	PlatformID       int64           `json:"platform_id"`
	ProductURL       string          `json:"product_url"`
	PriceBase        decimal.Decimal `json:"price_base"`
	OriginalPrice    decimal.Decimal `json:"original_price"`
	OriginalCurrency string          `json:"original_currency"`
	StockStatus      StockStatus     `json:"stock_status"`
	Seller           string          `json:"seller,omitempty"`
	Confidence       float64         `json:"confidence"`
	NeedsReview      bool            `json:"needs_review"`
	ScrapedAt        time.Time       `json:"scraped_at"`
}

// TargetStatus is the terminal state of one target within a run.
type TargetStatus string

const (
	TargetPersisted TargetStatus = "persisted"
	TargetFailed    TargetStatus = "failed"
	TargetSkipped   TargetStatus = "skipped" // dry-run: validated but not persisted
)

// TargetResult captures what happened to a single target.
type TargetResult struct {
	Target   ScrapeTarget `json:"target"`
	Status   TargetStatus `json:"status"`
	Attempts int          `json:"attempts"`
	Error    string       `json:"error,omitempty"`
	Record   *PriceRecord `json:"record,omitempty"`
}

// RunReport summarizes one orchestrator invocation.
type RunReport struct {
	ID         uuid.UUID      `json:"id"`
	DryRun     bool           `json:"dry_run"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    []TargetResult `json:"results"`
}

// Attempted returns the number of targets the run processed.
func (r *RunReport) Attempted() int { return len(r.Results) }

// Succeeded returns the number of targets that reached a terminal
// success state (persisted, or validated in dry-run mode).
func (r *RunReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == TargetPersisted || res.Status == TargetSkipped {
			n++
		}
	}
	return n
}

// Failed returns the number of targets that ended in failure.
func (r *RunReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == TargetFailed {
			n++
		}
	}
	return n
}

// Errors returns the per-target error messages keyed by target.
func (r *RunReport) Errors() map[ScrapeTarget]string {
	errs := make(map[ScrapeTarget]string)
	for _, res := range r.Results {
		if res.Status == TargetFailed {
			errs[res.Target] = res.Error
		}
	}
	return errs
}

// ExecutionStatus is the lifecycle state of a scheduled or manual job
// invocation.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionSkipped   ExecutionStatus = "skipped"
)

// JobExecution is one row of the job history, recorded for every
// trigger firing (including skipped ones) for after-the-fact inspection.
type JobExecution struct {
	ID          uuid.UUID       `json:"id"`
	Trigger     string          `json:"trigger"` // "scheduled" or "manual"
	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	Attempted   int             `json:"attempted"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	ErrorDetail string          `json:"error_detail,omitempty"`
}

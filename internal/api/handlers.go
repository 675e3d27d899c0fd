package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pricescout/pricescout/internal/database"
	"github.com/pricescout/pricescout/internal/models"
	"github.com/pricescout/pricescout/internal/scheduler"
	"github.com/pricescout/pricescout/internal/scrape"
)

// Trigger starts scrape runs. Implemented by scheduler.Scheduler.
type Trigger interface {
	TriggerNow(opts scrape.RunOptions) error
	Running() bool
}

// ExecutionStore reads the job history.
type ExecutionStore interface {
	ListJobExecutions(ctx context.Context, limit int) ([]models.JobExecution, error)
}

// PriceStore reads persisted price records.
type PriceStore interface {
	LatestPrices(ctx context.Context, productID int64) ([]models.PriceRecord, error)
	PriceHistory(ctx context.Context, productID, platformID int64, limit int) ([]models.PriceRecord, error)
}

// CatalogStore reads the tracked product and platform catalog.
type CatalogStore interface {
	ListProducts(ctx context.Context) ([]database.CatalogProduct, error)
	ListPlatforms(ctx context.Context) ([]database.CatalogPlatform, error)
}

type Handlers struct {
	trigger    Trigger
	executions ExecutionStore
	prices     PriceStore
	catalog    CatalogStore
	logger     *slog.Logger
}

func NewHandlers(trigger Trigger, executions ExecutionStore, prices PriceStore, catalog CatalogStore, logger *slog.Logger) *Handlers {
	return &Handlers{
		trigger:    trigger,
		executions: executions,
		prices:     prices,
		catalog:    catalog,
		logger:     logger,
	}
}

// TriggerRequest narrows a manual run.
type TriggerRequest struct {
	ProductID *int64 `json:"product_id,omitempty"`
	Platform  string `json:"platform,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// TriggerResponse acknowledges a manual run request.
type TriggerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// TriggerScrape starts a manual run in the background. Returns 409
// when a run is already in flight; a manual trigger never queues.
func (h *Handlers) TriggerScrape(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	opts := scrape.RunOptions{
		Filter: models.TargetFilter{
			ProductID: req.ProductID,
			Platform:  req.Platform,
		},
		DryRun: req.DryRun,
	}

	if err := h.trigger.TriggerNow(opts); err != nil {
		if errors.Is(err, scheduler.ErrRunInFlight) {
			h.respondJSON(w, http.StatusConflict, TriggerResponse{
				Status:  "rejected",
				Message: "a scrape run is already in flight",
			})
			return
		}
		h.logger.Error("failed to trigger run", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to trigger run")
		return
	}

	h.respondJSON(w, http.StatusAccepted, TriggerResponse{Status: "started"})
}

// GetRunStatus reports whether a run is executing right now.
func (h *Handlers) GetRunStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]bool{"running": h.trigger.Running()})
}

// ListExecutions returns recent job history, newest first.
func (h *Handlers) ListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	execs, err := h.executions.ListJobExecutions(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list executions", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	if execs == nil {
		execs = []models.JobExecution{}
	}

	h.respondJSON(w, http.StatusOK, execs)
}

// ListProducts returns the tracked product catalog.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []database.CatalogProduct{}
	}

	h.respondJSON(w, http.StatusOK, products)
}

// ListPlatforms returns the platform catalog.
func (h *Handlers) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.catalog.ListPlatforms(r.Context())
	if err != nil {
		h.logger.Error("failed to list platforms", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list platforms")
		return
	}
	if platforms == nil {
		platforms = []database.CatalogPlatform{}
	}

	h.respondJSON(w, http.StatusOK, platforms)
}

// GetLatestPrices returns the newest record per platform for a product.
func (h *Handlers) GetLatestPrices(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "product ID must be an integer")
		return
	}

	records, err := h.prices.LatestPrices(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to get latest prices", "error", err, "product_id", productID)
		h.respondError(w, http.StatusInternalServerError, "failed to get latest prices")
		return
	}
	if records == nil {
		records = []models.PriceRecord{}
	}

	h.respondJSON(w, http.StatusOK, records)
}

// GetPriceHistory returns history for one product on one platform.
func (h *Handlers) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "product ID must be an integer")
		return
	}

	platformID, err := strconv.ParseInt(r.URL.Query().Get("platform_id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "platform_id query parameter is required")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.prices.PriceHistory(r.Context(), productID, platformID, limit)
	if err != nil {
		h.logger.Error("failed to get price history", "error", err,
			"product_id", productID, "platform_id", platformID)
		h.respondError(w, http.StatusInternalServerError, "failed to get price history")
		return
	}
	if records == nil {
		records = []models.PriceRecord{}
	}

	h.respondJSON(w, http.StatusOK, records)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/pricescout/internal/database"
	"github.com/pricescout/pricescout/internal/models"
	"github.com/pricescout/pricescout/internal/scheduler"
	"github.com/pricescout/pricescout/internal/scrape"
)

type fakeTrigger struct {
	err     error
	running bool
	lastOps scrape.RunOptions
	calls   int
}

func (f *fakeTrigger) TriggerNow(opts scrape.RunOptions) error {
	f.calls++
	f.lastOps = opts
	return f.err
}

func (f *fakeTrigger) Running() bool { return f.running }

type fakeExecutionStore struct {
	execs []models.JobExecution
	err   error
	limit int
}

func (f *fakeExecutionStore) ListJobExecutions(_ context.Context, limit int) ([]models.JobExecution, error) {
	f.limit = limit
	return f.execs, f.err
}

type fakePriceStore struct {
	records []models.PriceRecord
	err     error
}

func (f *fakePriceStore) LatestPrices(_ context.Context, _ int64) ([]models.PriceRecord, error) {
	return f.records, f.err
}

func (f *fakePriceStore) PriceHistory(_ context.Context, _, _ int64, _ int) ([]models.PriceRecord, error) {
	return f.records, f.err
}

type fakeCatalogStore struct {
	products  []database.CatalogProduct
	platforms []database.CatalogPlatform
}

func (f *fakeCatalogStore) ListProducts(_ context.Context) ([]database.CatalogProduct, error) {
	return f.products, nil
}

func (f *fakeCatalogStore) ListPlatforms(_ context.Context) ([]database.CatalogPlatform, error) {
	return f.platforms, nil
}

func newTestHandlers(trigger *fakeTrigger, execs *fakeExecutionStore, prices *fakePriceStore, catalog *fakeCatalogStore) *Handlers {
	if trigger == nil {
		trigger = &fakeTrigger{}
	}
	if execs == nil {
		execs = &fakeExecutionStore{}
	}
	if prices == nil {
		prices = &fakePriceStore{}
	}
	if catalog == nil {
		catalog = &fakeCatalogStore{}
	}
	return NewHandlers(trigger, execs, prices, catalog, slog.Default())
}

func TestTriggerScrape(t *testing.T) {
	t.Run("starts a run", func(t *testing.T) {
		trigger := &fakeTrigger{}
		h := newTestHandlers(trigger, nil, nil, nil)

		body := strings.NewReader(`{"product_id": 7, "platform": "lazada", "dry_run": true}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", body)
		rec := httptest.NewRecorder()

		h.TriggerScrape(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, 1, trigger.calls)
		require.NotNil(t, trigger.lastOps.Filter.ProductID)
		assert.Equal(t, int64(7), *trigger.lastOps.Filter.ProductID)
		assert.Equal(t, "lazada", trigger.lastOps.Filter.Platform)
		assert.True(t, trigger.lastOps.DryRun)
	})

	t.Run("empty body triggers a full run", func(t *testing.T) {
		trigger := &fakeTrigger{}
		h := newTestHandlers(trigger, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", nil)
		rec := httptest.NewRecorder()

		h.TriggerScrape(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Nil(t, trigger.lastOps.Filter.ProductID)
		assert.False(t, trigger.lastOps.DryRun)
	})

	t.Run("returns 409 when a run is in flight", func(t *testing.T) {
		trigger := &fakeTrigger{err: scheduler.ErrRunInFlight}
		h := newTestHandlers(trigger, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", nil)
		rec := httptest.NewRecorder()

		h.TriggerScrape(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp TriggerResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "rejected", resp.Status)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		trigger := &fakeTrigger{}
		h := newTestHandlers(trigger, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()

		h.TriggerScrape(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, trigger.calls)
	})
}

func TestListExecutions(t *testing.T) {
	execs := &fakeExecutionStore{
		execs: []models.JobExecution{
			{Trigger: scheduler.TriggerManual, Status: models.ExecutionCompleted},
		},
	}
	h := newTestHandlers(nil, execs, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/executions?limit=5", nil)
	rec := httptest.NewRecorder()

	h.ListExecutions(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, execs.limit)

	var got []models.JobExecution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, models.ExecutionCompleted, got[0].Status)
}

func TestListExecutionsRejectsBadLimit(t *testing.T) {
	h := newTestHandlers(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/executions?limit=zero", nil)
	rec := httptest.NewRecorder()

	h.ListExecutions(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLatestPrices(t *testing.T) {
	prices := &fakePriceStore{
		records: []models.PriceRecord{
			{
				ProductID:        7,
				PlatformID:       2,
				PriceBase:        decimal.RequireFromString("2399.00"),
				OriginalPrice:    decimal.RequireFromString("754.40"),
				OriginalCurrency: "AUD",
				StockStatus:      models.StockInStock,
				ScrapedAt:        time.Now().UTC(),
			},
		},
	}
	h := newTestHandlers(nil, nil, prices, nil)

	r := chi.NewRouter()
	r.Get("/products/{productID}/prices/latest", h.GetLatestPrices)

	req := httptest.NewRequest(http.MethodGet, "/products/7/prices/latest", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got []models.PriceRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "AUD", got[0].OriginalCurrency)
	assert.True(t, got[0].PriceBase.Equal(decimal.RequireFromString("2399.00")))
}

func TestGetLatestPricesRejectsBadID(t *testing.T) {
	h := newTestHandlers(nil, nil, nil, nil)

	r := chi.NewRouter()
	r.Get("/products/{productID}/prices/latest", h.GetLatestPrices)

	req := httptest.NewRequest(http.MethodGet, "/products/abc/prices/latest", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPriceHistoryRequiresPlatform(t *testing.T) {
	h := newTestHandlers(nil, nil, nil, nil)

	r := chi.NewRouter()
	r.Get("/products/{productID}/prices/history", h.GetPriceHistory)

	req := httptest.NewRequest(http.MethodGet, "/products/7/prices/history", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEndpointsReturnEmptyArrays(t *testing.T) {
	h := newTestHandlers(nil, nil, nil, nil)

	for _, tc := range []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"executions", h.ListExecutions},
		{"products", h.ListProducts},
		{"platforms", h.ListPlatforms},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			tc.handler(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
		})
	}
}

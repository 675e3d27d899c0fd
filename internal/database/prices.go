package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/pricescout/pricescout/internal/events"
	"github.com/pricescout/pricescout/internal/models"
)

// PriceRepository persists scraped prices. History is append-only; a
// new row per scrape, and the matching outbox event is written in the
// same transaction so downstream consumers never see a price that was
// not committed.
type PriceRepository struct {
	db     *DB
	outbox *OutboxRepository
	stream string
}

func NewPriceRepository(db *DB, outbox *OutboxRepository, stream string) *PriceRepository {
	if stream == "" {
		stream = events.DefaultStream
	}
	return &PriceRepository{db: db, outbox: outbox, stream: stream}
}

// SaveScrapedPrice inserts the record and enqueues a PRICE_SCRAPED
// event atomically.
func (r *PriceRepository) SaveScrapedPrice(ctx context.Context, record *models.PriceRecord) error {
	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO price_records (
				product_id, platform_id, product_url,
				price_base, original_price, original_currency,
				stock_status, seller, confidence, needs_review, scraped_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
			) RETURNING id`

		err := tx.QueryRow(ctx, query,
			record.ProductID, record.PlatformID, record.ProductURL,
			record.PriceBase.String(), record.OriginalPrice.String(), record.OriginalCurrency,
			string(record.StockStatus), nullable(record.Seller), record.Confidence,
			record.NeedsReview, record.ScrapedAt,
		).Scan(&record.ID)
		if err != nil {
			return fmt.Errorf("failed to insert price record: %w", err)
		}

		payload, err := json.Marshal(events.NewPriceScrapedPayload(record))
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}

		event := &OutboxEvent{
			AggregateType: events.AggregatePrice,
			AggregateID:   fmt.Sprintf("%d:%d", record.ProductID, record.PlatformID),
			EventType:     events.TypePriceScraped,
			Payload:       payload,
			TargetStream:  r.stream,
		}
		return r.outbox.InsertWithTx(ctx, tx, event)
	})
}

// LatestPrices returns the newest record per platform for a product.
func (r *PriceRepository) LatestPrices(ctx context.Context, productID int64) ([]models.PriceRecord, error) {
	query := `
		SELECT DISTINCT ON (platform_id)
			id, product_id, platform_id, product_url,
			price_base, original_price, original_currency,
			stock_status, COALESCE(seller, ''), confidence, needs_review, scraped_at
		FROM price_records
		WHERE product_id = $1
		ORDER BY platform_id, scraped_at DESC`

	rows, err := r.db.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest prices: %w", err)
	}
	defer rows.Close()

	var records []models.PriceRecord
	for rows.Next() {
		record, err := scanPriceRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return records, nil
}

// PriceHistory returns records for one (product, platform), newest
// first.
func (r *PriceRepository) PriceHistory(ctx context.Context, productID, platformID int64, limit int) ([]models.PriceRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT
			id, product_id, platform_id, product_url,
			price_base, original_price, original_currency,
			stock_status, COALESCE(seller, ''), confidence, needs_review, scraped_at
		FROM price_records
		WHERE product_id = $1 AND platform_id = $2
		ORDER BY scraped_at DESC
		LIMIT $3`

	rows, err := r.db.pool.Query(ctx, query, productID, platformID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var records []models.PriceRecord
	for rows.Next() {
		record, err := scanPriceRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return records, nil
}

func scanPriceRecord(rows pgx.Rows) (models.PriceRecord, error) {
	var record models.PriceRecord
	var priceBase, originalPrice, stockStatus string

	if err := rows.Scan(
		&record.ID, &record.ProductID, &record.PlatformID, &record.ProductURL,
		&priceBase, &originalPrice, &record.OriginalCurrency,
		&stockStatus, &record.Seller, &record.Confidence, &record.NeedsReview, &record.ScrapedAt,
	); err != nil {
		return models.PriceRecord{}, fmt.Errorf("failed to scan price record: %w", err)
	}

	var err error
	if record.PriceBase, err = decimal.NewFromString(priceBase); err != nil {
		return models.PriceRecord{}, fmt.Errorf("failed to parse price_base: %w", err)
	}
	if record.OriginalPrice, err = decimal.NewFromString(originalPrice); err != nil {
		return models.PriceRecord{}, fmt.Errorf("failed to parse original_price: %w", err)
	}
	record.StockStatus = models.StockStatus(stockStatus)

	return record, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

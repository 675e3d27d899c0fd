package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricescout/pricescout/internal/models"
)

const (
	// TypePriceScraped is emitted once per persisted price record.
	TypePriceScraped = "PRICE_SCRAPED"

	// AggregatePrice is the aggregate type carried on price events.
	AggregatePrice = "price"

	// DefaultStream is the Redis stream price events land on.
	DefaultStream = "stream:price_scraped"
)

// PriceScrapedPayload is the event body consumers read off the stream.
type PriceScrapedPayload struct {
	ProductID        int64           `json:"product_id"`
	PlatformID       int64           `json:"platform_id"`
	ProductURL       string          `json:"product_url"`
	PriceBase        decimal.Decimal `json:"price_base"`
	OriginalPrice    decimal.Decimal `json:"original_price"`
	OriginalCurrency string          `json:"original_currency"`
	StockStatus      string          `json:"stock_status"`
	Seller           string          `json:"seller,omitempty"`
	Confidence       float64         `json:"confidence"`
	NeedsReview      bool            `json:"needs_review"`
	ScrapedAt        time.Time       `json:"scraped_at"`
}

// NewPriceScrapedPayload builds the event body for a persisted record.
func NewPriceScrapedPayload(record *models.PriceRecord) PriceScrapedPayload {
	return PriceScrapedPayload{
		ProductID:        record.ProductID,
		PlatformID:       record.PlatformID,
		ProductURL:       record.ProductURL,
		PriceBase:        record.PriceBase,
		OriginalPrice:    record.OriginalPrice,
		OriginalCurrency: record.OriginalCurrency,
		StockStatus:      string(record.StockStatus),
		Seller:           record.Seller,
		Confidence:       record.Confidence,
		NeedsReview:      record.NeedsReview,
		ScrapedAt:        record.ScrapedAt,
	}
}

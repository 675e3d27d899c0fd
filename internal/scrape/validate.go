package scrape

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricescout/pricescout/internal/currency"
	"github.com/pricescout/pricescout/internal/models"
)

// maxPrice rejects obviously corrupt extractions. No product this
// pipeline tracks costs a billion of anything.
var maxPrice = decimal.RequireFromString("999999999.99")

// Keyword tables for availability text, mirrored in the README's stock
// status table. Matching is case-insensitive substring. A text that
// matches several groups resolves by precedence: out of stock beats
// pre-order beats limited beats in stock, so "Pre-Order, sold out"
// never records a sellable status.
var stockKeywords = []struct {
	status   models.StockStatus
	keywords []string
}{
	{models.StockOutOfStock, []string{
		"out of stock", "sold out", "unavailable", "notify me", "email when available",
	}},
	{models.StockPreOrder, []string{
		"pre-order", "preorder", "coming soon",
	}},
	{models.StockLimited, []string{
		"limited", "low stock", "only", "left", "remaining", "hurry",
	}},
	{models.StockInStock, []string{
		"in stock", "available", "ready to ship", "ships today",
	}},
}

// NormalizeStock maps free-form availability text onto the stock enum.
// Unmatched text is UNKNOWN, never an error.
func NormalizeStock(text string) models.StockStatus {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return models.StockUnknown
	}

	for _, group := range stockKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.status
			}
		}
	}
	return models.StockUnknown
}

// Validator checks extraction results and normalizes them into
// persistable price records.
type Validator struct {
	lowConfidenceThreshold float64
}

func NewValidator(lowConfidenceThreshold float64) *Validator {
	return &Validator{lowConfidenceThreshold: lowConfidenceThreshold}
}

// Validate turns an extraction result into a price record, converting
// into the base currency and normalizing availability. Low confidence
// flags the record for review rather than rejecting it.
func (v *Validator) Validate(target models.ScrapeTarget, result *models.ExtractionResult) (*models.PriceRecord, error) {
	if result.Price.LessThanOrEqual(decimal.Zero) {
		return nil, &ValidationError{Field: "price", Detail: "price must be positive, got " + result.Price.String()}
	}
	if result.Price.GreaterThan(maxPrice) {
		return nil, &ValidationError{Field: "price", Detail: "price exceeds sanity cap: " + result.Price.String()}
	}

	code := result.Currency
	if code == "" {
		// Extractors sometimes miss the currency symbol; the platform's
		// configured currency is the authoritative default.
		code = target.Currency
	}

	base, err := currency.Convert(result.Price, code)
	if err != nil {
		return nil, &ValidationError{Field: "currency", Detail: "cannot convert to base currency", Err: err}
	}

	return &models.PriceRecord{
		ProductID:        target.ProductID,
		PlatformID:       target.PlatformID,
		ProductURL:       target.ProductURL,
		PriceBase:        base,
		OriginalPrice:    result.Price,
		OriginalCurrency: currency.NormalizeCode(code),
		StockStatus:      NormalizeStock(result.Availability),
		Seller:           result.Seller,
		Confidence:       result.Confidence,
		NeedsReview:      result.Confidence < v.lowConfidenceThreshold,
		ScrapedAt:        time.Now().UTC(),
	}, nil
}

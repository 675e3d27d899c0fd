package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pricescout/pricescout/internal/models"
)

// ModelClient is the single model call vision extraction needs.
// Satisfied by ai.Client.
type ModelClient interface {
	DescribeImage(ctx context.Context, image []byte, prompt string) (string, error)
}

// VisionExtractor asks a multimodal model to read the price section of
// a product page screenshot. It works on any platform layout, which is
// why it is the primary strategy.
type VisionExtractor struct {
	client ModelClient
	logger *slog.Logger
}

func NewVisionExtractor(client ModelClient) *VisionExtractor {
	return &VisionExtractor{
		client: client,
		logger: slog.Default().With("component", "extract.vision"),
	}
}

func (v *VisionExtractor) Name() string { return "vision" }

func (v *VisionExtractor) Extract(ctx context.Context, target models.ScrapeTarget, artifact *models.CaptureArtifact) (*models.ExtractionResult, error) {
	prompt := buildVisionPrompt(target.ProductName)

	raw, err := v.client.DescribeImage(ctx, artifact.Image, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to describe screenshot: %w", err)
	}

	result, err := parseVisionResponse(raw)
	if err != nil {
		return nil, err
	}

	v.logger.Debug("extracted price data",
		"product_id", target.ProductID,
		"platform", target.PlatformName,
		"price", result.Price.String(),
		"currency", result.Currency,
		"availability", result.Availability,
		"confidence", result.Confidence)

	return result, nil
}

type visionResponse struct {
	Price             any      `json:"price"`
	Currency          string   `json:"currency"`
	Availability      string   `json:"availability"`
	SellerName        string   `json:"seller_name"`
	QuantityAvailable *int     `json:"quantity_available"`
	Confidence        *float64 `json:"confidence"`
}

func parseVisionResponse(raw string) (*models.ExtractionResult, error) {
	jsonStr := stripCodeFence(raw)

	dec := json.NewDecoder(strings.NewReader(jsonStr))
	dec.UseNumber()

	var resp visionResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, &ParseError{Strategy: "vision", Detail: "response is not valid JSON", Err: err}
	}

	if resp.Price == nil {
		return nil, &ParseError{Strategy: "vision", Detail: "no price in response"}
	}

	var price decimal.Decimal
	switch p := resp.Price.(type) {
	case json.Number:
		d, err := decimal.NewFromString(p.String())
		if err != nil {
			return nil, &ParseError{Strategy: "vision", Detail: "price is not numeric", Err: err}
		}
		price = d
	case string:
		d, err := parsePriceText(p)
		if err != nil {
			return nil, &ParseError{Strategy: "vision", Detail: "price is not numeric", Err: err}
		}
		price = d
	default:
		return nil, &ParseError{Strategy: "vision", Detail: fmt.Sprintf("unexpected price type %T", resp.Price)}
	}

	confidence := 1.0
	if resp.Confidence != nil {
		confidence = *resp.Confidence
	}

	availability := resp.Availability
	if availability == "" {
		availability = "Unknown"
	}

	return &models.ExtractionResult{
		Price:        price,
		Currency:     resp.Currency,
		Availability: availability,
		Seller:       resp.SellerName,
		Quantity:     resp.QuantityAvailable,
		Confidence:   confidence,
		RawResponse:  raw,
	}, nil
}

func buildVisionPrompt(productName string) string {
	productContext := ""
	if productName != "" {
		productContext = fmt.Sprintf(" for product '%s'", productName)
	}

	return fmt.Sprintf(`You are analyzing a product page screenshot%s.

Extract the following information and return it as valid JSON:

1. "price": The current/sale price as a decimal number (e.g., 5499.00). Look for the main SALE price or CURRENT price, NOT the original/crossed-out price. This is usually the largest price displayed.

2. "currency": The currency code (e.g., "MYR", "RM", "USD", "AUD", "CNY", "SGD", "EUR", "GBP")

3. "availability": Stock status. Look carefully for stock information, which is typically located:
   - Directly BELOW the price
   - Near "Add to Cart" or "Buy Now" button
   - In a box or highlighted section

   Return ONE of these values based on what you see:
   - "In Stock" - if you see: "In Stock", "Available", "X units available", "X left", "Ready to Ship", "Ships Today"
   - "Out of Stock" - if you see: "Out of Stock", "Sold Out", "Unavailable", "Currently Unavailable", "Notify Me", "Email When Available"
   - "Pre-Order" - if you see: "Pre-Order", "Coming Soon", "Available for Pre-Order"
   - "Limited Stock" - if you see: "Only X left", "Limited Quantity", "Low Stock", "Hurry, X remaining"
   - "Unknown" - if you cannot find any stock information

4. "seller_name": The shop/seller name if visible (e.g., "Official Store", seller username on eBay)

5. "quantity_available": If you can see a specific number like "5 units left", extract that number. Otherwise set to null.

6. "confidence": Your confidence in the extracted price as a number between 0 and 1.

Important Guidelines:
- Return ONLY valid JSON, no other text or explanations
- If you cannot find a value, use null (except availability should be "Unknown")
- Price should be a number without currency symbols or commas
- Look for the prominent sale/current price, ignore original/strikethrough prices
- Stock status is critical, look thoroughly near the price section

Example response format:
{"price": 5499.00, "currency": "MYR", "availability": "In Stock", "seller_name": "Official Store", "quantity_available": null, "confidence": 0.95}

Now analyze this product page carefully:`, productContext)
}

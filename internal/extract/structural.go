package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/pricescout/pricescout/internal/models"
)

// Confidence assigned by structural extraction. Machine-readable
// structured data beats scraping visible text.
const (
	structuredDataConfidence = 0.95
	selectorConfidence       = 0.8
)

// StructuralExtractor parses the rendered HTML with per-platform
// selectors. It is the fallback when vision is unavailable; selectors
// drift with site redesigns, so every miss is a typed error the
// orchestrator can report.
type StructuralExtractor struct {
	logger *slog.Logger
}

func NewStructuralExtractor() *StructuralExtractor {
	return &StructuralExtractor{
		logger: slog.Default().With("component", "extract.structural"),
	}
}

func (s *StructuralExtractor) Name() string { return "structural" }

func (s *StructuralExtractor) Extract(ctx context.Context, target models.ScrapeTarget, artifact *models.CaptureArtifact) (*models.ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(artifact.HTML))
	if err != nil {
		return nil, &ParseError{Strategy: "structural", Detail: "failed to parse html", Err: err}
	}

	platform := strings.ToLower(target.PlatformName)
	switch {
	case strings.Contains(platform, "lazada"):
		return s.extractLazada(doc, target)
	case strings.Contains(platform, "ebay"):
		return s.extractEbay(doc, target)
	case strings.Contains(platform, "aliexpress"):
		return s.extractAliexpress(doc, target)
	default:
		return nil, &SelectorNotFoundError{
			Platform: target.PlatformName,
			Detail:   "no selector set registered for this platform",
		}
	}
}

func (s *StructuralExtractor) extractLazada(doc *goquery.Document, target models.ScrapeTarget) (*models.ExtractionResult, error) {
	priceSel := doc.Find("span.pdp-price_type_normal").First()
	if priceSel.Length() == 0 {
		priceSel = doc.Find("span.pdp-product-price").First()
	}
	if priceSel.Length() == 0 {
		priceSel = doc.Find("span.price").First()
	}
	if priceSel.Length() == 0 {
		return nil, &SelectorNotFoundError{Platform: target.PlatformName, Detail: "price element not found"}
	}

	price, err := parsePriceText(priceSel.Text())
	if err != nil {
		return nil, &ParseError{Strategy: "structural", Detail: "lazada price text", Err: err}
	}

	availability := "In Stock"
	stockText := strings.ToLower(doc.Find("div.stock-status, span.stock").First().Text())
	if strings.Contains(stockText, "out of stock") || strings.Contains(stockText, "sold out") {
		availability = "Out of Stock"
	}

	seller := strings.TrimSpace(doc.Find("a.seller-name, div.seller-info").First().Text())

	return &models.ExtractionResult{
		Price:        price,
		Currency:     "MYR",
		Availability: availability,
		Seller:       seller,
		Confidence:   selectorConfidence,
	}, nil
}

type jsonLDProduct struct {
	Offers json.RawMessage `json:"offers"`
}

type jsonLDOffer struct {
	Price         any    `json:"price"`
	PriceCurrency string `json:"priceCurrency"`
}

func (s *StructuralExtractor) extractEbay(doc *goquery.Document, target models.ScrapeTarget) (*models.ExtractionResult, error) {
	var price decimal.Decimal
	currency := "AUD"
	confidence := 0.0

	// Structured data first: eBay embeds offers in JSON-LD.
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var product jsonLDProduct
		if err := json.Unmarshal([]byte(sel.Text()), &product); err != nil {
			return true
		}
		if len(product.Offers) == 0 {
			return true
		}

		var offer jsonLDOffer
		if err := json.Unmarshal(product.Offers, &offer); err != nil {
			return true
		}
		if offer.Price == nil {
			return true
		}

		p, err := parsePriceText(fmt.Sprint(offer.Price))
		if err != nil {
			return true
		}

		price = p
		if offer.PriceCurrency != "" {
			currency = offer.PriceCurrency
		}
		confidence = structuredDataConfidence
		return false
	})

	if confidence == 0 {
		priceSel := doc.Find("span.ux-textspans").First()
		if priceSel.Length() == 0 {
			priceSel = doc.Find(`div[itemprop="price"]`).First()
		}
		if priceSel.Length() == 0 {
			priceSel = doc.Find("span.display-price").First()
		}
		if priceSel.Length() == 0 {
			return nil, &SelectorNotFoundError{Platform: target.PlatformName, Detail: "no JSON-LD offers and price element not found"}
		}

		p, err := parsePriceText(priceSel.Text())
		if err != nil {
			return nil, &ParseError{Strategy: "structural", Detail: "ebay price text", Err: err}
		}
		price = p
		confidence = selectorConfidence
	}

	availability := "Unknown"
	availText := strings.ToLower(doc.Find("div.d-quantity__availability, span.ux-qty").First().Text())
	switch {
	case strings.Contains(availText, "out of stock"), strings.Contains(availText, "sold out"):
		availability = "Out of Stock"
	case strings.Contains(availText, "available"), strings.Contains(availText, "in stock"):
		availability = "In Stock"
	}

	seller := strings.TrimSpace(doc.Find("span.ux-seller-section__item--seller, a.seller-persona").First().Text())

	return &models.ExtractionResult{
		Price:        price,
		Currency:     currency,
		Availability: availability,
		Seller:       seller,
		Confidence:   confidence,
	}, nil
}

func (s *StructuralExtractor) extractAliexpress(doc *goquery.Document, target models.ScrapeTarget) (*models.ExtractionResult, error) {
	priceSel := doc.Find("span.product-price-value").First()
	if priceSel.Length() == 0 {
		priceSel = doc.Find(`span[itemprop="price"]`).First()
	}
	if priceSel.Length() == 0 {
		priceSel = doc.Find("div.product-price").First()
	}
	if priceSel.Length() == 0 {
		return nil, &SelectorNotFoundError{Platform: target.PlatformName, Detail: "price element not found"}
	}

	priceText := priceSel.Text()
	price, err := parsePriceText(priceText)
	if err != nil {
		return nil, &ParseError{Strategy: "structural", Detail: "aliexpress price text", Err: err}
	}

	currency := "USD"
	if strings.Contains(priceText, "€") {
		currency = "EUR"
	}

	availability := "In Stock"
	stockText := strings.ToLower(doc.Find("span.product-quantity-info").First().Text())
	switch {
	case strings.Contains(stockText, "out of stock"), strings.Contains(stockText, "sold out"):
		availability = "Out of Stock"
	case strings.Contains(stockText, "only") && strings.Contains(stockText, "left"):
		availability = "Limited Stock"
	}

	seller := strings.TrimSpace(doc.Find("a.shop-name, span.shop-name").First().Text())

	return &models.ExtractionResult{
		Price:        price,
		Currency:     currency,
		Availability: availability,
		Seller:       seller,
		Confidence:   selectorConfidence,
	}, nil
}

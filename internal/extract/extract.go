package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pricescout/pricescout/internal/models"
)

// Extractor turns a capture artifact into a structured extraction
// result. Implementations never merge outputs with another variant
// inside one attempt; strategy switching happens between attempts.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, target models.ScrapeTarget, artifact *models.CaptureArtifact) (*models.ExtractionResult, error)
}

// ParseError means a response or page was obtained but its content
// could not be turned into a usable result. A retry can succeed since
// model output is not deterministic.
type ParseError struct {
	Strategy string
	Detail   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s extraction failed: %s: %v", e.Strategy, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s extraction failed: %s", e.Strategy, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SelectorNotFoundError means a structural extractor's selectors no
// longer match the page layout.
type SelectorNotFoundError struct {
	Platform string
	Detail   string
}

func (e *SelectorNotFoundError) Error() string {
	return fmt.Sprintf("structural extraction on %s failed: %s", e.Platform, e.Detail)
}

var nonPrice = regexp.MustCompile(`[^\d.]`)

// parsePriceText strips currency symbols and separators from a price
// string ("RM 2,399.00" -> 2399.00).
func parsePriceText(text string) (decimal.Decimal, error) {
	cleaned := nonPrice.ReplaceAllString(text, "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no digits in %q", text)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable price %q: %w", text, err)
	}
	return d, nil
}

// stripCodeFence unwraps a markdown code block if the text is wrapped
// in one. Models often fence their JSON despite being told not to.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	return text
}

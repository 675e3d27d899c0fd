package scrape

import (
	"errors"
	"fmt"

	"github.com/pricescout/pricescout/internal/ai"
	"github.com/pricescout/pricescout/internal/browser"
	"github.com/pricescout/pricescout/internal/currency"
	"github.com/pricescout/pricescout/internal/extract"
)

// ValidationError means extracted data failed a sanity check. Retrying
// the same page cannot fix bad data, so these end the target.
type ValidationError struct {
	Field  string
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed on %s: %s: %v", e.Field, e.Detail, e.Err)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError wraps a gateway failure while saving a record.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist record: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// isRetryable classifies an attempt error. Transient conditions
// (network, slow pages, flaky model output) earn another attempt;
// data problems and storage failures do not.
func isRetryable(err error) bool {
	var (
		navErr     *browser.NavigationError
		timeoutErr *browser.TimeoutError
		renderErr  *browser.RenderError
		modelErr   *ai.ModelUnavailableError
		parseErr   *extract.ParseError
	)
	switch {
	case errors.As(err, &navErr),
		errors.As(err, &timeoutErr),
		errors.As(err, &renderErr),
		errors.As(err, &modelErr),
		errors.As(err, &parseErr):
		return true
	}

	var (
		validationErr *ValidationError
		persistErr    *PersistenceError
		currencyErr   currency.UnknownCurrencyError
	)
	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &persistErr),
		errors.As(err, &currencyErr):
		return false
	}

	// Selector drift is deterministic for a given page; a second pass
	// over the same layout finds the same nothing. Still, the page may
	// render differently on a fresh capture, so treat it like a parse
	// problem and allow the retry to recapture.
	var selectorErr *extract.SelectorNotFoundError
	if errors.As(err, &selectorErr) {
		return true
	}

	return false
}

// errorType labels an error for metrics.
func errorType(err error) string {
	var (
		navErr        *browser.NavigationError
		timeoutErr    *browser.TimeoutError
		renderErr     *browser.RenderError
		modelErr      *ai.ModelUnavailableError
		parseErr      *extract.ParseError
		selectorErr   *extract.SelectorNotFoundError
		validationErr *ValidationError
		persistErr    *PersistenceError
	)
	switch {
	case errors.As(err, &navErr):
		return "navigation"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &renderErr):
		return "render"
	case errors.As(err, &modelErr):
		return "model_unavailable"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &selectorErr):
		return "selector_not_found"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &persistErr):
		return "persistence"
	default:
		return "unknown"
	}
}

package browser

import (
	"fmt"
	"time"
)

// NavigationError means the page could not be reached at all
// (DNS, connection refused, bad URL, aborted navigation).
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// TimeoutError means a capture stage exceeded its deadline.
type TimeoutError struct {
	URL     string
	Stage   string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s of %s timed out after %s: %v", e.Stage, e.URL, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// RenderError means the page loaded but a usable artifact could not be
// produced from it.
type RenderError struct {
	URL string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render artifact for %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

package browser

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.CaptureTimeout != 30*time.Second {
		t.Errorf("Expected capture timeout to be 30s, got %v", opts.CaptureTimeout)
	}

	if opts.SettleWait != 5*time.Second {
		t.Errorf("Expected settle wait to be 5s, got %v", opts.SettleWait)
	}

	if opts.ViewportWidth != 1280 || opts.ViewportHeight != 1024 {
		t.Errorf("Expected viewport to be 1280x1024, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}

	if opts.Locale != "en-MY" {
		t.Errorf("Expected locale to be en-MY, got %s", opts.Locale)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("net::ERR_NAME_NOT_RESOLVED")

	tests := []struct {
		name string
		err  error
	}{
		{"navigation", &NavigationError{URL: "https://example.com/p/1", Err: cause}},
		{"timeout", &TimeoutError{URL: "https://example.com/p/1", Stage: "navigation", Timeout: 30 * time.Second, Err: cause}},
		{"render", &RenderError{URL: "https://example.com/p/1", Err: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, cause) {
				t.Errorf("expected %T to unwrap to the cause", tt.err)
			}
			if tt.err.Error() == "" {
				t.Errorf("expected non-empty message for %T", tt.err)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	if !isTimeout(errors.New("playwright: Timeout 30000ms exceeded")) {
		t.Error("expected playwright timeout message to classify as timeout")
	}
	if isTimeout(errors.New("net::ERR_CONNECTION_REFUSED")) {
		t.Error("expected connection error not to classify as timeout")
	}
	if isTimeout(nil) {
		t.Error("expected nil not to classify as timeout")
	}
}

package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/pricescout/pricescout/internal/models"
)

// Capturer navigates to product pages and produces screenshot plus
// rendered-HTML artifacts. One shared browser context, one page per
// capture; pages never outlive a single Capture call.
type Capturer struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	CaptureTimeout time.Duration
	SettleWait     time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		CaptureTimeout: 30 * time.Second,
		SettleWait:     5 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1280,
		ViewportHeight: 1024,
		AcceptLanguage: "en-MY,en;q=0.9,ms;q=0.8",
		TimezoneID:     "Asia/Kuala_Lumpur",
		Locale:         "en-MY",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Encoding": "gzip, deflate, br",
			"DNT":             "1",
		},
	}
}

func New(opts *Options) (*Capturer, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
			"--user-agent=" + opts.UserAgent,
		},
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: opts.ExtraHeaders,
	}

	bctx, err := b.NewContext(contextOpts)
	if err != nil {
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Capturer{
		pw:      pw,
		browser: b,
		context: bctx,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// Capture navigates to url, waits for the page to settle (product
// prices on these sites render from JS well after domcontentloaded)
// and returns a screenshot plus the rendered HTML.
func (c *Capturer) Capture(ctx context.Context, url string) (*models.CaptureArtifact, error) {
	page, err := c.context.NewPage()
	if err != nil {
		return nil, &RenderError{URL: url, Err: fmt.Errorf("failed to create page: %w", err)}
	}
	defer func() {
		if err := page.Close(); err != nil {
			c.logger.Warn("failed to close page", "url", url, "error", err)
		}
	}()

	page.SetDefaultTimeout(float64(c.opts.CaptureTimeout.Milliseconds()))

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(c.opts.CaptureTimeout.Milliseconds())),
	}); err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: url, Stage: "navigation", Timeout: c.opts.CaptureTimeout, Err: err}
		}
		return nil, &NavigationError{URL: url, Err: err}
	}

	// Let client-side rendering finish before the snapshot.
	select {
	case <-ctx.Done():
		return nil, &NavigationError{URL: url, Err: ctx.Err()}
	case <-time.After(c.opts.SettleWait):
	}

	image, err := page.Screenshot(playwright.PageScreenshotOptions{
		Type:     playwright.ScreenshotTypePng,
		FullPage: playwright.Bool(false),
	})
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: url, Stage: "screenshot", Timeout: c.opts.CaptureTimeout, Err: err}
		}
		return nil, &RenderError{URL: url, Err: fmt.Errorf("failed to take screenshot: %w", err)}
	}

	html, err := page.Content()
	if err != nil {
		return nil, &RenderError{URL: url, Err: fmt.Errorf("failed to read page content: %w", err)}
	}

	return &models.CaptureArtifact{
		Image:      image,
		HTML:       html,
		Width:      c.opts.ViewportWidth,
		Height:     c.opts.ViewportHeight,
		CapturedAt: time.Now().UTC(),
		SourceURL:  url,
	}, nil
}

func (c *Capturer) Close() error {
	var errs []error

	if c.context != nil {
		if err := c.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if c.browser != nil {
		if err := c.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if c.pw != nil {
		if err := c.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

func isTimeout(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Timeout")
}

package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	// Selector every product page is waited for.
	PageReadySelector = "body"
	// Selector a catalog page is waited for.
	CatalogReadySelector = "a.product-card"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	CatalogTimeout time.Duration
	// Extra wait after the ready selector appears, for late scripts.
	SettleMin      time.Duration
	SettleMax      time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        25 * time.Second,
		CatalogTimeout: 30 * time.Second,
		SettleMin:      1500 * time.Millisecond,
		SettleMax:      2500 * time.Millisecond,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "ru-RU,ru;q=0.9,en;q=0.8",
		TimezoneID:     "Europe/Moscow",
		Locale:         "ru-RU",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-notifications",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--start-maximized",
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
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
		ExtraHttpHeaders: headers,
	}

	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: bctx,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

// Fetch loads a product page and returns its rendered HTML.
func (b *Browser) Fetch(ctx context.Context, url string) (string, error) {
	return b.FetchWhenReady(ctx, url, PageReadySelector, b.opts.Timeout)
}

// FetchCatalog loads a catalog page and waits until product cards are present.
func (b *Browser) FetchCatalog(ctx context.Context, url string) (string, error) {
	return b.FetchWhenReady(ctx, url, CatalogReadySelector, b.opts.CatalogTimeout)
}

// FetchWhenReady navigates to url, waits up to timeout for selector to be
// attached, lets the page settle and returns the page HTML. The page is
// closed early if ctx is cancelled.
func (b *Browser) FetchWhenReady(ctx context.Context, url, selector string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	page, err := b.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create new page: %w", err)
	}
	defer page.Close()
	stop := context.AfterFunc(ctx, func() { page.Close() })
	defer stop()

	ms := float64(timeout.Milliseconds())
	page.SetDefaultTimeout(ms)

	b.logger.Debug("navigating", "url", url)
	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms),
	})
	if err != nil {
		return "", b.wrap(ctx, fmt.Errorf("failed to navigate to %s: %w", url, err))
	}
	if resp != nil && resp.Status() >= 400 {
		return "", fmt.Errorf("unexpected status %d for %s", resp.Status(), url)
	}

	err = page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(ms),
	})
	if err != nil {
		return "", b.wrap(ctx, fmt.Errorf("timed out waiting for %q on %s: %w", selector, url, err))
	}

	if err := settle(ctx, b.opts.SettleMin, b.opts.SettleMax); err != nil {
		return "", err
	}

	content, err := page.Content()
	if err != nil {
		return "", b.wrap(ctx, fmt.Errorf("failed to get page content: %w", err))
	}

	return content, nil
}

// wrap reports the context error instead of the playwright error caused by
// closing the page on cancellation.
func (b *Browser) wrap(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return err
}

func settle(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

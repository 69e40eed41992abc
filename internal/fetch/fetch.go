package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
)

const maxPageBytes = 10 << 20

// HTTPFetcher downloads pages without a browser. Pages served in a legacy
// encoding (windows-1251 is common on older shop pages) are decoded to UTF-8
// using the Content-Type header and <meta> declarations.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	language  string
	logger    *slog.Logger
}

type Options struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
}

func NewHTTPFetcher(opts Options, logger *slog.Logger) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 25 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		language:  opts.AcceptLanguage,
		logger:    logger.With("component", "http_fetcher"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	body, contentType, err := f.get(ctx, url, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", err
	}
	defer body.Close()

	reader, err := charset.NewReader(io.LimitReader(body, maxPageBytes), contentType)
	if err != nil {
		return "", fmt.Errorf("failed to detect charset of %s: %w", url, err)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}

	f.logger.Debug("fetched page", "url", url, "bytes", len(data))
	return string(data), nil
}

// FetchCatalog is Fetch; plain HTTP has nothing to wait for.
func (f *HTTPFetcher) FetchCatalog(ctx context.Context, url string) (string, error) {
	return f.Fetch(ctx, url)
}

// Download returns the raw body of url, for instance an image. The caller
// closes the body.
func (f *HTTPFetcher) Download(ctx context.Context, url string) (io.ReadCloser, string, error) {
	return f.get(ctx, url, "*/*")
}

func (f *HTTPFetcher) get(ctx context.Context, url, accept string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.language != "" {
		req.Header.Set("Accept-Language", f.language)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/catalog-scraper/internal/parser"
)

// CatalogCrawler collects product page links from catalog pages.
type CatalogCrawler struct {
	fetcher CatalogFetcher
	pauser  Pauser
	baseURL string
	logger  *slog.Logger
}

func NewCatalogCrawler(fetcher CatalogFetcher, pauser Pauser, baseURL string, logger *slog.Logger) *CatalogCrawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogCrawler{
		fetcher: fetcher,
		pauser:  pauser,
		baseURL: baseURL,
		logger:  logger.With("component", "catalog_crawler"),
	}
}

// CollectLinks visits every catalog and returns the unique product links in
// the order they were first seen. A catalog that fails is logged and
// skipped; the call only fails when the context is cancelled or nothing at
// all was found.
func (c *CatalogCrawler) CollectLinks(ctx context.Context, catalogURLs []string) ([]string, error) {
	if len(catalogURLs) == 0 {
		return nil, ErrNoCatalogs
	}

	seen := make(map[string]bool)
	var links []string
	var failures []error

	for i, catalogURL := range catalogURLs {
		if err := ctx.Err(); err != nil {
			return links, err
		}

		found, err := c.collectOne(ctx, catalogURL)
		if err != nil {
			if ctx.Err() != nil {
				return links, ctx.Err()
			}
			c.logger.Error("failed to collect catalog", "url", catalogURL, "error", err)
			failures = append(failures, err)
		}

		added := 0
		for _, link := range found {
			if !seen[link] {
				seen[link] = true
				links = append(links, link)
				added++
			}
		}
		c.logger.Info("catalog collected", "url", catalogURL, "found", len(found), "new", added)

		if c.pauser != nil && i < len(catalogURLs)-1 {
			if err := c.pauser.Pause(ctx); err != nil {
				return links, err
			}
		}
	}

	c.logger.Info("link collection finished", "catalogs", len(catalogURLs), "links", len(links))

	if len(links) == 0 {
		return nil, errors.Join(append([]error{ErrNoProductCards}, failures...)...)
	}
	return links, nil
}

func (c *CatalogCrawler) collectOne(ctx context.Context, catalogURL string) ([]string, error) {
	html, err := c.fetcher.FetchCatalog(ctx, catalogURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	links, err := parser.ParseCatalogLinks(html, c.baseURL)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%s: %w", catalogURL, ErrNoProductCards)
	}
	return links, nil
}

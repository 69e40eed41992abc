package scraper

import (
	"context"
	"errors"
)

var (
	ErrNoProductCards = errors.New("no product cards found")
	ErrNoCatalogs     = errors.New("no catalog URLs configured")
)

// CatalogFetcher returns the HTML of a catalog listing page.
type CatalogFetcher interface {
	FetchCatalog(ctx context.Context, url string) (string, error)
}

// Pauser is called between catalog pages.
type Pauser interface {
	Pause(ctx context.Context) error
}

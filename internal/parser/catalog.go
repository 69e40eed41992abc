package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const productCardSelector = "a.product-card[href]"

// ParseCatalogLinks returns the product card links of a catalog page,
// resolved against baseURL, without duplicates and in page order.
func ParseCatalogLinks(html, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find(productCardSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		link := base.ResolveReference(ref).String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})

	return links, nil
}

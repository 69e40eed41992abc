package parser

type Parser interface {
	ParseProductPage(html, url string) (*Extraction, error)
}

var _ Parser = (*Extractor)(nil)

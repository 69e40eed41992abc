package parser

import "github.com/PuerkitoBio/goquery"

// Strategy is one way of finding a field. Strategies for a field are tried
// in order and the first one reporting ok wins.
type Strategy[T any] struct {
	Name    string
	Extract func(doc *goquery.Document) (T, bool)
}

// firstOf runs strategies in order and returns the first present value
// together with the name of the strategy that produced it.
func firstOf[T any](doc *goquery.Document, strategies []Strategy[T]) (T, string, bool) {
	for _, s := range strategies {
		if v, ok := s.Extract(doc); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

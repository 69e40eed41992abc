package parser

import (
	"strings"

	"golang.org/x/net/html"
)

var invisibleTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// joinedText returns the trimmed visible text nodes under n joined with
// single spaces. Script-like elements, comments and empty fragments are
// skipped.
func joinedText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if invisibleTags[n.Data] {
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

// elementsAfter calls fn for every element named tag that follows mark in
// document order, stopping when fn returns false. Ancestors of mark are not
// visited.
func elementsAfter(root, mark *html.Node, tag string, fn func(*html.Node) bool) {
	passed := false
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n == mark {
			passed = true
		} else if passed && n.Type == html.ElementNode && n.Data == tag {
			if !fn(n) {
				return false
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
}

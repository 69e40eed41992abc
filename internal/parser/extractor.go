package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/textnorm"
	"golang.org/x/net/html"
)

const (
	descriptionMarker    = "О товаре"
	descriptionMinLength = 120

	characteristicsRowSelector = "div.grid.grid-cols-2"
	jsonLDSelector             = `script[type="application/ld+json"]`
)

// Field names used as keys in Extraction.Sources.
const (
	FieldTitle           = "title"
	FieldPrice           = "price"
	FieldDescription     = "description"
	FieldCharacteristics = "characteristics"
	FieldImageURL        = "image_url"
)

// Extraction is a raw record plus the name of the strategy that filled each
// field. Missing fields have no entry in Sources.
type Extraction struct {
	Record  *models.ProductRecord
	Sources map[string]string
}

// Extractor pulls product fields out of a parsed product page. It holds no
// state beyond its strategy lists and is safe for concurrent use.
type Extractor struct {
	price           []Strategy[int64]
	title           []Strategy[string]
	description     []Strategy[string]
	characteristics []Strategy[models.Characteristics]
	image           []Strategy[string]
}

func NewExtractor() *Extractor {
	return &Extractor{
		price: []Strategy[int64]{
			{Name: "json-ld", Extract: priceFromJSONLD},
			{Name: "text", Extract: priceFromText},
		},
		title: []Strategy[string]{
			{Name: "h1", Extract: titleFromHeading},
		},
		description: []Strategy[string]{
			{Name: "section", Extract: descriptionFromSection},
		},
		characteristics: []Strategy[models.Characteristics]{
			{Name: "grid", Extract: characteristicsFromGrid},
		},
		image: []Strategy[string]{
			{Name: "img", Extract: imageFromTag},
		},
	}
}

// ParseProductPage parses html and extracts the product found at url. The
// image URL is resolved through the CDN decoder. Only an unparseable
// document is an error; missing fields are left nil.
func (e *Extractor) ParseProductPage(html, url string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	ex := e.ExtractDetailed(doc, url)
	ex.Record.ImageURL = textnorm.ResolveImageURL(ex.Record.ImageURL)
	return ex, nil
}

// Extract returns the raw, uncleaned record for doc.
func (e *Extractor) Extract(doc *goquery.Document, url string) *models.ProductRecord {
	return e.ExtractDetailed(doc, url).Record
}

func (e *Extractor) ExtractDetailed(doc *goquery.Document, url string) *Extraction {
	rec := &models.ProductRecord{URL: url}
	sources := make(map[string]string)

	if v, src, ok := firstOf(doc, e.title); ok {
		rec.Title = &v
		sources[FieldTitle] = src
	}
	if v, src, ok := firstOf(doc, e.price); ok {
		rec.Price = &v
		sources[FieldPrice] = src
	}
	if v, src, ok := firstOf(doc, e.description); ok {
		rec.Description = &v
		sources[FieldDescription] = src
	}
	if v, src, ok := firstOf(doc, e.characteristics); ok {
		rec.Characteristics = v
		sources[FieldCharacteristics] = src
	} else {
		rec.Characteristics = models.NewCharacteristics()
	}
	if v, src, ok := firstOf(doc, e.image); ok {
		rec.ImageURL = &v
		sources[FieldImageURL] = src
	}

	return &Extraction{Record: rec, Sources: sources}
}

func priceFromJSONLD(doc *goquery.Document) (int64, bool) {
	var price int64
	found := false

	doc.Find(jsonLDSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		dec := json.NewDecoder(strings.NewReader(s.Text()))
		dec.UseNumber()

		var block map[string]any
		if err := dec.Decode(&block); err != nil {
			return true
		}
		offers, ok := block["offers"].(map[string]any)
		if !ok {
			return true
		}
		if p, ok := offerPrice(offers["price"]); ok {
			price, found = p, true
			return false
		}
		return true
	})

	return price, found
}

func offerPrice(v any) (int64, bool) {
	var f float64
	var err error

	switch p := v.(type) {
	case json.Number:
		f, err = p.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(p), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	f = math.Trunc(f)
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

var rublePricePattern = regexp.MustCompile(`(\d[\d\s\x{00A0}\x{202F}]*)[\s\x{00A0}\x{202F}]*₽`)

func priceFromText(doc *goquery.Document) (int64, bool) {
	if len(doc.Nodes) == 0 {
		return 0, false
	}
	text := joinedText(doc.Nodes[0])

	m := rublePricePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m[1])

	price, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func titleFromHeading(doc *goquery.Document) (string, bool) {
	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return "", false
	}
	title := textnorm.Normalize(joinedText(h1.Get(0)))
	return title, title != ""
}

func descriptionFromSection(doc *goquery.Document) (string, bool) {
	heading := doc.Find("h2").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), descriptionMarker)
	}).First()
	if heading.Length() == 0 || len(doc.Nodes) == 0 {
		return "", false
	}

	var description string
	elementsAfter(doc.Nodes[0], heading.Get(0), "div", func(n *html.Node) bool {
		text := joinedText(n)
		if utf8.RuneCountInString(text) > descriptionMinLength {
			description = textnorm.Normalize(text)
			return false
		}
		return true
	})

	return description, description != ""
}

func characteristicsFromGrid(doc *goquery.Document) (models.Characteristics, bool) {
	rows := doc.Find(characteristicsRowSelector)
	if rows.Length() == 0 {
		return models.Characteristics{}, false
	}

	chars := models.NewCharacteristics()
	rows.Each(func(_ int, row *goquery.Selection) {
		cols := row.ChildrenFiltered("div")
		if cols.Length() != 2 {
			return
		}
		key := textnorm.Normalize(joinedText(cols.Get(0)))
		value := textnorm.Normalize(joinedText(cols.Get(1)))
		chars.Set(key, value)
	})

	return chars, true
}

func imageFromTag(doc *goquery.Document) (string, bool) {
	return doc.Find("img[src]").First().Attr("src")
}

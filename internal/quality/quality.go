// Package quality scores stored product records and summarizes them.
package quality

import (
	"math"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/models"
)

// Columns reported by completeness, in output order.
var Columns = []string{"url", "title", "price", "description", "characteristics", "image_url"}

type Completeness struct {
	Column  string  `json:"column"`
	Percent float64 `json:"percent"`
}

type Consistency struct {
	DuplicateRecords int `json:"duplicate_records"`
	DuplicateURLs    int `json:"duplicate_urls"`
}

type Accuracy struct {
	NegativePrices int `json:"negative_prices"`
	ZeroPrices     int `json:"zero_prices"`
	EmptyTitles    int `json:"empty_titles"`
	ValidURLs      int `json:"valid_urls"`
	InvalidURLs    int `json:"invalid_urls"`
}

type Report struct {
	TotalRecords int            `json:"total_records"`
	Completeness []Completeness `json:"completeness"`
	Consistency  Consistency    `json:"consistency"`
	Accuracy     Accuracy       `json:"accuracy"`
	// 0 to 100, mean of completeness, consistency and accuracy scores.
	OverallScore float64 `json:"overall_score"`
}

// Assess computes the quality report for records. Nil records are ignored.
func Assess(records []*models.ProductRecord) Report {
	records = compact(records)
	r := Report{TotalRecords: len(records)}

	present := make([]int, len(Columns))
	seenURL := make(map[string]bool, len(records))
	seenRecord := make(map[string]bool, len(records))

	for _, rec := range records {
		for i, ok := range []bool{
			rec.URL != "",
			rec.Title != nil,
			rec.Price != nil,
			rec.Description != nil,
			rec.Characteristics.Len() > 0,
			rec.ImageURL != nil,
		} {
			if ok {
				present[i]++
			}
		}

		if seenURL[rec.URL] {
			r.Consistency.DuplicateURLs++
		}
		seenURL[rec.URL] = true

		fp := fingerprint(rec)
		if seenRecord[fp] {
			r.Consistency.DuplicateRecords++
		}
		seenRecord[fp] = true

		if rec.Price != nil {
			switch {
			case *rec.Price < 0:
				r.Accuracy.NegativePrices++
			case *rec.Price == 0:
				r.Accuracy.ZeroPrices++
			}
		}
		if rec.Title != nil && strings.TrimSpace(*rec.Title) == "" {
			r.Accuracy.EmptyTitles++
		}
		if strings.HasPrefix(rec.URL, "http") {
			r.Accuracy.ValidURLs++
		} else if rec.URL != "" {
			r.Accuracy.InvalidURLs++
		}
	}

	r.Completeness = make([]Completeness, len(Columns))
	var sum float64
	for i, col := range Columns {
		pct := percent(present[i], len(records))
		r.Completeness[i] = Completeness{Column: col, Percent: pct}
		sum += pct
	}

	if len(records) == 0 {
		return r
	}

	avgCompleteness := sum / float64(len(Columns))
	consistency := 100.0
	if r.Consistency.DuplicateRecords > 0 {
		consistency = 80
	}
	issues := r.Accuracy.NegativePrices + r.Accuracy.ZeroPrices + r.Accuracy.EmptyTitles
	accuracy := math.Max(0, 100-percent(issues, len(records)))

	r.OverallScore = round2((avgCompleteness + consistency + accuracy) / 3)
	return r
}

func compact(records []*models.ProductRecord) []*models.ProductRecord {
	out := make([]*models.ProductRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// fingerprint identifies a record by all of its field values.
func fingerprint(rec *models.ProductRecord) string {
	chars, _ := rec.Characteristics.MarshalJSON()
	price := "nil"
	if rec.Price != nil {
		price = fmtInt(*rec.Price)
	}
	return strings.Join([]string{
		rec.URL,
		optional(rec.Title),
		price,
		optional(rec.Description),
		string(chars),
		optional(rec.ImageURL),
	}, "\x00")
}

func optional(s *string) string {
	if s == nil {
		return "\x01"
	}
	return *s
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

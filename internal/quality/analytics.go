package quality

import (
	"math"
	"regexp"
	"sort"
	"strconv"

	"github.com/maltedev/catalog-scraper/internal/models"
)

var categoryPattern = regexp.MustCompile(`/catalog/([^/]+)/`)

type PriceStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

type PriceRanges struct {
	Under10000 int `json:"under_10000"`
	From10000  int `json:"10000_50000"`
	From50000  int `json:"50000_100000"`
	Over100000 int `json:"over_100000"`
}

// PriceDistribution splits priced products at the 33rd and 67th price
// percentiles. Prices equal to a cut point fall into the lower bucket.
type PriceDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Count is a name with the number of products it applies to.
type Count struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Share float64 `json:"percent"`
}

// Item is a stored product together with the shop it was scraped from.
type Item struct {
	Shop   string
	Record *models.ProductRecord
}

type Analysis struct {
	TotalProducts     int                `json:"total_products"`
	ShopsCount        int                `json:"shops_count"`
	Shops             []Count            `json:"products_by_shop"`
	Price             PriceStats         `json:"price"`
	PriceDistribution PriceDistribution  `json:"price_distribution"`
	PriceRanges       PriceRanges        `json:"price_ranges"`
	Categories        []Count            `json:"categories"`
	Characteristics   []Count            `json:"characteristics"`
	CommonValues      map[string][]Count `json:"most_common_characteristics"`
}

// topValues is how many values are listed per characteristic key.
const topValues = 10

// Analyze summarizes shops, prices, categories and characteristics.
// Characteristics lists at most topKeys keys; topKeys <= 0 lists all.
// CommonValues covers every key, with shares relative to the products that
// have the key.
func Analyze(items []Item, topKeys int) Analysis {
	var records []*models.ProductRecord
	shops := make(map[string]int)
	for _, it := range items {
		if it.Record == nil {
			continue
		}
		records = append(records, it.Record)
		if it.Shop != "" {
			shops[it.Shop]++
		}
	}
	a := Analysis{TotalProducts: len(records)}

	var prices []float64
	categories := make(map[string]int)
	keys := make(map[string]int)
	values := make(map[string]map[string]int)

	for _, rec := range records {
		if rec.Price != nil {
			p := *rec.Price
			prices = append(prices, float64(p))
			switch {
			case p < 10000:
				a.PriceRanges.Under10000++
			case p < 50000:
				a.PriceRanges.From10000++
			case p < 100000:
				a.PriceRanges.From50000++
			default:
				a.PriceRanges.Over100000++
			}
		}
		if cat := Category(rec.URL); cat != "" {
			categories[cat]++
		}
		for _, attr := range rec.Characteristics.Attributes() {
			keys[attr.Name]++
			if values[attr.Name] == nil {
				values[attr.Name] = make(map[string]int)
			}
			values[attr.Name][attr.Value]++
		}
	}

	a.ShopsCount = len(shops)
	a.Shops = ranked(shops, len(records), 0)
	a.Price = priceStats(prices)
	a.PriceDistribution = priceDistribution(prices)
	a.Categories = ranked(categories, len(records), 0)
	a.Characteristics = ranked(keys, len(records), topKeys)

	a.CommonValues = make(map[string][]Count, len(values))
	for key, counts := range values {
		a.CommonValues[key] = ranked(counts, keys[key], topValues)
	}
	return a
}

// Category returns the catalog slug of a product URL, or "".
func Category(url string) string {
	m := categoryPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

func priceStats(prices []float64) PriceStats {
	s := PriceStats{Count: len(prices)}
	if len(prices) == 0 {
		return s
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	var sum float64
	for _, p := range sorted {
		sum += p
	}
	s.Mean = sum / float64(len(sorted))
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Median = quantile(sorted, 0.5)
	s.Q25 = quantile(sorted, 0.25)
	s.Q75 = quantile(sorted, 0.75)

	if len(sorted) > 1 {
		var sq float64
		for _, p := range sorted {
			sq += (p - s.Mean) * (p - s.Mean)
		}
		s.Std = math.Sqrt(sq / float64(len(sorted)-1))
	}
	return s
}

func priceDistribution(prices []float64) PriceDistribution {
	var d PriceDistribution
	if len(prices) == 0 {
		return d
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	low := quantile(sorted, 0.33)
	high := quantile(sorted, 0.67)

	for _, p := range sorted {
		switch {
		case p <= low:
			d.Low++
		case p <= high:
			d.Medium++
		default:
			d.High++
		}
	}
	return d
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// ranked orders counts by count descending, then name.
func ranked(counts map[string]int, total, limit int) []Count {
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Count: n, Share: round2(percent(n, total))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func fmtInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

package quality

import (
	"strconv"
	"testing"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(url, title string, price int64) *models.ProductRecord {
	return &models.ProductRecord{
		URL:   url,
		Title: models.StringPtr(title),
		Price: models.Int64Ptr(price),
	}
}

func TestAssessEmpty(t *testing.T) {
	r := Assess(nil)
	assert.Zero(t, r.TotalRecords)
	assert.Zero(t, r.OverallScore)
	require.Len(t, r.Completeness, len(Columns))
	for _, c := range r.Completeness {
		assert.Zero(t, c.Percent)
	}
}

func TestAssessPerfectData(t *testing.T) {
	var records []*models.ProductRecord
	for _, u := range []string{"https://s/catalog/a/1/", "https://s/catalog/a/2/"} {
		rec := record(u, "Кольцо", 1000)
		rec.Description = models.StringPtr("Описание")
		rec.Characteristics = models.CharacteristicsFrom(models.Attribute{Name: "Металл", Value: "Золото"})
		rec.ImageURL = models.StringPtr("https://cdn/x.jpg")
		records = append(records, rec)
	}

	r := Assess(records)
	assert.Equal(t, 2, r.TotalRecords)
	assert.Equal(t, 100.0, r.OverallScore)
	assert.Zero(t, r.Consistency.DuplicateURLs)
	assert.Equal(t, 2, r.Accuracy.ValidURLs)
}

func TestAssessIssues(t *testing.T) {
	records := []*models.ProductRecord{
		record("https://s/1", "Кольцо", 1000),
		record("https://s/1", "Кольцо", 1000),
		record("https://s/2", " ", 0),
		record("https://s/3", "Серьги", -5),
		{URL: "/relative"},
		nil,
	}

	r := Assess(records)
	assert.Equal(t, 5, r.TotalRecords)
	assert.Equal(t, 1, r.Consistency.DuplicateURLs)
	assert.Equal(t, 1, r.Consistency.DuplicateRecords)
	assert.Equal(t, 1, r.Accuracy.NegativePrices)
	assert.Equal(t, 1, r.Accuracy.ZeroPrices)
	assert.Equal(t, 1, r.Accuracy.EmptyTitles)
	assert.Equal(t, 4, r.Accuracy.ValidURLs)
	assert.Equal(t, 1, r.Accuracy.InvalidURLs)

	byColumn := map[string]float64{}
	for _, c := range r.Completeness {
		byColumn[c.Column] = c.Percent
	}
	assert.Equal(t, 100.0, byColumn["url"])
	assert.Equal(t, 80.0, byColumn["title"])
	assert.Equal(t, 0.0, byColumn["description"])

	// completeness (100+80+80+0+0+0)/6 = 43.33, consistency 80, accuracy 100-60 = 40
	assert.InDelta(t, 54.44, r.OverallScore, 0.001)
}

func TestAnalyze(t *testing.T) {
	mk := func(shop, url string, price int64, pairs ...string) Item {
		rec := record(url, "x", price)
		rec.Characteristics = models.NewCharacteristics()
		for i := 0; i+1 < len(pairs); i += 2 {
			rec.Characteristics.Set(pairs[i], pairs[i+1])
		}
		return Item{Shop: shop, Record: rec}
	}
	items := []Item{
		mk("585zolotoy", "https://s/catalog/sergi/1/", 5000, "Металл", "Золото", "Проба", "585"),
		mk("585zolotoy", "https://s/catalog/sergi/2/", 10000, "Металл", "Золото"),
		mk("585zolotoy", "https://s/catalog/koltsa/3/", 60000, "Металл", "Серебро", "Вставка", "Фианит"),
		mk("sokolov", "https://s/product/4/", 150000),
		{Record: &models.ProductRecord{URL: "https://s/catalog/koltsa/5/"}},
		{Shop: "ghost"},
	}

	a := Analyze(items, 2)
	assert.Equal(t, 5, a.TotalProducts)

	assert.Equal(t, 2, a.ShopsCount)
	assert.Equal(t, []Count{
		{Name: "585zolotoy", Count: 3, Share: 60},
		{Name: "sokolov", Count: 1, Share: 20},
	}, a.Shops)

	assert.Equal(t, PriceRanges{Under10000: 1, From10000: 1, From50000: 1, Over100000: 1}, a.PriceRanges)
	// Cut points are 9950 and 60900.
	assert.Equal(t, PriceDistribution{Low: 1, Medium: 2, High: 1}, a.PriceDistribution)

	assert.Equal(t, 4, a.Price.Count)
	assert.Equal(t, 56250.0, a.Price.Mean)
	assert.Equal(t, 35000.0, a.Price.Median)
	assert.Equal(t, 5000.0, a.Price.Min)
	assert.Equal(t, 150000.0, a.Price.Max)
	assert.Equal(t, 8750.0, a.Price.Q25)
	assert.Equal(t, 82500.0, a.Price.Q75)
	assert.InDelta(t, 67252.63, a.Price.Std, 0.01)

	assert.Equal(t, []Count{
		{Name: "koltsa", Count: 2, Share: 40},
		{Name: "sergi", Count: 2, Share: 40},
	}, a.Categories)

	require.Len(t, a.Characteristics, 2)
	assert.Equal(t, "Металл", a.Characteristics[0].Name)
	assert.Equal(t, 3, a.Characteristics[0].Count)
	assert.Equal(t, 60.0, a.Characteristics[0].Share)

	// Values are listed for every key, not only the top ones.
	assert.Equal(t, map[string][]Count{
		"Металл": {
			{Name: "Золото", Count: 2, Share: 66.67},
			{Name: "Серебро", Count: 1, Share: 33.33},
		},
		"Проба":   {{Name: "585", Count: 1, Share: 100}},
		"Вставка": {{Name: "Фианит", Count: 1, Share: 100}},
	}, a.CommonValues)
}

func TestAnalyzeCommonValuesAreCapped(t *testing.T) {
	var items []Item
	for i := 0; i < 15; i++ {
		rec := record("https://s/catalog/koltsa/1/", "x", 1000)
		rec.Characteristics = models.CharacteristicsFrom(models.Attribute{Name: "Размер", Value: strconv.Itoa(15 + i)})
		items = append(items, Item{Shop: "585zolotoy", Record: rec})
	}

	a := Analyze(items, 0)
	assert.Len(t, a.CommonValues["Размер"], 10)
	assert.Equal(t, "15", a.CommonValues["Размер"][0].Name)
}

func TestPriceDistribution(t *testing.T) {
	assert.Equal(t, PriceDistribution{}, priceDistribution(nil))
	assert.Equal(t, PriceDistribution{Low: 3}, priceDistribution([]float64{100, 100, 100}))
	assert.Equal(t, PriceDistribution{Low: 1, Medium: 1, High: 1}, priceDistribution([]float64{300, 100, 200}))
}

func TestPriceStatsSingleValue(t *testing.T) {
	s := priceStats([]float64{42})
	assert.Equal(t, PriceStats{Count: 1, Mean: 42, Median: 42, Min: 42, Max: 42, Q25: 42, Q75: 42}, s)
}

func TestCategory(t *testing.T) {
	tests := map[string]string{
		"https://www.585zolotoy.ru/catalog/sergi-kresty/123/": "sergi-kresty",
		"https://www.585zolotoy.ru/catalog/":                  "",
		"https://www.585zolotoy.ru/product/1/":                "",
	}
	for url, want := range tests {
		assert.Equal(t, want, Category(url), url)
	}
}

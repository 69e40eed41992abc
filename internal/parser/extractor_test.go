package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productURL = "https://www.585zolotoy.ru/catalog/sergi-kresty/12345/"

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

var longParagraph = strings.Repeat("Изящные серьги из красного золота 585 пробы. ", 4)

func fullProductPage() string {
	return `<!DOCTYPE html>
<html>
<head>
	<script type="application/ld+json">{"@type": "BreadcrumbList", "itemListElement": []}</script>
	<script type="application/ld+json">{"@type": "Product", "offers": {"price": "15990.90", "priceCurrency": "RUB"}}</script>
</head>
<body>
	<img src="https://cdn.example.com/resize/aHR0cHM6Ly9mb28=.jpg" alt="main">
	<img src="https://cdn.example.com/second.jpg">
	<h1>
		Серьги-кресты   из золота
	</h1>
	<div class="price">9 990 ₽</div>
	<h2>О товаре</h2>
	<div>Артикул 1001</div>
	<div><p>` + longParagraph + `</p></div>
	<div class="grid grid-cols-2"><div>Металл</div><div>Золото</div></div>
	<div class="grid grid-cols-2"><div>Проба</div><div>585</div></div>
	<div class="grid grid-cols-2"><div>Only one column</div></div>
</body>
</html>`
}

func TestExtractFullPage(t *testing.T) {
	ex := NewExtractor().ExtractDetailed(mustDoc(t, fullProductPage()), productURL)
	rec := ex.Record

	assert.Equal(t, productURL, rec.URL)
	require.NotNil(t, rec.Title)
	assert.Equal(t, "Серьги-кресты из золота", *rec.Title)

	require.NotNil(t, rec.Price)
	assert.Equal(t, int64(15990), *rec.Price, "JSON-LD wins over page text")

	require.NotNil(t, rec.Description)
	assert.Equal(t, strings.TrimSpace(longParagraph), *rec.Description)

	assert.Equal(t, map[string]string{"Металл": "Золото", "Проба": "585"}, rec.Characteristics.Map())

	require.NotNil(t, rec.ImageURL)
	assert.Equal(t, "https://cdn.example.com/resize/aHR0cHM6Ly9mb28=.jpg", *rec.ImageURL, "extractor returns the raw src")

	assert.Equal(t, map[string]string{
		FieldTitle:           "h1",
		FieldPrice:           "json-ld",
		FieldDescription:     "section",
		FieldCharacteristics: "grid",
		FieldImageURL:        "img",
	}, ex.Sources)
}

func TestParseProductPageDecodesImage(t *testing.T) {
	ex, err := NewExtractor().ParseProductPage(fullProductPage(), productURL)
	require.NoError(t, err)
	require.NotNil(t, ex.Record.ImageURL)
	assert.Equal(t, "https://foo", *ex.Record.ImageURL)
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected int64
		source   string
		found    bool
	}{
		{
			name:     "text fallback with spaces",
			html:     `<body><span>Цена: 12 345 ₽</span></body>`,
			expected: 12345,
			source:   "text",
			found:    true,
		},
		{
			name:     "text fallback with narrow no-break space",
			html:     "<body><span>7\u202f490\u00a0₽</span></body>",
			expected: 7490,
			source:   "text",
			found:    true,
		},
		{
			name:     "text split across elements",
			html:     `<body><span>3 200</span><span>₽</span></body>`,
			expected: 3200,
			source:   "text",
			found:    true,
		},
		{
			name:     "json-ld numeric price is truncated",
			html:     `<script type="application/ld+json">{"offers": {"price": 4999.99}}</script><p>100 ₽</p>`,
			expected: 4999,
			source:   "json-ld",
			found:    true,
		},
		{
			name:     "invalid json-ld falls back to text",
			html:     `<script type="application/ld+json">{not json</script><p>2 500 ₽</p>`,
			expected: 2500,
			source:   "text",
			found:    true,
		},
		{
			name:     "json-ld without offers falls back to text",
			html:     `<script type="application/ld+json">{"@type": "Organization"}</script><p>800 ₽</p>`,
			expected: 800,
			source:   "text",
			found:    true,
		},
		{
			name:     "json-ld with offers list is skipped",
			html:     `<script type="application/ld+json">{"offers": [{"price": 10}]}</script><p>900 ₽</p>`,
			expected: 900,
			source:   "text",
			found:    true,
		},
		{
			name:     "json-ld price not numeric",
			html:     `<script type="application/ld+json">{"offers": {"price": "free"}}</script>`,
			found:    false,
		},
		{
			name:     "script text is not visible text",
			html:     `<script>var price = "500 ₽";</script><p>no price here</p>`,
			found:    false,
		},
		{
			name:     "nothing",
			html:     `<body><p>Серьги</p></body>`,
			found:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := NewExtractor().ExtractDetailed(mustDoc(t, tt.html), productURL)
			if !tt.found {
				assert.Nil(t, ex.Record.Price)
				assert.NotContains(t, ex.Sources, FieldPrice)
				return
			}
			require.NotNil(t, ex.Record.Price)
			assert.Equal(t, tt.expected, *ex.Record.Price)
			assert.Equal(t, tt.source, ex.Sources[FieldPrice])
		})
	}
}

func TestExtractTitle(t *testing.T) {
	rec := NewExtractor().Extract(mustDoc(t, `<h1> Кольцо </h1><h1>Second</h1>`), productURL)
	require.NotNil(t, rec.Title)
	assert.Equal(t, "Кольцо", *rec.Title)

	rec = NewExtractor().Extract(mustDoc(t, `<h2>Not a title</h2>`), productURL)
	assert.Nil(t, rec.Title)

	rec = NewExtractor().Extract(mustDoc(t, "<h1> \u200b </h1>"), productURL)
	assert.Nil(t, rec.Title)

	rec = NewExtractor().Extract(mustDoc(t, `<h1><style>.x{color:red}</style>Кольцо</h1>`), productURL)
	require.NotNil(t, rec.Title)
	assert.Equal(t, "Кольцо", *rec.Title)

	rec = NewExtractor().Extract(mustDoc(t, `<h1>Кольцо <b>золотое</b></h1>`), productURL)
	require.NotNil(t, rec.Title)
	assert.Equal(t, "Кольцо золотое", *rec.Title, "nested text is joined with a space")
}

func TestExtractDescription(t *testing.T) {
	t.Run("skips short blocks", func(t *testing.T) {
		html := `<h2>О товаре</h2><div>Коротко</div><div>` + longParagraph + `</div>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		require.NotNil(t, rec.Description)
		assert.Equal(t, strings.TrimSpace(longParagraph), *rec.Description)
	})

	t.Run("ignores blocks before the heading", func(t *testing.T) {
		html := `<div>` + longParagraph + `</div><h2>О товаре</h2><div>Коротко</div>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		assert.Nil(t, rec.Description)
	})

	t.Run("heading marker inside longer text", func(t *testing.T) {
		html := `<section><h2>Всё О товаре</h2></section><section><div><span>` + longParagraph + `</span></div></section>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		require.NotNil(t, rec.Description)
	})

	t.Run("exactly 120 characters is too short", func(t *testing.T) {
		html := `<h2>О товаре</h2><div>` + strings.Repeat("я", 120) + `</div>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		assert.Nil(t, rec.Description)
	})

	t.Run("121 characters qualifies", func(t *testing.T) {
		html := `<h2>О товаре</h2><div>` + strings.Repeat("я", 121) + `</div>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		require.NotNil(t, rec.Description)
		assert.Equal(t, strings.Repeat("я", 121), *rec.Description)
	})

	t.Run("script text does not count", func(t *testing.T) {
		state := `window.__STATE__ = {"items":[` + strings.Repeat(`{"id":1,"name":"ring"},`, 10) + `]}`
		html := `<h2>О товаре</h2><div><script>` + state + `</script><span>Артикул</span></div>` +
			`<div><noscript>` + longParagraph + `</noscript>Коротко</div>` +
			`<div>` + longParagraph + `</div>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		require.NotNil(t, rec.Description)
		assert.Equal(t, strings.TrimSpace(longParagraph), *rec.Description)
	})

	t.Run("no heading", func(t *testing.T) {
		html := `<h2>Доставка</h2><div>` + longParagraph + `</div>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		assert.Nil(t, rec.Description)
	})
}

func TestExtractCharacteristics(t *testing.T) {
	t.Run("normalizes keys and values", func(t *testing.T) {
		html := `<div class="grid grid-cols-2 gap-4"><div> Вес
			</div><div><span>2,5</span> <span>г</span></div></div>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		assert.Equal(t, map[string]string{"Вес": "2,5 г"}, rec.Characteristics.Map())
	})

	t.Run("script and style text is skipped", func(t *testing.T) {
		html := `<div class="grid grid-cols-2"><div><style>.k{}</style>Проба</div><div>585<script>track("585")</script></div></div>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		assert.Equal(t, map[string]string{"Проба": "585"}, rec.Characteristics.Map())
	})

	t.Run("rows need both layout classes", func(t *testing.T) {
		html := `<div class="grid"><div>Металл</div><div>Золото</div></div>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		assert.Equal(t, 0, rec.Characteristics.Len())
	})

	t.Run("only direct children count", func(t *testing.T) {
		html := `<div class="grid grid-cols-2"><div>Металл</div><section><div>Золото</div></section></div>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		assert.Equal(t, 0, rec.Characteristics.Len())
	})

	// Duplicate rows keep the last value. Kept on purpose until we know
	// whether repeated rows on the shop pages are meaningful.
	t.Run("duplicate keys last wins", func(t *testing.T) {
		html := `<div class="grid grid-cols-2"><div>Цвет</div><div>Красный</div></div>
			<div class="grid grid-cols-2"><div>Вставка</div><div>Фианит</div></div>
			<div class="grid grid-cols-2"><div>Цвет</div><div>Белый</div></div>`
		rec := NewExtractor().Extract(mustDoc(t, html), productURL)
		assert.Equal(t, []string{"Цвет", "Вставка"}, rec.Characteristics.Keys())
		v, _ := rec.Characteristics.Get("Цвет")
		assert.Equal(t, "Белый", v)
	})
}

func TestExtractImageURL(t *testing.T) {
	rec := NewExtractor().Extract(mustDoc(t, `<img alt="no src"><img src="/a.jpg"><img src="/b.jpg">`), productURL)
	require.NotNil(t, rec.ImageURL)
	assert.Equal(t, "/a.jpg", *rec.ImageURL)

	rec = NewExtractor().Extract(mustDoc(t, `<img alt="no src">`), productURL)
	assert.Nil(t, rec.ImageURL)
}

func TestExtractDoesNotPanicOnEmptyDocument(t *testing.T) {
	rec := NewExtractor().Extract(mustDoc(t, ``), productURL)
	assert.Equal(t, productURL, rec.URL)
	assert.Nil(t, rec.Title)
	assert.Nil(t, rec.Price)
	assert.Nil(t, rec.Description)
	assert.Nil(t, rec.ImageURL)
	assert.Equal(t, 0, rec.Characteristics.Len())
}

package cleaner

import (
	"unicode"
	"unicode/utf8"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/textnorm"
)

const ellipsis = "..."

type Options struct {
	MaxTitleLen       int
	MaxDescriptionLen int
}

func DefaultOptions() Options {
	return Options{
		MaxTitleLen:       500,
		MaxDescriptionLen: 10000,
	}
}

// Cleaner normalizes raw extracted records. Clean never fails and never
// mutates its input.
type Cleaner struct {
	opts Options
}

func New(opts Options) *Cleaner {
	def := DefaultOptions()
	if opts.MaxTitleLen <= len(ellipsis) {
		opts.MaxTitleLen = def.MaxTitleLen
	}
	if opts.MaxDescriptionLen <= len(ellipsis) {
		opts.MaxDescriptionLen = def.MaxDescriptionLen
	}
	return &Cleaner{opts: opts}
}

var defaultCleaner = New(DefaultOptions())

// Clean cleans rec with the default length limits.
func Clean(rec *models.ProductRecord) *models.ProductRecord {
	return defaultCleaner.Clean(rec)
}

func (c *Cleaner) Clean(rec *models.ProductRecord) *models.ProductRecord {
	if rec == nil {
		return &models.ProductRecord{Characteristics: models.NewCharacteristics()}
	}

	return &models.ProductRecord{
		URL:             rec.URL,
		Title:           cleanText(rec.Title, c.opts.MaxTitleLen),
		Price:           cleanPrice(rec.Price),
		Description:     cleanText(rec.Description, c.opts.MaxDescriptionLen),
		Characteristics: cleanCharacteristics(rec.Characteristics),
		ImageURL:        copyString(rec.ImageURL),
	}
}

func cleanText(s *string, max int) *string {
	v := textnorm.NormalizePtr(s)
	if v == nil {
		return nil
	}
	out := truncate(*v, max)
	return &out
}

// truncate cuts s to max runes, the last three being the ellipsis.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-len(ellipsis)]) + ellipsis
}

func cleanPrice(p *int64) *int64 {
	if p == nil || *p < 0 {
		return nil
	}
	return models.Int64Ptr(*p)
}

func cleanCharacteristics(in models.Characteristics) models.Characteristics {
	out := models.NewCharacteristics()
	for _, attr := range in.Attributes() {
		key := textnorm.Normalize(attr.Name)
		value := textnorm.Normalize(attr.Value)
		if key == "" || value == "" {
			continue
		}
		out.Set(capitalize(key), value)
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

package validator

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/maltedev/catalog-scraper/internal/models"
)

// ErrValidationFailed is matched by every error returned from Strict.
var ErrValidationFailed = errors.New("validation failed")

const (
	ReasonURL             = "invalid or missing product URL"
	ReasonTitle           = "invalid or missing title"
	ReasonPrice           = "invalid or missing price"
	ReasonDescription     = "description too long"
	ReasonImageURL        = "invalid image URL"
	ReasonCharacteristics = "invalid characteristics"
)

// Limits holds the policy thresholds. Lengths are in runes and measured after
// trimming surrounding whitespace.
type Limits struct {
	MinTitleLen       int
	MaxTitleLen       int
	MaxPrice          int64 // exclusive
	MaxDescriptionLen int
}

func DefaultLimits() Limits {
	return Limits{
		MinTitleLen:       3,
		MaxTitleLen:       500,
		MaxPrice:          10_000_000,
		MaxDescriptionLen: 10000,
	}
}

// ValidationError carries the reasons a record was rejected.
type ValidationError struct {
	URL     string
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation errors: " + strings.Join(e.Reasons, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

type Validator struct {
	limits Limits
}

func New(limits Limits) *Validator {
	return &Validator{limits: limits}
}

func (v *Validator) Limits() Limits {
	return v.limits
}

var defaultValidator = New(DefaultLimits())

// Validate checks rec against the default limits.
func Validate(rec *models.ProductRecord) models.ValidationResult {
	return defaultValidator.Validate(rec)
}

// Strict validates rec against the default limits and returns a
// *ValidationError if any rule fails.
func Strict(rec *models.ProductRecord) error {
	return defaultValidator.Strict(rec)
}

// Validate evaluates every rule independently. Reasons appear in rule order:
// url, title, price, description, image URL, characteristics.
func (v *Validator) Validate(rec *models.ProductRecord) models.ValidationResult {
	if rec == nil {
		rec = &models.ProductRecord{}
	}

	var reasons []string
	if !validURL(&rec.URL) {
		reasons = append(reasons, ReasonURL)
	}
	if !v.validTitle(rec.Title) {
		reasons = append(reasons, ReasonTitle)
	}
	if !v.validPrice(rec.Price) {
		reasons = append(reasons, ReasonPrice)
	}
	if !v.validDescription(rec.Description) {
		reasons = append(reasons, ReasonDescription)
	}
	if rec.ImageURL != nil && !validURL(rec.ImageURL) {
		reasons = append(reasons, ReasonImageURL)
	}
	if !validCharacteristics(rec.Characteristics) {
		reasons = append(reasons, ReasonCharacteristics)
	}

	return models.ValidationResult{
		Accepted: len(reasons) == 0,
		Reasons:  reasons,
	}
}

func (v *Validator) Strict(rec *models.ProductRecord) error {
	res := v.Validate(rec)
	if res.Accepted {
		return nil
	}
	verr := &ValidationError{Reasons: res.Reasons}
	if rec != nil {
		verr.URL = rec.URL
	}
	return verr
}

func validURL(u *string) bool {
	if u == nil {
		return false
	}
	return strings.HasPrefix(*u, "http://") || strings.HasPrefix(*u, "https://")
}

func (v *Validator) validTitle(title *string) bool {
	if title == nil {
		return false
	}
	n := utf8.RuneCountInString(strings.TrimSpace(*title))
	return n >= v.limits.MinTitleLen && n <= v.limits.MaxTitleLen
}

func (v *Validator) validPrice(price *int64) bool {
	return price != nil && *price > 0 && *price < v.limits.MaxPrice
}

func (v *Validator) validDescription(desc *string) bool {
	if desc == nil {
		return true
	}
	return utf8.RuneCountInString(strings.TrimSpace(*desc)) <= v.limits.MaxDescriptionLen
}

func validCharacteristics(c models.Characteristics) bool {
	for _, attr := range c.Attributes() {
		if strings.TrimSpace(attr.Name) == "" || strings.TrimSpace(attr.Value) == "" {
			return false
		}
	}
	return true
}

package services

import (
	"regexp"
	"strconv"
	"strings"

	"ev-price-tracker/models"
)

var (
	// priceTokenPattern finds the listing price in free text.
	priceTokenPattern = regexp.MustCompile(`\$[\d,]+`)
	// yearPattern matches a 4-digit year in the plausible production range.
	yearPattern = regexp.MustCompile(`\b20[0-2]\d\b`)
	// mileagePattern captures digits adjacent to a distance unit marker.
	mileagePattern = regexp.MustCompile(`(?i)([\d,]+)\s*mi`)
	// locationPattern matches "City Name, ST".
	locationPattern = regexp.MustCompile(`[A-Z][a-z]+(?:\s[A-Z][a-z]+)*,\s*[A-Z]{2}\b`)
	nonDigit        = regexp.MustCompile(`\D`)
)

// Persisted prices must satisfy minPrice < price <= maxPrice. Anything
// outside is junk extraction or a non-vehicle card.
const (
	minPrice = 5000
	maxPrice = 500000
)

// RejectReason labels why a fragment was discarded. Rejections are a
// normal part of ingesting noisy pages, not run errors.
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectNoPrice       RejectReason = "no_price"
	RejectPriceTooLow   RejectReason = "price_too_low"
	RejectPriceTooHigh  RejectReason = "price_too_high"
	RejectModelMismatch RejectReason = "model_mismatch"
)

// Normalizer turns raw fragments into canonical listings. It is pure:
// no I/O, no shared state.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize parses a fragment's visible text into a Listing for mdl, or
// rejects it. When strict is set, the text must mention the make or the
// model name's first word, guarding against sources that mix "similar
// vehicles" of other models into results.
func (n *Normalizer) Normalize(frag *models.RawFragment, mdl *models.Model, strict bool) (*models.Listing, RejectReason) {
	price := ParsePrice(frag.Text)
	switch {
	case price == 0:
		return nil, RejectNoPrice
	case price <= minPrice:
		return nil, RejectPriceTooLow
	case price > maxPrice:
		return nil, RejectPriceTooHigh
	}

	if strict && !mentionsModel(frag.Text, mdl) {
		return nil, RejectModelMismatch
	}

	return &models.Listing{
		ModelID:    mdl.ID,
		Source:     frag.Source,
		ExternalID: frag.ExternalID,
		Year:       ParseYear(frag.Text),
		Price:      price,
		Mileage:    ParseMileage(frag.Text),
		Location:   ParseLocation(frag.Text),
		URL:        frag.URL,
		ScrapedAt:  frag.ScrapedAt,
	}, RejectNone
}

// ParsePrice locates the price token in text and parses it to an
// integer dollar amount. 0 means unparseable and marks the fragment for
// rejection.
func ParsePrice(text string) int {
	token := priceTokenPattern.FindString(text)
	if token == "" {
		return 0
	}
	cleaned := nonDigit.ReplaceAllString(token, "")
	price, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return price
}

// ParseYear returns the first plausible model year found in text, or nil.
func ParseYear(text string) *int {
	match := yearPattern.FindString(text)
	if match == "" {
		return nil
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &year
}

// ParseMileage returns the mileage figure found next to a distance unit
// marker, or nil.
func ParseMileage(text string) *int {
	match := mileagePattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	cleaned := nonDigit.ReplaceAllString(match[1], "")
	if cleaned == "" {
		return nil
	}
	mileage, err := strconv.Atoi(cleaned)
	if err != nil {
		return nil
	}
	return &mileage
}

// ParseLocation returns a "City, ST" string found in text, or nil.
func ParseLocation(text string) *string {
	match := locationPattern.FindString(text)
	if match == "" {
		return nil
	}
	return &match
}

// mentionsModel reports whether text contains the make token or the
// first word of the model name, case-insensitively.
func mentionsModel(text string, mdl *models.Model) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, strings.ToLower(mdl.Make)) {
		return true
	}
	words := strings.Fields(mdl.Name)
	if len(words) == 0 {
		return false
	}
	return strings.Contains(lower, strings.ToLower(words[0]))
}

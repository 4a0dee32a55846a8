// Package scraper defines the marketplace source contract and the shared
// chromedp session plumbing the per-site adapters are built on.
package scraper

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"ev-price-tracker/models"
)

// Query describes one search: the model being tracked plus the location
// settings active for the run.
type Query struct {
	Make   string
	Model  string
	Zip    string
	Radius int
}

// Source is a single marketplace adapter. Implementations encapsulate
// site-specific URL construction and extraction rules; cross-cutting
// browser behavior lives in Session.
//
// FetchListings returns every fragment extracted before any failure
// together with the failure itself, so the caller can persist a partial
// batch and still surface the error once.
type Source interface {
	Name() string
	BuildQuery(q Query) string
	FetchListings(ctx context.Context, q Query) ([]*models.RawFragment, error)

	// StrictMatch reports whether results from this source can contain
	// vehicles of other models, requiring a make/model token check
	// during normalization.
	StrictMatch() bool
}

var priceTextPattern = regexp.MustCompile(`\$[\d,]+`)

// FallbackID synthesizes a deterministic identifier for a fragment whose
// page offered no stable id, hashing the visible text plus its price
// token. Not guaranteed collision-free; good enough to keep repeat
// scrapes of the same card idempotent.
func FallbackID(prefix, text string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.TrimSpace(text)))
	h.Write([]byte(priceTextPattern.FindString(text)))
	return fmt.Sprintf("%s-%d", prefix, h.Sum32()%100000)
}

// SlugFallback derives a deterministic URL slug for a model missing from
// a site's slug table: lower-cased with separators collapsed to sep.
func SlugFallback(name, sep string) string {
	r := strings.NewReplacer(" ", sep, "-", sep, ".", sep)
	return r.Replace(strings.ToLower(name))
}

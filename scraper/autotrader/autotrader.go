// Package autotrader scrapes used-vehicle listings from autotrader.com.
package autotrader

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ev-price-tracker/config"
	"ev-price-tracker/models"
	"ev-price-tracker/scraper"
	"ev-price-tracker/utils"
)

const (
	sourceName = "autotrader"
	baseURL    = "https://www.autotrader.com"
	idPrefix   = "at"
)

// readySelector covers the card markup variants Autotrader has shipped.
const readySelector = `[data-testid="listing-card"], .inventory-listing, [class*="ListingCard"]`

// urlIDPattern pulls the numeric listing id off a detail-page URL.
var urlIDPattern = regexp.MustCompile(`/(\d+)(?:\?|$)`)

// Scraper is the autotrader.com source adapter.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *scraper.Metrics
}

// New creates a ready-to-use Autotrader adapter.
func New(cfg *config.Config, logger *utils.Logger, metrics *scraper.Metrics) *Scraper {
	return &Scraper{cfg: cfg, logger: logger, metrics: metrics}
}

func (s *Scraper) Name() string { return sourceName }

// StrictMatch is false: the Autotrader search path is exact per
// make/model, so cross-contamination is not a concern.
func (s *Scraper) StrictMatch() bool { return false }

// BuildQuery builds the Autotrader search URL. The path uses plain
// lower-cased make/model segments with spaces dashed.
func (s *Scraper) BuildQuery(q scraper.Query) string {
	makeSeg := strings.ToLower(q.Make)
	modelSeg := scraper.SlugFallback(q.Model, "-")

	return fmt.Sprintf(
		"%s/cars-for-sale/all-cars/%s/%s"+
			"?zip=%s&searchRadius=%d&isNewSearch=true&marketExtension=include"+
			"&sortBy=relevance&numRecords=25",
		baseURL, makeSeg, modelSeg, q.Zip, q.Radius)
}

// FetchListings drives one scoped browser session against the search page
// and returns the extracted fragments.
func (s *Scraper) FetchListings(ctx context.Context, q scraper.Query) ([]*models.RawFragment, error) {
	url := s.BuildQuery(q)
	s.logger.Info("[autotrader] Scraping %s %s: %s", q.Make, q.Model, url)

	sess, err := scraper.NewSession(ctx, s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("autotrader: session: %w", err)
	}
	defer sess.Close()

	if err := sess.Navigate(url, readySelector); err != nil {
		return nil, fmt.Errorf("autotrader: %w", err)
	}
	sess.ScrollPage(s.cfg.ScrollCount + 1)

	frags, err := sess.Fragments(scraper.FragmentSpec{
		Source: sourceName,
		Selectors: []string{
			`[data-testid="listing-card"]`,
			".inventory-listing",
			`[class*="ListingCard"]`,
		},
		LinkSelector: `a[href*="/cars-for-sale/"]`,
		Limit:        s.cfg.MaxFragments,
	})
	if err != nil {
		return nil, fmt.Errorf("autotrader: %w", err)
	}

	for _, f := range frags {
		if f.ExternalID == "" {
			f.ExternalID = externalID(f)
		}
	}

	s.metrics.AddFragments(sourceName, len(frags))
	s.logger.Info("[autotrader] Found %d candidate listings for %s %s", len(frags), q.Make, q.Model)
	return frags, nil
}

// externalID prefers the numeric id embedded in the detail URL, then
// falls back to the deterministic text hash.
func externalID(f *models.RawFragment) string {
	if f.URL != "" {
		if m := urlIDPattern.FindStringSubmatch(f.URL); m != nil {
			return m[1]
		}
	}
	return scraper.FallbackID(idPrefix, f.Text)
}

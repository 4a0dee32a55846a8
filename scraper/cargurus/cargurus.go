// Package cargurus scrapes used-vehicle listings from cargurus.com.
package cargurus

import (
	"context"
	"fmt"
	"strings"

	"ev-price-tracker/config"
	"ev-price-tracker/models"
	"ev-price-tracker/scraper"
	"ev-price-tracker/utils"
)

const (
	sourceName = "cargurus"
	baseURL    = "https://www.cargurus.com"
	idPrefix   = "cg"
)

// Scraper is the cargurus.com source adapter.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *scraper.Metrics
}

// New creates a ready-to-use CarGurus adapter.
func New(cfg *config.Config, logger *utils.Logger, metrics *scraper.Metrics) *Scraper {
	return &Scraper{cfg: cfg, logger: logger, metrics: metrics}
}

func (s *Scraper) Name() string { return sourceName }

// StrictMatch is true: CarGurus search results regularly mix in "similar
// vehicles" of other models.
func (s *Scraper) StrictMatch() bool { return true }

// BuildQuery builds the CarGurus used-car search URL.
func (s *Scraper) BuildQuery(q scraper.Query) string {
	modelSlug := strings.ReplaceAll(scraper.SlugFallback(q.Model, "-"), "-", "_")

	return fmt.Sprintf(
		"%s/Cars/l-Used-%s-%s-d210?zip=%s&distance=%d&searchId=&sort=BEST_MATCH&type=USED",
		baseURL, q.Make, modelSlug, q.Zip, q.Radius)
}

// FetchListings drives one scoped browser session against the search page
// and returns the extracted fragments. CarGurus markup churns often, so
// the selector chain is deliberately wide, ending at bare VIN links.
func (s *Scraper) FetchListings(ctx context.Context, q scraper.Query) ([]*models.RawFragment, error) {
	url := s.BuildQuery(q)
	s.logger.Info("[cargurus] Scraping %s %s: %s", q.Make, q.Model, url)

	sess, err := scraper.NewSession(ctx, s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("cargurus: session: %w", err)
	}
	defer sess.Close()

	if err := sess.Navigate(url, ""); err != nil {
		return nil, fmt.Errorf("cargurus: %w", err)
	}
	sess.ScrollPage(s.cfg.ScrollCount)

	frags, err := sess.Fragments(scraper.FragmentSpec{
		Source: sourceName,
		Selectors: []string{
			`article[data-cg-ft="car-blade"]`,
			`[data-testid="srp-tile-wrapper"]`,
			".cg-dealFinder-result-wrap",
			"article",
			`div[class*="listing"]`,
			`a[href*="/Cars/"][href*="VIN"]`,
		},
		LinkSelector: `a[href*="/Cars/"]`,
		Limit:        s.cfg.MaxFragments,
	})
	if err != nil {
		return nil, fmt.Errorf("cargurus: %w", err)
	}

	for _, f := range frags {
		if f.ExternalID == "" {
			f.ExternalID = scraper.FallbackID(idPrefix, f.Text)
		}
	}

	s.metrics.AddFragments(sourceName, len(frags))
	s.logger.Info("[cargurus] Found %d candidate listings for %s %s", len(frags), q.Make, q.Model)
	return frags, nil
}

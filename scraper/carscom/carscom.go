// Package carscom scrapes used-vehicle listings from cars.com.
package carscom

import (
	"context"
	"fmt"

	"ev-price-tracker/config"
	"ev-price-tracker/models"
	"ev-price-tracker/scraper"
	"ev-price-tracker/utils"
)

const (
	sourceName = "cars.com"
	baseURL    = "https://www.cars.com"
	idPrefix   = "cc"
)

var makeSlugs = map[string]string{
	"Tesla":      "tesla",
	"Ford":       "ford",
	"Chevrolet":  "chevrolet",
	"Rivian":     "rivian",
	"Hyundai":    "hyundai",
	"Kia":        "kia",
	"BMW":        "bmw",
	"Mercedes":   "mercedes_benz",
	"Volkswagen": "volkswagen",
}

var modelSlugs = map[string]string{
	"Tesla Model 3":         "tesla-model_3",
	"Tesla Model Y":         "tesla-model_y",
	"Tesla Model S":         "tesla-model_s",
	"Tesla Model X":         "tesla-model_x",
	"Ford Mustang Mach-E":   "ford-mustang_mach_e",
	"Ford F-150 Lightning":  "ford-f_150_lightning",
	"Chevrolet Bolt EV":     "chevrolet-bolt_ev",
	"Chevrolet Bolt EUV":    "chevrolet-bolt_euv",
	"Chevrolet Equinox EV":  "chevrolet-equinox_ev",
	"Rivian R1T":            "rivian-r1t",
	"Rivian R1S":            "rivian-r1s",
	"Hyundai Ioniq 5":       "hyundai-ioniq_5",
	"Hyundai Ioniq 6":       "hyundai-ioniq_6",
	"Kia EV6":               "kia-ev6",
	"Kia EV9":               "kia-ev9",
	"BMW i4":                "bmw-i4",
	"BMW iX":                "bmw-ix",
	"Mercedes EQS":          "mercedes_benz-eqs",
	"Mercedes EQE":          "mercedes_benz-eqe",
	"Volkswagen ID.4":       "volkswagen-id_4",
}

// Scraper is the cars.com source adapter.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *scraper.Metrics
}

// New creates a ready-to-use cars.com adapter.
func New(cfg *config.Config, logger *utils.Logger, metrics *scraper.Metrics) *Scraper {
	return &Scraper{cfg: cfg, logger: logger, metrics: metrics}
}

func (s *Scraper) Name() string { return sourceName }

// StrictMatch is true: cars.com result pages can include similar vehicles
// from other models, so normalization must verify make/model tokens.
func (s *Scraper) StrictMatch() bool { return true }

// BuildQuery builds the cars.com used-stock search URL.
func (s *Scraper) BuildQuery(q scraper.Query) string {
	makeSlug, ok := makeSlugs[q.Make]
	if !ok {
		makeSlug = scraper.SlugFallback(q.Make, "_")
	}
	modelSlug, ok := modelSlugs[q.Make+" "+q.Model]
	if !ok {
		modelSlug = makeSlug + "-" + scraper.SlugFallback(q.Model, "_")
	}

	return fmt.Sprintf(
		"%s/shopping/results/?stock_type=used&makes[]=%s&models[]=%s&zip=%s&maximum_distance=%d",
		baseURL, makeSlug, modelSlug, q.Zip, q.Radius)
}

// FetchListings drives one scoped browser session against the search page
// and returns the extracted fragments.
func (s *Scraper) FetchListings(ctx context.Context, q scraper.Query) ([]*models.RawFragment, error) {
	url := s.BuildQuery(q)
	s.logger.Info("[cars.com] Scraping %s %s: %s", q.Make, q.Model, url)

	sess, err := scraper.NewSession(ctx, s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("cars.com: session: %w", err)
	}
	defer sess.Close()

	if err := sess.Navigate(url, ".vehicle-card"); err != nil {
		return nil, fmt.Errorf("cars.com: %w", err)
	}
	sess.ScrollPage(s.cfg.ScrollCount)

	frags, err := sess.Fragments(scraper.FragmentSpec{
		Source:       sourceName,
		Selectors:    []string{".vehicle-card"},
		LinkSelector: `a[href*="/vehicledetail/"]`,
		Limit:        s.cfg.MaxFragments,
	})
	if err != nil {
		return nil, fmt.Errorf("cars.com: %w", err)
	}

	for _, f := range frags {
		if f.ExternalID == "" {
			f.ExternalID = scraper.FallbackID(idPrefix, f.Text)
		}
	}

	s.metrics.AddFragments(sourceName, len(frags))
	s.logger.Info("[cars.com] Found %d candidate listings for %s %s", len(frags), q.Make, q.Model)
	return frags, nil
}

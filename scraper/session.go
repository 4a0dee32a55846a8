package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"ev-price-tracker/config"
	"ev-price-tracker/models"
	"ev-price-tracker/utils"
)

// Session owns one headless browser for one adapter invocation. Setup
// happens in NewSession, teardown in Close; adapters defer Close so the
// browser is released on every exit path. The whole session runs under a
// single deadline, so a stuck navigation or selector wait surfaces as one
// timeout error.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	cfg     *config.Config
	logger  *utils.Logger
}

// FragmentSpec tells Fragments how to locate candidate cards: a
// prioritized chain of selectors tried in order until one yields a
// non-empty set, a selector for the card's detail link, and a hard cap
// on candidates examined.
type FragmentSpec struct {
	Source       string
	Selectors    []string
	LinkSelector string
	Limit        int
}

// NewSession launches a headless browser scoped to this invocation.
func NewSession(parent context.Context, cfg *config.Config, logger *utils.Logger) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if bin := findChromeBinary(cfg); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	ctx, cancelTimeout := context.WithTimeout(browserCtx, cfg.NavTimeout())

	return &Session{
		ctx:     ctx,
		cancels: []context.CancelFunc{cancelTimeout, cancelBrowser, cancelAlloc},
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Close tears the browser down. Safe to call exactly once, via defer.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// Navigate loads url and waits for the page to be usable: a settle delay
// always, plus readySelector becoming visible when one is given.
func (s *Session) Navigate(url, readySelector string) error {
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.Sleep(s.cfg.SettleDelay()),
	}
	if readySelector != "" {
		actions = append(actions, chromedp.WaitVisible(readySelector, chromedp.ByQuery))
	}
	if err := chromedp.Run(s.ctx, actions...); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// ScrollPage scrolls down count times to trigger lazy-loaded cards.
// Scroll trouble is not fatal; whatever already rendered is still usable.
func (s *Session) ScrollPage(count int) {
	for i := 0; i < count; i++ {
		err := chromedp.Run(s.ctx,
			chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil),
			chromedp.Sleep(700*time.Millisecond),
		)
		if err != nil {
			s.logger.Debug("[session] scroll %d/%d failed: %v", i+1, count, err)
			return
		}
	}
}

type cardData struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Href string `json:"href"`
}

// Fragments extracts candidate listing cards in one evaluate round trip.
// The in-page script tries each selector in spec.Selectors until one
// matches, caps candidates at spec.Limit, skips malformed cards
// individually, and dedupes by detail-page URL.
func (s *Session) Fragments(spec FragmentSpec) ([]*models.RawFragment, error) {
	selectors, err := json.Marshal(spec.Selectors)
	if err != nil {
		return nil, fmt.Errorf("fragments: encode selectors: %w", err)
	}
	linkSelector, err := json.Marshal(spec.LinkSelector)
	if err != nil {
		return nil, fmt.Errorf("fragments: encode link selector: %w", err)
	}

	script := fmt.Sprintf(`
		(function() {
			var selectors = %s;
			var linkSelector = %s;
			var limit = %d;

			var cards = [];
			for (var si = 0; si < selectors.length; si++) {
				cards = document.querySelectorAll(selectors[si]);
				if (cards.length > 0) break;
			}

			var results = [];
			var seen = {};
			for (var i = 0; i < cards.length && results.length < limit; i++) {
				try {
					var card = cards[i];
					var text = card.innerText || '';
					if (text.trim().length < 20) continue;

					var id = card.getAttribute('data-listing-id') ||
					         card.getAttribute('id') || '';

					var href = '';
					var link = linkSelector ? card.querySelector(linkSelector) : null;
					if (link && link.href) {
						href = link.href;
					} else if (card.href) {
						href = card.href;
					}
					if (href) {
						if (seen[href]) continue;
						seen[href] = true;
					}

					results.push({id: id, text: text, href: href});
				} catch (e) {
					continue;
				}
			}
			return results;
		})()
	`, selectors, linkSelector, spec.Limit)

	var cards []cardData
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &cards)); err != nil {
		return nil, fmt.Errorf("fragments: evaluate: %w", err)
	}

	now := time.Now()
	frags := make([]*models.RawFragment, 0, len(cards))
	for _, c := range cards {
		frags = append(frags, &models.RawFragment{
			Source:     spec.Source,
			ExternalID: c.ID,
			Text:       c.Text,
			URL:        c.Href,
			ScrapedAt:  now,
		})
	}

	s.logger.Debug("[session] %s — extracted %d fragments", spec.Source, len(frags))
	return frags, nil
}

// findChromeBinary locates a Chrome/Chromium binary, preferring the
// configured override.
func findChromeBinary(cfg *config.Config) string {
	if cfg.ChromeBin != "" {
		return cfg.ChromeBin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

package models

import "time"

// Model is one tracked EV make/model pair. The catalog is seeded once at
// startup and treated as immutable reference data.
type Model struct {
	ID   int64  `json:"id"`
	Make string `json:"make"`
	Name string `json:"model"`
}

// Label returns the "Make Model" display string used in run status and logs.
func (m *Model) Label() string {
	return m.Make + " " + m.Name
}

// RawFragment holds the unprocessed visible text of one candidate listing
// card straight from the browser, before any parsing or validation.
// ExternalID is whatever stable identifier the page offered; adapters
// synthesize a deterministic hash-based one when the page gives none.
type RawFragment struct {
	Source     string
	ExternalID string
	Text       string
	URL        string
	ScrapedAt  time.Time
}

// Listing is the canonical, validated record ready for storage. The
// (Source, ExternalID) pair is the natural key: a repeat scrape with the
// same key overwrites the row, so the table always holds the latest-known
// observation per listing rather than a history.
type Listing struct {
	ID         int64     `json:"id"`
	ModelID    int64     `json:"model_id"`
	Source     string    `json:"source"`
	ExternalID string    `json:"external_id"`
	Year       *int      `json:"year"`
	Price      int       `json:"price"`
	Mileage    *int      `json:"mileage"`
	Location   *string   `json:"location"`
	URL        string    `json:"url"`
	ScrapedAt  time.Time `json:"scraped_at"`
}

// PriceSnapshot is one day's aggregate price statistics for one model,
// keyed by (ModelID, Date). Recomputing an existing date overwrites it.
type PriceSnapshot struct {
	ModelID      int64     `json:"model_id"`
	Date         time.Time `json:"date"`
	AvgPrice     int       `json:"avg_price"`
	MinPrice     int       `json:"min_price"`
	MaxPrice     int       `json:"max_price"`
	ListingCount int       `json:"listing_count"`
	AvgMileage   int       `json:"avg_mileage"`
}

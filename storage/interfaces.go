package storage

import (
	"context"
	"errors"
	"time"

	"ev-price-tracker/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract the ingestion pipeline and the API
// consume. Every operation is row-scoped; no transaction spans a run.
type Store interface {
	// Catalog.
	ListModels(ctx context.Context) ([]*models.Model, error)
	ModelByID(ctx context.Context, id int64) (*models.Model, error)

	// Listings. UpsertListing writes by natural key (source, external_id):
	// a repeat write overwrites every mutable field of the existing row.
	UpsertListing(ctx context.Context, l *models.Listing) error
	ListingsForModel(ctx context.Context, modelID int64) ([]*models.Listing, error)
	Listings(ctx context.Context, modelID int64, opts ListingQuery) ([]*models.Listing, error)

	// Aggregates. UpsertSnapshot writes by (model_id, date).
	UpsertSnapshot(ctx context.Context, s *models.PriceSnapshot) error
	PriceHistory(ctx context.Context, modelID int64, days int) ([]*models.PriceSnapshot, error)

	// Dashboard and settings.
	Stats(ctx context.Context) (*models.Stats, error)
	Settings(ctx context.Context) (map[string]string, error)
	UpdateSetting(ctx context.Context, key, value string) error

	Close() error
}

// ListingQuery controls paging and ordering for the listings endpoint.
type ListingQuery struct {
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// Day truncates t to its calendar date, the snapshot key granularity.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

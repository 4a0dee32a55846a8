package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ev-price-tracker/models"
	"ev-price-tracker/scraper"
	"ev-price-tracker/storage"
)

// memStore is an in-memory storage.Store for exercising the pipeline
// without a database.
type memStore struct {
	mu        sync.Mutex
	models    []*models.Model
	listings  map[string]*models.Listing
	snapshots map[string]*models.PriceSnapshot
	settings  map[string]string
	upsertErr error
}

func newMemStore(mods ...*models.Model) *memStore {
	return &memStore{
		models:    mods,
		listings:  make(map[string]*models.Listing),
		snapshots: make(map[string]*models.PriceSnapshot),
		settings:  map[string]string{"zip_code": "77001", "search_radius": "200"},
	}
}

func listingKey(source, externalID string) string {
	return source + "|" + externalID
}

func (s *memStore) ListModels(ctx context.Context) ([]*models.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Model(nil), s.models...), nil
}

func (s *memStore) ModelByID(ctx context.Context, id int64) (*models.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.models {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memStore) UpsertListing(ctx context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	cp := *l
	s.listings[listingKey(l.Source, l.ExternalID)] = &cp
	return nil
}

func (s *memStore) ListingsForModel(ctx context.Context, modelID int64) ([]*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Listing
	for _, l := range s.listings {
		if l.ModelID == modelID && l.Price > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) Listings(ctx context.Context, modelID int64, opts storage.ListingQuery) ([]*models.Listing, error) {
	return s.ListingsForModel(ctx, modelID)
}

func (s *memStore) UpsertSnapshot(ctx context.Context, snap *models.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snap
	key := fmt.Sprintf("%d|%s", snap.ModelID, storage.Day(snap.Date).Format("2006-01-02"))
	s.snapshots[key] = &cp
	return nil
}

func (s *memStore) PriceHistory(ctx context.Context, modelID int64, days int) ([]*models.PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PriceSnapshot
	for _, snap := range s.snapshots {
		if snap.ModelID == modelID {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *memStore) Stats(ctx context.Context) (*models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.Stats{TotalListings: len(s.listings)}, nil
}

func (s *memStore) Settings(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) UpdateSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) listingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listings)
}

func (s *memStore) listing(source, externalID string) *models.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listings[listingKey(source, externalID)]
}

func (s *memStore) snapshot(modelID int64, day time.Time) *models.PriceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d|%s", modelID, storage.Day(day).Format("2006-01-02"))
	return s.snapshots[key]
}

// stubSource is a scripted scraper.Source.
type stubSource struct {
	name   string
	strict bool
	frags  []*models.RawFragment
	err    error

	mu    sync.Mutex
	calls int
	block chan struct{} // when set, FetchListings waits on it once per call
}

func (s *stubSource) Name() string                      { return s.name }
func (s *stubSource) StrictMatch() bool                 { return s.strict }
func (s *stubSource) BuildQuery(q scraper.Query) string { return "stub://" + s.name }

func (s *stubSource) FetchListings(ctx context.Context, q scraper.Query) ([]*models.RawFragment, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	return s.frags, s.err
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func frag(source, id, text string) *models.RawFragment {
	return &models.RawFragment{
		Source:     source,
		ExternalID: id,
		Text:       text,
		URL:        "https://example.com/" + id,
		ScrapedAt:  time.Now(),
	}
}

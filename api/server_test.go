package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"ev-price-tracker/config"
	"ev-price-tracker/models"
	"ev-price-tracker/services"
	"ev-price-tracker/storage"
	"ev-price-tracker/utils"
)

type fakeStore struct {
	models    []*models.Model
	listings  map[int64][]*models.Listing
	snapshots map[int64][]*models.PriceSnapshot
	settings  map[string]string
	gotDays   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		models: []*models.Model{
			{ID: 1, Make: "Tesla", Name: "Model 3"},
			{ID: 2, Make: "Ford", Name: "Mustang Mach-E"},
		},
		listings:  make(map[int64][]*models.Listing),
		snapshots: make(map[int64][]*models.PriceSnapshot),
		settings:  map[string]string{"zip_code": "77001", "search_radius": "200"},
	}
}

func (f *fakeStore) ListModels(ctx context.Context) ([]*models.Model, error) {
	return f.models, nil
}

func (f *fakeStore) ModelByID(ctx context.Context, id int64) (*models.Model, error) {
	for _, m := range f.models {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) UpsertListing(ctx context.Context, l *models.Listing) error {
	f.listings[l.ModelID] = append(f.listings[l.ModelID], l)
	return nil
}

func (f *fakeStore) ListingsForModel(ctx context.Context, modelID int64) ([]*models.Listing, error) {
	return f.listings[modelID], nil
}

func (f *fakeStore) Listings(ctx context.Context, modelID int64, opts storage.ListingQuery) ([]*models.Listing, error) {
	out := append([]*models.Listing(nil), f.listings[modelID]...)
	sort.Slice(out, func(i, j int) bool {
		if opts.SortOrder == "desc" {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	if opts.Offset < len(out) {
		out = out[opts.Offset:]
	} else {
		out = nil
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStore) UpsertSnapshot(ctx context.Context, s *models.PriceSnapshot) error {
	f.snapshots[s.ModelID] = append(f.snapshots[s.ModelID], s)
	return nil
}

func (f *fakeStore) PriceHistory(ctx context.Context, modelID int64, days int) ([]*models.PriceSnapshot, error) {
	f.gotDays = days
	return f.snapshots[modelID], nil
}

func (f *fakeStore) Stats(ctx context.Context) (*models.Stats, error) {
	total := 0
	for _, ls := range f.listings {
		total += len(ls)
	}
	return &models.Stats{TotalListings: total}, nil
}

func (f *fakeStore) Settings(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(f.settings))
	for k, v := range f.settings {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) UpdateSetting(ctx context.Context, key, value string) error {
	f.settings[key] = value
	return nil
}

func (f *fakeStore) Close() error { return nil }

type stubController struct {
	running bool
	gotIDs  []int64
	cancels int
}

func (c *stubController) Trigger(modelIDs []int64) (models.StatusSnapshot, error) {
	if c.running {
		return models.StatusSnapshot{IsRunning: true}, services.ErrRunInProgress
	}
	c.running = true
	c.gotIDs = modelIDs
	return models.StatusSnapshot{IsRunning: true, Total: 6}, nil
}

func (c *stubController) Cancel() { c.cancels++ }

func (c *stubController) Status() models.StatusSnapshot {
	return models.StatusSnapshot{IsRunning: c.running, Errors: []string{}}
}

func newTestServer(t *testing.T) (*Server, *fakeStore, *stubController) {
	t.Helper()
	store := newFakeStore()
	ctl := &stubController{}
	cfg := &config.Config{HTTPAddr: ":0"}
	srv := NewServer(cfg, utils.NewLogger("error"), store, ctl, nil)
	return srv, store, ctl
}

func doRequest(t *testing.T, srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListModels(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/models", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []*models.Model
	decodeJSON(t, rec, &got)
	if len(got) != 2 {
		t.Fatalf("expected 2 models, got %d", len(got))
	}
	if got[0].Make != "Tesla" || got[0].Name != "Model 3" {
		t.Errorf("unexpected first model: %+v", got[0])
	}
}

func TestGetModelNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/models/99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListingsSortedAndPaged(t *testing.T) {
	srv, store, _ := newTestServer(t)
	for i, price := range []int{30000, 20000, 25000} {
		store.listings[1] = append(store.listings[1], &models.Listing{
			ID:         int64(i + 1),
			ModelID:    1,
			Source:     "cars.com",
			ExternalID: fmt.Sprintf("cc-%d", i),
			Price:      price,
		})
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/models/1/listings?limit=2&sort_by=price&sort_order=asc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []*models.Listing
	decodeJSON(t, rec, &got)
	if len(got) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(got))
	}
	if got[0].Price != 20000 || got[1].Price != 25000 {
		t.Errorf("expected ascending prices 20000,25000, got %d,%d", got[0].Price, got[1].Price)
	}
}

func TestListingsRejectsBadQuery(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, path := range []string{
		"/api/models/1/listings?limit=0",
		"/api/models/1/listings?limit=9999",
		"/api/models/1/listings?offset=-1",
		"/api/models/1/listings?sort_order=sideways",
	} {
		rec := doRequest(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestListingsCSVExport(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.listings[1] = append(store.listings[1], &models.Listing{
		ID:         1,
		ModelID:    1,
		Source:     "cars.com",
		ExternalID: "cc-1",
		Price:      31000,
		ScrapedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/models/1/listings.csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "source,external_id") {
		t.Errorf("missing CSV header in %q", body)
	}
	if !strings.Contains(body, "cc-1") {
		t.Errorf("missing listing row in %q", body)
	}
}

func TestPriceHistoryValidatesDays(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/models/1/prices?days=999", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/models/1/prices?days=30", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPriceHistoryDefaultsTo90Days(t *testing.T) {
	srv, store, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/models/1/prices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if store.gotDays != 90 {
		t.Errorf("default window: got %d days, want 90", store.gotDays)
	}
}

func TestUnknownModelReturns404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, path := range []string{
		"/api/models/99/prices?days=30",
		"/api/models/99/listings",
		"/api/models/99/listings.csv",
	} {
		rec := doRequest(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, store, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/settings", `{"zip_code":"90210"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.settings["zip_code"] != "90210" {
		t.Errorf("setting not updated: %v", store.settings)
	}

	rec = doRequest(t, srv, http.MethodPut, "/api/settings", `{"favorite_color":"blue"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown setting, got %d", rec.Code)
	}
}

func TestScrapeTrigger(t *testing.T) {
	srv, _, ctl := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/scrape", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(ctl.gotIDs) != 0 {
		t.Errorf("expected full-catalog trigger, got ids %v", ctl.gotIDs)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/scrape", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", rec.Code)
	}
}

func TestScrapeTriggerSingleModel(t *testing.T) {
	srv, _, ctl := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/scrape?model_id=2", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(ctl.gotIDs) != 1 || ctl.gotIDs[0] != 2 {
		t.Errorf("expected ids [2], got %v", ctl.gotIDs)
	}
}

func TestScrapeTriggerBody(t *testing.T) {
	srv, _, ctl := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/scrape", `{"model_ids":[1,2]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(ctl.gotIDs) != 2 {
		t.Errorf("expected ids [1,2], got %v", ctl.gotIDs)
	}
}

func TestScrapeCancel(t *testing.T) {
	srv, _, ctl := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/scrape/cancel", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if ctl.cancels != 1 {
		t.Errorf("expected 1 cancel call, got %d", ctl.cancels)
	}
}

func TestScrapeStatus(t *testing.T) {
	srv, _, ctl := newTestServer(t)
	ctl.running = true
	rec := doRequest(t, srv, http.MethodGet, "/api/scrape/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap models.StatusSnapshot
	decodeJSON(t, rec, &snap)
	if !snap.IsRunning {
		t.Errorf("expected is_running true, got %+v", snap)
	}
}

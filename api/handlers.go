package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ev-price-tracker/services"
	"ev-price-tracker/storage"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	mdls, err := s.store.ListModels(r.Context())
	if err != nil {
		s.logger.Error("[api] Listing models: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list models")
		return
	}
	respondJSON(w, http.StatusOK, mdls)
}

func (s *Server) modelID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// requireModel parses the id path var and confirms the model exists,
// writing the error response itself when it doesn't.
func (s *Server) requireModel(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := s.modelID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid model id")
		return 0, false
	}
	if _, err := s.store.ModelByID(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "model not found")
		} else {
			s.logger.Error("[api] Loading model %d: %v", id, err)
			respondError(w, http.StatusInternalServerError, "failed to load model")
		}
		return 0, false
	}
	return id, true
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	id, err := s.modelID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid model id")
		return
	}
	mdl, err := s.store.ModelByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "model not found")
		return
	}
	if err != nil {
		s.logger.Error("[api] Loading model %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load model")
		return
	}
	respondJSON(w, http.StatusOK, mdl)
}

func (s *Server) handleModelPrices(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireModel(w, r)
	if !ok {
		return
	}
	days := 90
	if v := r.URL.Query().Get("days"); v != "" {
		var err error
		days, err = strconv.Atoi(v)
		if err != nil || days < 1 || days > 365 {
			respondError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
	}
	history, err := s.store.PriceHistory(r.Context(), id, days)
	if err != nil {
		s.logger.Error("[api] Price history for model %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load price history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func listingQuery(r *http.Request) (storage.ListingQuery, error) {
	q := storage.ListingQuery{
		Limit:     50,
		SortBy:    "price",
		SortOrder: "asc",
	}
	values := r.URL.Query()
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return q, fmt.Errorf("limit must be between 1 and 500")
		}
		q.Limit = n
	}
	if v := values.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, fmt.Errorf("offset must be non-negative")
		}
		q.Offset = n
	}
	if v := values.Get("sort_by"); v != "" {
		q.SortBy = v
	}
	if v := values.Get("sort_order"); v != "" {
		if v != "asc" && v != "desc" {
			return q, fmt.Errorf("sort_order must be asc or desc")
		}
		q.SortOrder = v
	}
	return q, nil
}

func (s *Server) handleModelListings(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireModel(w, r)
	if !ok {
		return
	}
	q, err := listingQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	listings, err := s.store.Listings(r.Context(), id, q)
	if err != nil {
		s.logger.Error("[api] Listings for model %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load listings")
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

func (s *Server) handleModelListingsCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireModel(w, r)
	if !ok {
		return
	}
	listings, err := s.store.ListingsForModel(r.Context(), id)
	if err != nil {
		s.logger.Error("[api] CSV export for model %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load listings")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"model-%d-listings.csv\"", id))
	if err := storage.WriteListingsCSV(w, listings); err != nil {
		s.logger.Error("[api] Writing CSV for model %d: %v", id, err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("[api] Loading stats: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.Settings(r.Context())
	if err != nil {
		s.logger.Error("[api] Loading settings: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for key, value := range updates {
		switch key {
		case "zip_code", "search_radius":
		default:
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown setting %q", key))
			return
		}
		if err := s.store.UpdateSetting(r.Context(), key, value); err != nil {
			s.logger.Error("[api] Updating setting %s: %v", key, err)
			respondError(w, http.StatusInternalServerError, "failed to update setting")
			return
		}
	}
	settings, err := s.store.Settings(r.Context())
	if err != nil {
		s.logger.Error("[api] Reloading settings: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

type scrapeRequest struct {
	ModelIDs []int64 `json:"model_ids"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if v := r.URL.Query().Get("model_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid model_id")
			return
		}
		req.ModelIDs = []int64{id}
	} else if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	snap, err := s.scrapes.Trigger(req.ModelIDs)
	if errors.Is(err, services.ErrRunInProgress) {
		respondError(w, http.StatusConflict, "scrape already in progress")
		return
	}
	if err != nil {
		s.logger.Error("[api] Triggering scrape: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to start scrape")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "scrape started",
		"status":  snap,
	})
}

func (s *Server) handleScrapeCancel(w http.ResponseWriter, r *http.Request) {
	s.scrapes.Cancel()
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "cancellation requested"})
}

func (s *Server) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.scrapes.Status())
}

// Package api exposes the tracker's REST surface: the model catalog,
// listings, price history, settings, and scrape control.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ev-price-tracker/config"
	"ev-price-tracker/models"
	"ev-price-tracker/scraper"
	"ev-price-tracker/storage"
	"ev-price-tracker/utils"
)

// ScrapeController is the orchestrator surface the API needs.
type ScrapeController interface {
	Trigger(modelIDs []int64) (models.StatusSnapshot, error)
	Cancel()
	Status() models.StatusSnapshot
}

// Server is the HTTP API server.
type Server struct {
	cfg     *config.Config
	logger  *utils.Logger
	store   storage.Store
	scrapes ScrapeController

	router     *mux.Router
	httpServer *http.Server
}

// NewServer wires routes and returns a ready-to-start server.
func NewServer(
	cfg *config.Config,
	logger *utils.Logger,
	store storage.Store,
	scrapes ScrapeController,
	metrics *scraper.Metrics,
) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		scrapes: scrapes,
		router:  mux.NewRouter(),
	}

	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/models/{id:[0-9]+}", s.handleModel).Methods(http.MethodGet)
	api.HandleFunc("/models/{id:[0-9]+}/prices", s.handleModelPrices).Methods(http.MethodGet)
	api.HandleFunc("/models/{id:[0-9]+}/listings", s.handleModelListings).Methods(http.MethodGet)
	api.HandleFunc("/models/{id:[0-9]+}/listings.csv", s.handleModelListingsCSV).Methods(http.MethodGet)

	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleSettingsGet).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleSettingsPut).Methods(http.MethodPut)

	api.HandleFunc("/scrape", s.handleScrape).Methods(http.MethodPost)
	api.HandleFunc("/scrape/cancel", s.handleScrapeCancel).Methods(http.MethodPost)
	api.HandleFunc("/scrape/status", s.handleScrapeStatus).Methods(http.MethodGet)

	if metrics != nil {
		s.router.Handle("/metrics",
			promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("[api] Listening on %s", s.cfg.HTTPAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("[api] %s %s %d (%s)",
			r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}

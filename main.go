package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ev-price-tracker/api"
	"ev-price-tracker/config"
	"ev-price-tracker/scraper"
	"ev-price-tracker/scraper/autotrader"
	"ev-price-tracker/scraper/cargurus"
	"ev-price-tracker/scraper/carscom"
	"ev-price-tracker/services"
	"ev-price-tracker/storage"
	"ev-price-tracker/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(cfg.LogLevel)

	logger.Info("=== EV Price Tracker starting ===")
	logger.Info("Config: sources=%s | nav timeout=%ds | max fragments=%d",
		cfg.Sources, cfg.NavTimeoutSec, cfg.MaxFragments)

	store, err := storage.Open(cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure the database is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	metrics := scraper.NewMetrics()
	sources := buildSources(cfg, logger, metrics)
	if len(sources) == 0 {
		logger.Error("No scrape sources enabled, check SOURCES")
		os.Exit(1)
	}
	for _, src := range sources {
		logger.Info("Source enabled: %s", src.Name())
	}

	tracker := services.NewStatusTracker()
	orch := services.NewOrchestrator(cfg, store, sources, tracker, metrics, logger)

	srv := api.NewServer(cfg, logger, store, orch, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed: %v", err)
			os.Exit(1)
		}
		return
	}

	orch.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown did not complete cleanly: %v", err)
	}
	logger.Info("=== EV Price Tracker stopped ===")
}

// buildSources instantiates the adapters named in cfg.Sources, in order.
func buildSources(cfg *config.Config, logger *utils.Logger, metrics *scraper.Metrics) []scraper.Source {
	var sources []scraper.Source
	for _, name := range strings.Split(cfg.Sources, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "cars.com":
			sources = append(sources, carscom.New(cfg, logger, metrics))
		case "autotrader":
			sources = append(sources, autotrader.New(cfg, logger, metrics))
		case "cargurus":
			sources = append(sources, cargurus.New(cfg, logger, metrics))
		case "":
		default:
			logger.Warn("Unknown source %q in SOURCES, skipping", name)
		}
	}
	return sources
}

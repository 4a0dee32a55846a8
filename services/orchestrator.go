package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"ev-price-tracker/config"
	"ev-price-tracker/models"
	"ev-price-tracker/scraper"
	"ev-price-tracker/storage"
	"ev-price-tracker/utils"
)

// ErrRunInProgress is returned by Trigger while a run is active.
var ErrRunInProgress = errors.New("scrape already in progress")

// seenCacheSize bounds the per-run natural-key dedupe set.
const seenCacheSize = 4096

// Orchestrator coordinates scrape runs: for each target model, each
// source adapter in turn, strictly sequentially, streaming fragments
// through the normalizer into storage and recomputing the model's daily
// snapshot afterwards. At most one run is in flight at a time.
type Orchestrator struct {
	cfg     *config.Config
	store   storage.Store
	sources []scraper.Source
	norm    *Normalizer
	agg     *Aggregator
	tracker *StatusTracker
	metrics *scraper.Metrics
	logger  *utils.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(
	cfg *config.Config,
	store storage.Store,
	sources []scraper.Source,
	tracker *StatusTracker,
	metrics *scraper.Metrics,
	logger *utils.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		store:   store,
		sources: sources,
		norm:    NewNormalizer(),
		agg:     NewAggregator(store, logger),
		tracker: tracker,
		metrics: metrics,
		logger:  logger,
	}
}

// Trigger starts a run over the given model ids (all tracked models when
// empty) in the background and returns a status snapshot immediately.
// Returns ErrRunInProgress, leaving the active run untouched, when a run
// is already in flight.
func (o *Orchestrator) Trigger(modelIDs []int64) (models.StatusSnapshot, error) {
	if !o.tracker.Begin() {
		return o.tracker.Snapshot(), ErrRunInProgress
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	go o.run(ctx, modelIDs)

	return o.tracker.Snapshot(), nil
}

// Cancel requests the active run to stop. The run checks the signal
// between adapter and model iterations; whatever has been persisted
// stays persisted.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// Status returns a point-in-time status snapshot.
func (o *Orchestrator) Status() models.StatusSnapshot {
	return o.tracker.Snapshot()
}

func (o *Orchestrator) run(ctx context.Context, modelIDs []int64) {
	start := time.Now()
	defer func() {
		// Drop this run's cancel handle before Finish reopens the run
		// gate; a back-to-back Trigger must keep the handle it installs.
		o.mu.Lock()
		o.cancel = nil
		o.mu.Unlock()
		o.tracker.Finish()
		o.metrics.ObserveRun(time.Since(start))
		o.logger.Info("[orchestrator] Run finished in %s", time.Since(start).Round(time.Millisecond))
	}()

	zip, radius := o.searchArea(ctx)

	mods, err := o.store.ListModels(ctx)
	if err != nil {
		o.tracker.AddError(fmt.Sprintf("Error loading models: %v", err))
		o.logger.Error("[orchestrator] Failed to load models: %v", err)
		return
	}
	mods = filterModels(mods, modelIDs)

	o.tracker.SetTotal(len(mods) * len(o.sources))
	o.logger.Info("[orchestrator] Run started — %d models × %d sources", len(mods), len(o.sources))

	seen := utils.NewSeenSet(seenCacheSize)

	for _, mdl := range mods {
		if ctx.Err() != nil {
			o.logger.Warn("[orchestrator] Run cancelled before %s", mdl.Label())
			return
		}
		o.tracker.SetCurrent(mdl.Label())

		for _, src := range o.sources {
			if ctx.Err() != nil {
				o.logger.Warn("[orchestrator] Run cancelled during %s", mdl.Label())
				return
			}

			q := scraper.Query{Make: mdl.Make, Model: mdl.Name, Zip: zip, Radius: radius}
			o.scrapePair(ctx, src, mdl, q, seen)

			// Progress counts every attempted pair, success or not.
			o.tracker.Advance()
			time.Sleep(o.cfg.SourceDelay())
		}

		if err := o.agg.Recompute(ctx, mdl.ID, time.Now()); err != nil {
			o.tracker.AddError(fmt.Sprintf("Error updating price history for %s: %v", mdl.Label(), err))
			o.logger.Error("[orchestrator] Snapshot recompute failed for %s: %v", mdl.Label(), err)
		}
	}
}

// scrapePair runs one (model, source) attempt. Fragments yielded before
// an adapter failure are still normalized and persisted; the failure is
// recorded once and the run moves on.
func (o *Orchestrator) scrapePair(ctx context.Context, src scraper.Source, mdl *models.Model, q scraper.Query, seen *utils.SeenSet) {
	frags, fetchErr := src.FetchListings(ctx, q)

	upserted := 0
	for _, frag := range frags {
		listing, reason := o.norm.Normalize(frag, mdl, src.StrictMatch())
		if reason != RejectNone {
			o.metrics.IncRejection(string(reason))
			o.logger.Debug("[orchestrator] %s fragment rejected (%s)", src.Name(), reason)
			continue
		}

		if !seen.Add(listing.Source + "|" + listing.ExternalID) {
			o.logger.Debug("[orchestrator] Skipping duplicate %s/%s", listing.Source, listing.ExternalID)
			continue
		}

		if err := o.store.UpsertListing(ctx, listing); err != nil {
			// Storage trouble aborts the rest of this pair; the run continues.
			o.tracker.AddError(fmt.Sprintf("Error saving %s %s listing from %s: %v",
				mdl.Make, mdl.Name, src.Name(), err))
			o.logger.Error("[orchestrator] Upsert failed: %v", err)
			o.metrics.IncError(src.Name())
			break
		}
		o.metrics.IncUpsert(src.Name())
		upserted++
	}

	if fetchErr != nil {
		msg := fmt.Sprintf("Error scraping %s %s from %s: %v", mdl.Make, mdl.Name, src.Name(), fetchErr)
		o.tracker.AddError(msg)
		o.logger.Error("[orchestrator] %s", msg)
		o.metrics.IncError(src.Name())
	}

	o.logger.Info("[orchestrator] %s %s via %s — %d stored", mdl.Make, mdl.Name, src.Name(), upserted)
}

// searchArea reads the zip/radius settings, falling back to defaults
// when settings are unavailable.
func (o *Orchestrator) searchArea(ctx context.Context) (string, int) {
	zip, radius := "77001", 200

	settings, err := o.store.Settings(ctx)
	if err != nil {
		o.logger.Warn("[orchestrator] Failed to load settings, using defaults: %v", err)
		return zip, radius
	}
	if v, ok := settings["zip_code"]; ok && v != "" {
		zip = v
	}
	if v, ok := settings["search_radius"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			radius = n
		}
	}
	return zip, radius
}

func filterModels(mods []*models.Model, ids []int64) []*models.Model {
	if len(ids) == 0 {
		return mods
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.Model
	for _, m := range mods {
		if want[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

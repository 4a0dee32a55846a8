package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"ev-price-tracker/models"
	"ev-price-tracker/storage"
	"ev-price-tracker/utils"
)

// Aggregator recomputes per-model daily price snapshots. The computation
// is total, never incremental: it always derives from the full current
// listing set, so repeated invocation for the same (model, date) is
// idempotent and self-correcting.
type Aggregator struct {
	store  storage.Store
	logger *utils.Logger
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(store storage.Store, logger *utils.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

// Recompute derives avg/min/max price, count, and avg mileage over all
// currently stored positive-price listings for the model, and upserts
// the snapshot keyed by (model, date). Writes nothing when the model has
// no listings yet.
func (a *Aggregator) Recompute(ctx context.Context, modelID int64, day time.Time) error {
	listings, err := a.store.ListingsForModel(ctx, modelID)
	if err != nil {
		return fmt.Errorf("aggregate model %d: %w", modelID, err)
	}
	if len(listings) == 0 {
		a.logger.Debug("[aggregator] model %d has no listings, skipping snapshot", modelID)
		return nil
	}

	snap := Compute(listings)
	snap.ModelID = modelID
	snap.Date = storage.Day(day)

	if err := a.store.UpsertSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("aggregate model %d: %w", modelID, err)
	}

	a.logger.Info("[aggregator] model %d — %d listings, avg $%d (min $%d, max $%d)",
		modelID, snap.ListingCount, snap.AvgPrice, snap.MinPrice, snap.MaxPrice)
	return nil
}

// Compute folds listings into one snapshot's aggregate fields. Mileage
// averages only over listings that reported one.
func Compute(listings []*models.Listing) *models.PriceSnapshot {
	snap := &models.PriceSnapshot{ListingCount: len(listings)}

	priceSum := 0
	mileageSum, mileageCount := 0, 0
	snap.MinPrice = listings[0].Price
	snap.MaxPrice = listings[0].Price

	for _, l := range listings {
		priceSum += l.Price
		if l.Price < snap.MinPrice {
			snap.MinPrice = l.Price
		}
		if l.Price > snap.MaxPrice {
			snap.MaxPrice = l.Price
		}
		if l.Mileage != nil {
			mileageSum += *l.Mileage
			mileageCount++
		}
	}

	snap.AvgPrice = roundDiv(priceSum, len(listings))
	if mileageCount > 0 {
		snap.AvgMileage = roundDiv(mileageSum, mileageCount)
	}
	return snap
}

func roundDiv(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}

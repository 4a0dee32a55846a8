package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"ev-price-tracker/config"
	"ev-price-tracker/models"
	"ev-price-tracker/utils"
)

// evCatalog is the fixed set of tracked models, seeded once.
var evCatalog = []struct {
	Make, Model string
}{
	{"Tesla", "Model 3"},
	{"Tesla", "Model Y"},
	{"Tesla", "Model S"},
	{"Tesla", "Model X"},
	{"Ford", "Mustang Mach-E"},
	{"Ford", "F-150 Lightning"},
	{"Chevrolet", "Bolt EV"},
	{"Chevrolet", "Bolt EUV"},
	{"Chevrolet", "Equinox EV"},
	{"Rivian", "R1T"},
	{"Rivian", "R1S"},
	{"Hyundai", "Ioniq 5"},
	{"Hyundai", "Ioniq 6"},
	{"Kia", "EV6"},
	{"Kia", "EV9"},
	{"BMW", "i4"},
	{"BMW", "iX"},
	{"Mercedes", "EQS"},
	{"Mercedes", "EQE"},
	{"Volkswagen", "ID.4"},
}

var defaultSettings = map[string]string{
	"zip_code":      "77001",
	"search_radius": "200",
}

// Postgres is the lib/pq-backed Store implementation.
type Postgres struct {
	db *sql.DB
}

// Open connects to PostgreSQL, runs schema migrations, and seeds the
// model catalog and default settings.
func Open(cfg *config.Config, logger *utils.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
		Logger:      logger,
	}
	if err := retry.Do("postgres-ping", db.Ping); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pg := &Postgres{db: db}
	if err := pg.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	if err := pg.seed(); err != nil {
		return nil, fmt.Errorf("postgres: seed: %w", err)
	}

	return pg, nil
}

func (pg *Postgres) migrate() error {
	_, err := pg.db.Exec(`
		CREATE TABLE IF NOT EXISTS models (
			id    SERIAL PRIMARY KEY,
			make  TEXT NOT NULL,
			model TEXT NOT NULL,
			UNIQUE (make, model)
		);

		CREATE TABLE IF NOT EXISTS listings (
			id          SERIAL PRIMARY KEY,
			model_id    INTEGER NOT NULL REFERENCES models(id),
			source      TEXT NOT NULL,
			external_id TEXT NOT NULL,
			year        INTEGER,
			price       INTEGER NOT NULL,
			mileage     INTEGER,
			location    TEXT,
			url         TEXT NOT NULL DEFAULT '',
			scraped_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (source, external_id)
		);

		CREATE TABLE IF NOT EXISTS price_history (
			id            SERIAL PRIMARY KEY,
			model_id      INTEGER NOT NULL REFERENCES models(id),
			date          DATE NOT NULL,
			avg_price     INTEGER NOT NULL,
			min_price     INTEGER NOT NULL,
			max_price     INTEGER NOT NULL,
			listing_count INTEGER NOT NULL,
			avg_mileage   INTEGER NOT NULL DEFAULT 0,
			UNIQUE (model_id, date)
		);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_listings_model_id   ON listings(model_id);
		CREATE INDEX IF NOT EXISTS idx_listings_scraped_at ON listings(scraped_at);
		CREATE INDEX IF NOT EXISTS idx_price_history_model_date ON price_history(model_id, date);
	`)
	return err
}

func (pg *Postgres) seed() error {
	for _, m := range evCatalog {
		if _, err := pg.db.Exec(
			`INSERT INTO models (make, model) VALUES ($1, $2) ON CONFLICT (make, model) DO NOTHING`,
			m.Make, m.Model,
		); err != nil {
			return err
		}
	}
	for key, value := range defaultSettings {
		if _, err := pg.db.Exec(
			`INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
			key, value,
		); err != nil {
			return err
		}
	}
	return nil
}

// ListModels returns the tracked catalog ordered by make then model.
func (pg *Postgres) ListModels(ctx context.Context) ([]*models.Model, error) {
	rows, err := pg.db.QueryContext(ctx,
		`SELECT id, make, model FROM models ORDER BY make, model`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list models: %w", err)
	}
	defer rows.Close()

	var out []*models.Model
	for rows.Next() {
		m := &models.Model{}
		if err := rows.Scan(&m.ID, &m.Make, &m.Name); err != nil {
			return nil, fmt.Errorf("postgres: scan model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ModelByID returns one model or ErrNotFound.
func (pg *Postgres) ModelByID(ctx context.Context, id int64) (*models.Model, error) {
	m := &models.Model{}
	err := pg.db.QueryRowContext(ctx,
		`SELECT id, make, model FROM models WHERE id = $1`, id,
	).Scan(&m.ID, &m.Make, &m.Name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: model by id: %w", err)
	}
	return m, nil
}

// UpsertListing writes one listing by natural key, overwriting every
// mutable field of an existing row.
func (pg *Postgres) UpsertListing(ctx context.Context, l *models.Listing) error {
	_, err := pg.db.ExecContext(ctx, `
		INSERT INTO listings (model_id, source, external_id, year, price, mileage, location, url, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source, external_id) DO UPDATE SET
			model_id   = EXCLUDED.model_id,
			year       = EXCLUDED.year,
			price      = EXCLUDED.price,
			mileage    = EXCLUDED.mileage,
			location   = EXCLUDED.location,
			url        = EXCLUDED.url,
			scraped_at = EXCLUDED.scraped_at
	`, l.ModelID, l.Source, l.ExternalID, l.Year, l.Price, l.Mileage, l.Location, l.URL, l.ScrapedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert listing %s/%s: %w", l.Source, l.ExternalID, err)
	}
	return nil
}

// ListingsForModel returns every stored listing for a model with a
// positive price, the aggregate computation input.
func (pg *Postgres) ListingsForModel(ctx context.Context, modelID int64) ([]*models.Listing, error) {
	rows, err := pg.db.QueryContext(ctx, `
		SELECT id, model_id, source, external_id, year, price, mileage, location, url, scraped_at
		FROM listings
		WHERE model_id = $1 AND price > 0
		ORDER BY id
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listings for model: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

var listingSortColumns = map[string]bool{
	"price":      true,
	"mileage":    true,
	"year":       true,
	"scraped_at": true,
}

// Listings returns a page of a model's listings with whitelisted sorting.
func (pg *Postgres) Listings(ctx context.Context, modelID int64, opts ListingQuery) ([]*models.Listing, error) {
	sortBy := opts.SortBy
	if !listingSortColumns[sortBy] {
		sortBy = "price"
	}
	order := "ASC"
	if strings.EqualFold(opts.SortOrder, "desc") {
		order = "DESC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT id, model_id, source, external_id, year, price, mileage, location, url, scraped_at
		FROM listings
		WHERE model_id = $1
		ORDER BY %s %s
		LIMIT $2 OFFSET $3
	`, sortBy, order)

	rows, err := pg.db.QueryContext(ctx, query, modelID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

func scanListings(rows *sql.Rows) ([]*models.Listing, error) {
	var out []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		var year, mileage sql.NullInt64
		var location sql.NullString
		if err := rows.Scan(&l.ID, &l.ModelID, &l.Source, &l.ExternalID,
			&year, &l.Price, &mileage, &location, &l.URL, &l.ScrapedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		if year.Valid {
			y := int(year.Int64)
			l.Year = &y
		}
		if mileage.Valid {
			mi := int(mileage.Int64)
			l.Mileage = &mi
		}
		if location.Valid {
			loc := location.String
			l.Location = &loc
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpsertSnapshot writes one daily aggregate by (model_id, date),
// overwriting any existing row for that date.
func (pg *Postgres) UpsertSnapshot(ctx context.Context, s *models.PriceSnapshot) error {
	_, err := pg.db.ExecContext(ctx, `
		INSERT INTO price_history (model_id, date, avg_price, min_price, max_price, listing_count, avg_mileage)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (model_id, date) DO UPDATE SET
			avg_price     = EXCLUDED.avg_price,
			min_price     = EXCLUDED.min_price,
			max_price     = EXCLUDED.max_price,
			listing_count = EXCLUDED.listing_count,
			avg_mileage   = EXCLUDED.avg_mileage
	`, s.ModelID, s.Date, s.AvgPrice, s.MinPrice, s.MaxPrice, s.ListingCount, s.AvgMileage)
	if err != nil {
		return fmt.Errorf("postgres: upsert snapshot: %w", err)
	}
	return nil
}

// PriceHistory returns up to days snapshots for a model, oldest first.
func (pg *Postgres) PriceHistory(ctx context.Context, modelID int64, days int) ([]*models.PriceSnapshot, error) {
	if days <= 0 {
		days = 90
	}
	rows, err := pg.db.QueryContext(ctx, `
		SELECT model_id, date, avg_price, min_price, max_price, listing_count, avg_mileage
		FROM price_history
		WHERE model_id = $1
		ORDER BY date DESC
		LIMIT $2
	`, modelID, days)
	if err != nil {
		return nil, fmt.Errorf("postgres: price history: %w", err)
	}
	defer rows.Close()

	var out []*models.PriceSnapshot
	for rows.Next() {
		s := &models.PriceSnapshot{}
		if err := rows.Scan(&s.ModelID, &s.Date, &s.AvgPrice, &s.MinPrice,
			&s.MaxPrice, &s.ListingCount, &s.AvgMileage); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query walks newest-first for the LIMIT; callers chart oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Stats computes the dashboard summary over everything stored.
func (pg *Postgres) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{}

	err := pg.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT model_id),
		       COALESCE((SELECT AVG(price)::INTEGER FROM listings WHERE price > 0), 0)
		FROM listings
	`).Scan(&stats.TotalListings, &stats.ModelsWithData, &stats.AvgPrice)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats: %w", err)
	}

	var last sql.NullTime
	if err := pg.db.QueryRowContext(ctx,
		`SELECT MAX(scraped_at) FROM listings`).Scan(&last); err != nil {
		return nil, fmt.Errorf("postgres: stats last scrape: %w", err)
	}
	if last.Valid {
		stats.LastScrape = &last.Time
	}

	rows, err := pg.db.QueryContext(ctx, `
		SELECT m.make, m.model, AVG(l.price)::INTEGER, COUNT(*)
		FROM listings l
		JOIN models m ON l.model_id = m.id
		WHERE l.price > 0
		GROUP BY m.make, m.model
		ORDER BY AVG(l.price) ASC
		LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats cheapest: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s := &models.ModelPriceSummary{}
		if err := rows.Scan(&s.Make, &s.Model, &s.AvgPrice, &s.Count); err != nil {
			return nil, fmt.Errorf("postgres: scan summary: %w", err)
		}
		stats.CheapestModels = append(stats.CheapestModels, s)
	}
	return stats, rows.Err()
}

// Settings returns the full settings map.
func (pg *Postgres) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := pg.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("postgres: settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("postgres: scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// UpdateSetting writes one setting by key.
func (pg *Postgres) UpdateSetting(ctx context.Context, key, value string) error {
	_, err := pg.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("postgres: update setting %s: %w", key, err)
	}
	return nil
}

func (pg *Postgres) Close() error {
	return pg.db.Close()
}

package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"ev-price-tracker/models"
)

// WriteListingsCSV streams listings as CSV, header first. Used by the
// export endpoint.
func WriteListingsCSV(w io.Writer, listings []*models.Listing) error {
	cw := csv.NewWriter(w)

	header := []string{
		"source", "external_id", "year", "price", "mileage", "location", "url", "scraped_at",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, l := range listings {
		year := ""
		if l.Year != nil {
			year = strconv.Itoa(*l.Year)
		}
		mileage := ""
		if l.Mileage != nil {
			mileage = strconv.Itoa(*l.Mileage)
		}
		location := ""
		if l.Location != nil {
			location = *l.Location
		}

		row := []string{
			l.Source,
			l.ExternalID,
			year,
			strconv.Itoa(l.Price),
			mileage,
			location,
			l.URL,
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

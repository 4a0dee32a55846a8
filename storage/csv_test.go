package storage

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"ev-price-tracker/models"
)

func TestWriteListingsCSV(t *testing.T) {
	year := 2022
	mileage := 45231
	location := "Austin, TX"

	listings := []*models.Listing{
		{
			Source:     "cars.com",
			ExternalID: "abc123",
			Year:       &year,
			Price:      28990,
			Mileage:    &mileage,
			Location:   &location,
			URL:        "https://www.cars.com/vehicledetail/abc123",
			ScrapedAt:  time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		},
		{
			Source:     "cargurus",
			ExternalID: "cg-123",
			Price:      31500,
			ScrapedAt:  time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	if err := WriteListingsCSV(&buf, listings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines: got %d, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "source,external_id,year") {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "28990") || !strings.Contains(lines[1], "Austin, TX") {
		t.Errorf("row 1 missing fields: %q", lines[1])
	}
	// Optional fields render as empty cells, not zeros.
	if strings.Contains(lines[2], ",0,") && !strings.Contains(lines[2], "31500") {
		t.Errorf("row 2 should leave unknown year/mileage empty: %q", lines[2])
	}
}

package models

import "time"

// StatusSnapshot is a point-in-time copy of the scrape run state. It is
// safe to hand out across goroutines: the Errors slice is always a copy.
type StatusSnapshot struct {
	IsRunning    bool     `json:"is_running"`
	CurrentModel string   `json:"current_model"`
	Progress     int      `json:"progress"`
	Total        int      `json:"total"`
	Errors       []string `json:"errors"`
}

// Stats holds the dashboard summary computed over everything stored so far.
type Stats struct {
	TotalListings  int                  `json:"total_listings"`
	ModelsWithData int                  `json:"models_with_data"`
	AvgPrice       int                  `json:"avg_price"`
	LastScrape     *time.Time           `json:"last_scrape"`
	CheapestModels []*ModelPriceSummary `json:"cheapest_models"`
}

// ModelPriceSummary is one row of the cheapest-models ranking.
type ModelPriceSummary struct {
	Make     string `json:"make"`
	Model    string `json:"model"`
	AvgPrice int    `json:"avg_price"`
	Count    int    `json:"count"`
}

package domain

import "time"

// Trend directions
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendWorsening = "worsening"
)

// TrendDataPoint is one day of waiting-debt history
type TrendDataPoint struct {
	Date           time.Time `json:"date"`
	PeopleWaiting  int       `json:"people_waiting"`
	ItemCount      int       `json:"item_count"`
	TotalWaitHours int       `json:"total_wait_hours"`
}

// WaitingDebtTrend summarizes how many people have been waiting over the window
type WaitingDebtTrend struct {
	DataPoints           []TrendDataPoint `json:"data_points"`
	Trend                string           `json:"trend"`
	AveragePeopleWaiting float64          `json:"average_people_waiting"`
	PeakDay              string           `json:"peak_day"`
}

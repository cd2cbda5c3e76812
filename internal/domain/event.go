package domain

import "time"

// AggregateEvent announces that a user's environmental aggregates were
// refreshed by a batch run.
type AggregateEvent struct {
	UserID           string    `json:"user_id"`
	RainfallMonths   int       `json:"rainfall_months"`
	VegetationMonths int       `json:"vegetation_months"`
	MetricsWritten   int       `json:"metrics_written"`
	ProcessedAt      time.Time `json:"processed_at"`
}

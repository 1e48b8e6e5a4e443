package domain

import "time"

// FeedRunResult is the per-feed outcome of one ingestion run
type FeedRunResult struct {
	FeedID        int64  `json:"feed_id"`
	Source        string `json:"source"`
	ItemsFound    int    `json:"items_found"`
	ItemsUpserted int    `json:"items_upserted"`
	Error         string `json:"error,omitempty"`
}

// RunSummary is the externally observable result of one ingestion run
type RunSummary struct {
	RunID          string          `json:"run_id"`
	StartedAt      time.Time       `json:"started_at"`
	Duration       time.Duration   `json:"duration"`
	FeedsProcessed int             `json:"feeds_processed"`
	FeedsFailed    int             `json:"feeds_failed"`
	TotalFound     int             `json:"total_found"`
	TotalUpserted  int             `json:"total_upserted"`
	Feeds          []FeedRunResult `json:"feeds"`
}

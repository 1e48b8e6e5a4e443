package domain

import "time"

// Feed represents a configured RSS/Atom source
type Feed struct {
	ID          int64
	URL         string
	Source      string // display name shown on articles from this feed
	Category    string // category applied in trust mode
	Enabled     bool
	LastFetched *time.Time
	ErrorCount  int // consecutive fetch failures, reset on success
	LastError   string
	CreatedAt   time.Time
}

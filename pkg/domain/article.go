package domain

import "time"

// RawItem is one entry parsed out of a feed payload, before normalization.
// It lives only inside the ingestion pipeline and is never persisted.
type RawItem struct {
	Title       string
	Link        string
	Published   time.Time
	Description string
	Content     string
	Author      string

	// ImageCandidates holds image URLs found in the item's own XML
	// (media:content, media:thumbnail, image enclosures), document order
	ImageCandidates []string
}

// Article is the normalized, stored representation of a feed item.
// Link is the canonical identity: re-ingesting the same link updates
// the existing article in place.
type Article struct {
	ID          int64
	FeedID      int64
	Title       string
	Link        string
	Summary     string
	Image       string // empty when no image was resolved, stored as NULL
	Source      string
	Category    string
	Author      string
	Published   time.Time
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

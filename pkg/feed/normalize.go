package feed

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/newsleak/newsleak/pkg/domain"
)

// DefaultMaxSummary caps summary length in runes
const DefaultMaxSummary = 500

// Normalizer turns raw feed items into storable articles. Summaries are
// stripped of markup and bounded, publish times are normalized to UTC.
type Normalizer struct {
	policy     *bluemonday.Policy
	maxSummary int
}

// NewNormalizer creates a normalizer, maxSummary <= 0 selects the default
func NewNormalizer(maxSummary int) *Normalizer {
	if maxSummary <= 0 {
		maxSummary = DefaultMaxSummary
	}
	return &Normalizer{policy: bluemonday.StrictPolicy(), maxSummary: maxSummary}
}

// Normalize assembles the article record from the raw item, its feed, and
// the already-resolved image and category
func (n *Normalizer) Normalize(item domain.RawItem, f domain.Feed, image, category string) domain.Article {
	return domain.Article{
		FeedID:      f.ID,
		Title:       strings.TrimSpace(item.Title),
		Link:        item.Link,
		Summary:     n.summarize(item),
		Image:       image,
		Source:      f.Source,
		Category:    category,
		Author:      strings.TrimSpace(item.Author),
		Published:   item.Published.UTC(),
		IsPublished: true,
	}
}

// summarize produces a plain-text bounded summary, preferring the item's
// description over its full content
func (n *Normalizer) summarize(item domain.RawItem) string {
	text := item.Description
	if strings.TrimSpace(text) == "" {
		text = item.Content
	}

	text = n.policy.Sanitize(text)
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) <= n.maxSummary {
		return text
	}

	cut := string(runes[:n.maxSummary])
	// break at a word boundary when one is reasonably close
	if idx := strings.LastIndex(cut, " "); idx > n.maxSummary/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}

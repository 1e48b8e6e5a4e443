package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/newsleak/newsleak/pkg/domain"
)

// Parser converts raw feed payloads into RawItem records. It is decoupled
// from the transport so the same parsing code path serves every execution
// context, whether the payload arrived directly or through a relay.
type Parser struct {
	gf *gofeed.Parser
}

// NewParser creates a feed parser
func NewParser() *Parser {
	return &Parser{gf: gofeed.NewParser()}
}

// Parse extracts items from a feed payload. Items without both a title and
// a link are dropped, those two fields are mandatory for article identity.
// The now argument supplies the publish-time fallback for items with a
// missing or unparsable date, so articles always sort predictably.
func (p *Parser) Parse(data []byte, now time.Time) ([]domain.RawItem, error) {
	parsed, err := p.gf.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.RawItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		raw := domain.RawItem{
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Description: item.Description,
		}

		if raw.Title == "" || raw.Link == "" {
			continue
		}

		// prefer content:encoded over the plain description
		raw.Content = item.Content
		if raw.Content == "" {
			raw.Content = item.Description
		}

		switch {
		case item.PublishedParsed != nil:
			raw.Published = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			raw.Published = item.UpdatedParsed.UTC()
		default:
			raw.Published = now.UTC()
		}

		raw.Author = itemAuthor(item)
		raw.ImageCandidates = imageCandidates(item)

		items = append(items, raw)
	}

	return items, nil
}

// itemAuthor resolves the author from <author> or dc:creator
func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return item.DublinCoreExt.Creator[0]
	}
	return ""
}

// imageCandidates collects image URLs declared in the item XML itself, in
// priority order: media:content, media:thumbnail, then enclosures carrying
// an image type. Images embedded in the item's HTML are handled later by
// the resolver.
func imageCandidates(item *gofeed.Item) []string {
	var candidates []string

	if media, ok := item.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			if u := ext.Attrs["url"]; u != "" {
				candidates = append(candidates, u)
			}
		}
		for _, ext := range media["thumbnail"] {
			if u := ext.Attrs["url"]; u != "" {
				candidates = append(candidates, u)
			}
		}
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") {
			candidates = append(candidates, enc.URL)
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		candidates = append(candidates, item.Image.URL)
	}

	return candidates
}

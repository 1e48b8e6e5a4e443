package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/newsleak/newsleak/pkg/domain"
)

// Generator creates RSS feeds from stored articles
type Generator struct {
	baseURL string
}

// NewGenerator creates a new feed generator
func NewGenerator(baseURL string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// GenerateRSS creates an RSS 2.0 feed from articles, optionally scoped to a
// single category
func (g *Generator) GenerateRSS(articles []domain.Article, category string) (string, error) {
	title := "Newsleak - All Categories"
	selfLink := g.baseURL + "/rss"
	if category != "" {
		title = fmt.Sprintf("Newsleak - %s", category)
		selfLink = fmt.Sprintf("%s/rss/%s", g.baseURL, category)
	}

	rssItems := make([]*RSSItem, 0, len(articles))
	for _, article := range articles {
		rssItems = append(rssItems, g.convertToRSSItem(article))
	}

	feed := &RSS{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: &RSSChannel{
			Title:         title,
			Link:          g.baseURL + "/",
			Description:   "Aggregated news articles from Newsleak",
			AtomLink:      &AtomLink{Href: selfLink, Rel: "self", Type: "application/rss+xml"},
			LastBuildDate: time.Now().Format(time.RFC1123Z),
			Items:         rssItems,
		},
	}

	output, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}

	return xml.Header + string(output), nil
}

// convertToRSSItem converts a stored article to an RSS item
func (g *Generator) convertToRSSItem(article domain.Article) *RSSItem {
	item := &RSSItem{
		Title:       article.Title,
		Link:        article.Link,
		GUID:        article.Link,
		Description: article.Summary,
		Author:      article.Author,
		PubDate:     article.Published.Format(time.RFC1123Z),
		Categories:  []string{article.Category},
	}
	if article.Image != "" {
		item.Enclosure = &Enclosure{URL: article.Image, Type: "image/jpeg"}
	}
	return item
}

package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/net/html"

	"github.com/newsleak/newsleak/pkg/domain"
)

// PageScraper fetches an article's landing page and returns its
// representative image, usually from og:image metadata
type PageScraper interface {
	ScrapeImage(ctx context.Context, pageURL string) (string, error)
}

// ImageResolver resolves a representative image URL for an item through an
// ordered fallback chain: image URLs declared in the item XML, og:image
// metadata embedded in the item HTML, the first usable <img> in that HTML,
// and finally an optional rate-limited scrape of the article's own page.
// Resolution never fails an item, the worst outcome is an empty result.
type ImageResolver struct {
	scraper       PageScraper // nil disables the landing-page fallback
	scrapeTimeout time.Duration
	scrapeEvery   time.Duration

	mu         sync.Mutex
	lastScrape time.Time
}

// NewImageResolver creates a resolver. Pass a nil scraper to disable the
// landing-page fallback, scrapeEvery throttles it across all feeds.
func NewImageResolver(scraper PageScraper, scrapeTimeout, scrapeEvery time.Duration) *ImageResolver {
	if scrapeTimeout <= 0 {
		scrapeTimeout = 10 * time.Second
	}
	return &ImageResolver{scraper: scraper, scrapeTimeout: scrapeTimeout, scrapeEvery: scrapeEvery}
}

// Resolve returns the first usable image URL for the item, or "" when none
// is found
func (r *ImageResolver) Resolve(ctx context.Context, item domain.RawItem) string {
	for _, c := range item.ImageCandidates {
		if u := strings.TrimSpace(c); u != "" {
			return u
		}
	}

	embedded := item.Content
	if embedded == "" {
		embedded = item.Description
	}
	if embedded != "" {
		if u := ogImageFromHTML(embedded); u != "" {
			return u
		}
		if u := firstContentImage(embedded); u != "" {
			return u
		}
	}

	if r.scraper != nil && item.Link != "" {
		return r.scrapePage(ctx, item.Link)
	}
	return ""
}

// scrapePage fetches the article page for its image, throttled and with
// its own timeout. Any failure degrades to "no image".
func (r *ImageResolver) scrapePage(ctx context.Context, pageURL string) string {
	r.mu.Lock()
	if wait := r.scrapeEvery - time.Since(r.lastScrape); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			r.mu.Unlock()
			return ""
		}
	}
	r.lastScrape = time.Now()
	r.mu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, r.scrapeTimeout)
	defer cancel()

	img, err := r.scraper.ScrapeImage(sctx, pageURL)
	if err != nil {
		lgr.Printf("[DEBUG] page image scrape failed for %s: %v", pageURL, err)
		return ""
	}
	return img
}

// ogImageFromHTML scans an HTML fragment for an og:image meta tag
func ogImageFromHTML(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "meta" {
			var prop, content string
			for _, a := range n.Attr {
				switch strings.ToLower(a.Key) {
				case "property", "name":
					prop = strings.ToLower(a.Val)
				case "content":
					content = a.Val
				}
			}
			if prop == "og:image" && content != "" {
				found = content
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// firstContentImage returns the first <img src> in the fragment, skipping
// tracking pixels and spacer images
func firstContentImage(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "img" {
			var src, width, height string
			for _, a := range n.Attr {
				switch strings.ToLower(a.Key) {
				case "src":
					src = strings.TrimSpace(a.Val)
				case "width":
					width = a.Val
				case "height":
					height = a.Val
				}
			}
			if src != "" && !isTrackingPixel(src, width, height) {
				found = src
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// isTrackingPixel rejects 1x1 images and well-known spacer names
func isTrackingPixel(src, width, height string) bool {
	if width == "1" || height == "1" {
		return true
	}
	lower := strings.ToLower(src)
	for _, marker := range []string{"spacer", "pixel", "1x1", "blank."} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

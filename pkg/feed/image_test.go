package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/newsleak/newsleak/pkg/domain"
)

type fakeScraper struct {
	image string
	err   error
	calls int
}

func (f *fakeScraper) ScrapeImage(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.image, nil
}

func TestImageResolver_Resolve(t *testing.T) {
	tests := []struct {
		name string
		item domain.RawItem
		want string
	}{
		{
			name: "declared candidate wins over embedded html",
			item: domain.RawItem{
				ImageCandidates: []string{"https://example.com/thumb.jpg"},
				Content:         `<meta property="og:image" content="https://example.com/og.jpg"><img src="https://example.com/inline.jpg">`,
			},
			want: "https://example.com/thumb.jpg",
		},
		{
			name: "og:image from embedded html",
			item: domain.RawItem{
				Content: `<div><meta property="og:image" content="https://example.com/og.jpg"><img src="https://example.com/inline.jpg"></div>`,
			},
			want: "https://example.com/og.jpg",
		},
		{
			name: "first img when no og:image",
			item: domain.RawItem{
				Content: `<p>text</p><img src="https://example.com/pic1.jpg"><img src="https://example.com/pic2.jpg">`,
			},
			want: "https://example.com/pic1.jpg",
		},
		{
			name: "description used when content empty",
			item: domain.RawItem{
				Description: `<img src="https://example.com/desc.jpg">`,
			},
			want: "https://example.com/desc.jpg",
		},
		{
			name: "tracking pixel skipped",
			item: domain.RawItem{
				Content: `<img src="https://tracker.example.com/pixel.gif" width="1" height="1"><img src="https://example.com/real.jpg">`,
			},
			want: "https://example.com/real.jpg",
		},
		{
			name: "spacer image skipped by name",
			item: domain.RawItem{
				Content: `<img src="https://cdn.example.com/spacer.gif"><img src="https://example.com/story.jpg">`,
			},
			want: "https://example.com/story.jpg",
		},
		{
			name: "blank candidate ignored",
			item: domain.RawItem{
				ImageCandidates: []string{"  ", ""},
				Content:         `<img src="https://example.com/fallback.jpg">`,
			},
			want: "https://example.com/fallback.jpg",
		},
		{
			name: "nothing found",
			item: domain.RawItem{Content: "<p>plain text only</p>"},
			want: "",
		},
	}

	resolver := NewImageResolver(nil, time.Second, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.Resolve(context.Background(), tt.item)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageResolver_ScraperFallback(t *testing.T) {
	scraper := &fakeScraper{image: "https://example.com/scraped.jpg"}
	resolver := NewImageResolver(scraper, time.Second, 0)

	item := domain.RawItem{Link: "https://example.com/article", Content: "<p>no images</p>"}
	got := resolver.Resolve(context.Background(), item)
	assert.Equal(t, "https://example.com/scraped.jpg", got)
	assert.Equal(t, 1, scraper.calls)
}

func TestImageResolver_ScraperNotCalledWhenCandidateExists(t *testing.T) {
	scraper := &fakeScraper{image: "https://example.com/scraped.jpg"}
	resolver := NewImageResolver(scraper, time.Second, 0)

	item := domain.RawItem{
		Link:            "https://example.com/article",
		ImageCandidates: []string{"https://example.com/declared.jpg"},
	}
	got := resolver.Resolve(context.Background(), item)
	assert.Equal(t, "https://example.com/declared.jpg", got)
	assert.Equal(t, 0, scraper.calls, "scrape skipped when feed already supplied an image")
}

func TestImageResolver_ScraperError(t *testing.T) {
	scraper := &fakeScraper{err: fmt.Errorf("page unreachable")}
	resolver := NewImageResolver(scraper, time.Second, 0)

	item := domain.RawItem{Link: "https://example.com/article"}
	got := resolver.Resolve(context.Background(), item)
	assert.Empty(t, got, "scrape failure degrades to no image")
}

func TestImageResolver_ScrapeRateLimit(t *testing.T) {
	scraper := &fakeScraper{image: "https://example.com/scraped.jpg"}
	resolver := NewImageResolver(scraper, time.Second, 50*time.Millisecond)

	item := domain.RawItem{Link: "https://example.com/article"}

	start := time.Now()
	resolver.Resolve(context.Background(), item)
	resolver.Resolve(context.Background(), item)
	elapsed := time.Since(start)

	assert.Equal(t, 2, scraper.calls)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "second scrape waits for the interval")
}

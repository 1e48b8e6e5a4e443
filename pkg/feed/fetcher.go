package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-pkgz/repeater/v2"
)

// Fetcher retrieves raw feed payloads over HTTP. When a relay URL is
// configured every request is routed through it, the same way browser-side
// deployments work around cross-origin restrictions with a CORS proxy.
type Fetcher struct {
	client    *http.Client
	userAgent string
	relayURL  string
	attempts  int
}

// refuse to slurp feeds larger than 10MB
const maxFeedSize = 10 * 1024 * 1024

// NewFetcher creates a feed fetcher. The relay URL, if not empty, is used
// as a prefix for the query-escaped target URL. attempts <= 1 disables
// retries, which matches the historical single-shot behavior.
func NewFetcher(timeout time.Duration, userAgent, relayURL string, attempts int) *Fetcher {
	if attempts < 1 {
		attempts = 1
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		relayURL:  relayURL,
		attempts:  attempts,
	}
}

// Fetch performs the HTTP GET for a feed URL and returns the raw body
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	if f.attempts == 1 {
		return f.fetchOnce(ctx, feedURL)
	}

	var data []byte
	retrier := repeater.NewBackoff(f.attempts, 500*time.Millisecond, repeater.WithMaxDelay(5*time.Second))
	err := retrier.Do(ctx, func() error {
		var ferr error
		data, ferr = f.fetchOnce(ctx, feedURL)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, feedURL string) ([]byte, error) {
	target := feedURL
	if f.relayURL != "" {
		target = f.relayURL + url.QueryEscape(feedURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, feedURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return data, nil
}

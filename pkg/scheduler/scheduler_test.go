package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsleak/newsleak/pkg/domain"
)

type fakeRegistry struct {
	mu       sync.Mutex
	feeds    []domain.Feed
	feedsErr error
	fetched  []int64
	failed   map[int64]string
}

func (f *fakeRegistry) GetFeeds(_ context.Context, _ bool) ([]domain.Feed, error) {
	return f.feeds, f.feedsErr
}

func (f *fakeRegistry) UpdateFeedFetched(_ context.Context, feedID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, feedID)
	return nil
}

func (f *fakeRegistry) UpdateFeedError(_ context.Context, feedID int64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = map[int64]string{}
	}
	f.failed[feedID] = errMsg
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	articles []domain.Article
	errLinks map[string]error
	existing map[string]bool
}

func (f *fakeStore) UpsertArticle(_ context.Context, article *domain.Article) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errLinks[article.Link]; err != nil {
		return false, err
	}
	f.articles = append(f.articles, *article)
	return !f.existing[article.Link], nil
}

type fakeFetcher struct {
	payloads map[string][]byte
	errs     map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, feedURL string) ([]byte, error) {
	if err := f.errs[feedURL]; err != nil {
		return nil, err
	}
	return f.payloads[feedURL], nil
}

type fakeParser struct {
	items map[string][]domain.RawItem
	errs  map[string]error
}

func (f *fakeParser) Parse(data []byte, _ time.Time) ([]domain.RawItem, error) {
	if err := f.errs[string(data)]; err != nil {
		return nil, err
	}
	return f.items[string(data)], nil
}

type fakeResolver struct{ image string }

func (f *fakeResolver) Resolve(_ context.Context, _ domain.RawItem) string { return f.image }

type fakeClassifier struct{ category string }

func (f *fakeClassifier) Classify(feedCategory, _, _ string) string {
	if f.category != "" {
		return f.category
	}
	return feedCategory
}

type fakeLLM struct {
	category string
	err      error
	calls    int
}

func (f *fakeLLM) ClassifyCategory(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.category, f.err
}

type fakeNormalizer struct{}

func (f *fakeNormalizer) Normalize(item domain.RawItem, fd domain.Feed, image, category string) domain.Article {
	return domain.Article{
		FeedID:      fd.ID,
		Title:       item.Title,
		Link:        item.Link,
		Image:       image,
		Source:      fd.Source,
		Category:    category,
		Published:   item.Published,
		IsPublished: true,
	}
}

type fakeNotifier struct {
	mu    sync.Mutex
	links []string
}

func (f *fakeNotifier) NotifyNewArticle(_ context.Context, article domain.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, article.Link)
	return nil
}

func newTestScheduler(registry *fakeRegistry, store *fakeStore, fetcher *fakeFetcher, parser *fakeParser, cfg Config) *Scheduler {
	return NewScheduler(registry, store, fetcher, parser,
		&fakeResolver{image: "https://example.com/img.jpg"}, &fakeClassifier{}, &fakeNormalizer{}, cfg)
}

func TestScheduler_Run(t *testing.T) {
	registry := &fakeRegistry{feeds: []domain.Feed{
		{ID: 1, URL: "https://a.example.com/rss", Source: "A", Category: "Politics", Enabled: true},
		{ID: 2, URL: "https://b.example.com/rss", Source: "B", Category: "Sports", Enabled: true},
	}}
	store := &fakeStore{}
	fetcher := &fakeFetcher{payloads: map[string][]byte{
		"https://a.example.com/rss": []byte("payload-a"),
		"https://b.example.com/rss": []byte("payload-b"),
	}}
	parser := &fakeParser{items: map[string][]domain.RawItem{
		"payload-a": {
			{Title: "A1", Link: "https://a.example.com/1"},
			{Title: "A2", Link: "https://a.example.com/2"},
		},
		"payload-b": {
			{Title: "B1", Link: "https://b.example.com/1"},
		},
	}}

	sched := newTestScheduler(registry, store, fetcher, parser, Config{})

	summary, err := sched.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.FeedsProcessed)
	assert.Zero(t, summary.FeedsFailed)
	assert.Equal(t, 3, summary.TotalFound)
	assert.Equal(t, 3, summary.TotalUpserted)
	assert.Len(t, summary.Feeds, 2)

	assert.Len(t, store.articles, 3)
	assert.ElementsMatch(t, []int64{1, 2}, registry.fetched)
	assert.Empty(t, registry.failed)

	// classifier and resolver outputs flow into the stored article
	for _, a := range store.articles {
		assert.Equal(t, "https://example.com/img.jpg", a.Image)
		assert.NotEmpty(t, a.Category)
	}
}

func TestScheduler_RunFeedFailureIsolated(t *testing.T) {
	registry := &fakeRegistry{feeds: []domain.Feed{
		{ID: 1, URL: "https://ok.example.com/rss", Source: "OK", Enabled: true},
		{ID: 2, URL: "https://broken.example.com/rss", Source: "Broken", Enabled: true},
	}}
	store := &fakeStore{}
	fetcher := &fakeFetcher{
		payloads: map[string][]byte{"https://ok.example.com/rss": []byte("payload-ok")},
		errs:     map[string]error{"https://broken.example.com/rss": fmt.Errorf("connection refused")},
	}
	parser := &fakeParser{items: map[string][]domain.RawItem{
		"payload-ok": {{Title: "OK1", Link: "https://ok.example.com/1"}},
	}}

	sched := newTestScheduler(registry, store, fetcher, parser, Config{})

	summary, err := sched.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FeedsProcessed)
	assert.Equal(t, 1, summary.FeedsFailed)
	assert.Equal(t, 1, summary.TotalUpserted)

	// the broken feed got its error recorded, the healthy one its stamp
	assert.Contains(t, registry.failed[2], "fetch")
	assert.Equal(t, []int64{1}, registry.fetched)

	var failedResult *domain.FeedRunResult
	for i := range summary.Feeds {
		if summary.Feeds[i].FeedID == 2 {
			failedResult = &summary.Feeds[i]
		}
	}
	require.NotNil(t, failedResult)
	assert.Contains(t, failedResult.Error, "connection refused")
}

func TestScheduler_RunParseFailure(t *testing.T) {
	registry := &fakeRegistry{feeds: []domain.Feed{
		{ID: 1, URL: "https://bad.example.com/rss", Source: "Bad", Enabled: true},
	}}
	store := &fakeStore{}
	fetcher := &fakeFetcher{payloads: map[string][]byte{"https://bad.example.com/rss": []byte("garbage")}}
	parser := &fakeParser{errs: map[string]error{"garbage": fmt.Errorf("invalid xml")}}

	sched := newTestScheduler(registry, store, fetcher, parser, Config{})

	summary, err := sched.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FeedsFailed)
	assert.Contains(t, registry.failed[1], "parse")
	assert.Empty(t, registry.fetched, "failed feed keeps its stale last_fetched")
}

func TestScheduler_RunItemFailureSkipsItem(t *testing.T) {
	registry := &fakeRegistry{feeds: []domain.Feed{
		{ID: 1, URL: "https://a.example.com/rss", Source: "A", Enabled: true},
	}}
	store := &fakeStore{errLinks: map[string]error{"https://a.example.com/2": fmt.Errorf("disk full")}}
	fetcher := &fakeFetcher{payloads: map[string][]byte{"https://a.example.com/rss": []byte("payload")}}
	parser := &fakeParser{items: map[string][]domain.RawItem{
		"payload": {
			{Title: "A1", Link: "https://a.example.com/1"},
			{Title: "A2", Link: "https://a.example.com/2"},
			{Title: "A3", Link: "https://a.example.com/3"},
		},
	}}

	sched := newTestScheduler(registry, store, fetcher, parser, Config{})

	summary, err := sched.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalFound)
	assert.Equal(t, 2, summary.TotalUpserted, "failed item skipped, rest stored")
	assert.Zero(t, summary.FeedsFailed, "item failure does not fail the feed")
	assert.Equal(t, []int64{1}, registry.fetched)
}

func TestScheduler_RunGetFeedsError(t *testing.T) {
	registry := &fakeRegistry{feedsErr: fmt.Errorf("database gone")}
	sched := newTestScheduler(registry, &fakeStore{}, &fakeFetcher{}, &fakeParser{}, Config{})

	_, err := sched.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get enabled feeds")
}

func TestScheduler_NotifierOnlyOnCreate(t *testing.T) {
	registry := &fakeRegistry{feeds: []domain.Feed{
		{ID: 1, URL: "https://a.example.com/rss", Source: "A", Enabled: true},
	}}
	store := &fakeStore{existing: map[string]bool{"https://a.example.com/old": true}}
	fetcher := &fakeFetcher{payloads: map[string][]byte{"https://a.example.com/rss": []byte("payload")}}
	parser := &fakeParser{items: map[string][]domain.RawItem{
		"payload": {
			{Title: "Old", Link: "https://a.example.com/old"},
			{Title: "New", Link: "https://a.example.com/new"},
		},
	}}
	notifier := &fakeNotifier{}

	sched := newTestScheduler(registry, store, fetcher, parser, Config{Notifier: notifier})

	summary, err := sched.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalUpserted)
	assert.Equal(t, []string{"https://a.example.com/new"}, notifier.links, "updates are not announced")
}

func TestScheduler_LLMClassifierWithFallback(t *testing.T) {
	registry := &fakeRegistry{feeds: []domain.Feed{
		{ID: 1, URL: "https://a.example.com/rss", Source: "A", Category: "Sports", Enabled: true},
	}}
	fetcher := &fakeFetcher{payloads: map[string][]byte{"https://a.example.com/rss": []byte("payload")}}
	parser := &fakeParser{items: map[string][]domain.RawItem{
		"payload": {{Title: "Story", Link: "https://a.example.com/1"}},
	}}

	t.Run("llm result used", func(t *testing.T) {
		store := &fakeStore{}
		llm := &fakeLLM{category: "Technology"}
		sched := newTestScheduler(registry, store, fetcher, parser, Config{LLMClassifier: llm})

		_, err := sched.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, store.articles, 1)
		assert.Equal(t, "Technology", store.articles[0].Category)
		assert.Equal(t, 1, llm.calls)
	})

	t.Run("llm error falls back to keyword classifier", func(t *testing.T) {
		store := &fakeStore{}
		llm := &fakeLLM{err: fmt.Errorf("model unavailable")}
		sched := newTestScheduler(registry, store, fetcher, parser, Config{LLMClassifier: llm})

		_, err := sched.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, store.articles, 1)
		assert.Equal(t, "Sports", store.articles[0].Category, "feed category via fallback classifier")
	})
}

func TestScheduler_StartStop(t *testing.T) {
	registry := &fakeRegistry{feeds: []domain.Feed{
		{ID: 1, URL: "https://a.example.com/rss", Source: "A", Enabled: true},
	}}
	store := &fakeStore{}
	fetcher := &fakeFetcher{payloads: map[string][]byte{"https://a.example.com/rss": []byte("payload")}}
	parser := &fakeParser{items: map[string][]domain.RawItem{
		"payload": {{Title: "A1", Link: "https://a.example.com/1"}},
	}}

	sched := newTestScheduler(registry, store, fetcher, parser, Config{UpdateInterval: time.Hour})

	sched.Start(context.Background())

	// immediate run on start
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.articles) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sched.Stop()
}

func TestScheduler_WorkerLimit(t *testing.T) {
	const feedCount = 20
	feeds := make([]domain.Feed, feedCount)
	payloads := map[string][]byte{}
	for i := range feeds {
		url := fmt.Sprintf("https://feed%d.example.com/rss", i)
		feeds[i] = domain.Feed{ID: int64(i + 1), URL: url, Source: fmt.Sprintf("F%d", i), Enabled: true}
		payloads[url] = []byte("payload")
	}

	var mu sync.Mutex
	active, maxActive := 0, 0
	fetcher := &trackingFetcher{onFetch: func() {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}}

	registry := &fakeRegistry{feeds: feeds}
	parser := &fakeParser{items: map[string][]domain.RawItem{"payload": {}}}

	sched := newTestScheduler(registry, &fakeStore{}, &fakeFetcher{}, parser, Config{MaxWorkers: 3})
	sched.fetcher = fetcher

	summary, err := sched.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, feedCount, summary.FeedsProcessed)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxActive, 3, "concurrency bounded by max workers")
}

type trackingFetcher struct{ onFetch func() }

func (f *trackingFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.onFetch()
	return []byte("payload"), nil
}

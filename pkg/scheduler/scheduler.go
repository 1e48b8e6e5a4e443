package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/newsleak/newsleak/pkg/domain"
)

// Scheduler runs the ingestion pipeline: on every cycle it fetches all
// enabled feeds concurrently, parses their items, resolves images, assigns
// categories, and upserts normalized articles. Feed failures are isolated,
// one broken feed never stops the run.
type Scheduler struct {
	feeds          FeedRegistry
	articles       ArticleStore
	fetcher        Fetcher
	parser         Parser
	images         ImageResolver
	classifier     Classifier
	llmClassifier  LLMClassifier // optional, nil disables the llm path
	normalizer     Normalizer
	notifier       Notifier // optional
	updateInterval time.Duration
	maxWorkers     int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// FeedRegistry provides feed listing and fetch bookkeeping
type FeedRegistry interface {
	GetFeeds(ctx context.Context, enabledOnly bool) ([]domain.Feed, error)
	UpdateFeedFetched(ctx context.Context, feedID int64) error
	UpdateFeedError(ctx context.Context, feedID int64, errMsg string) error
}

// ArticleStore persists normalized articles
type ArticleStore interface {
	UpsertArticle(ctx context.Context, article *domain.Article) (created bool, err error)
}

// Fetcher retrieves raw feed payloads
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]byte, error)
}

// Parser converts payloads into raw items
type Parser interface {
	Parse(data []byte, now time.Time) ([]domain.RawItem, error)
}

// ImageResolver picks a representative image for an item
type ImageResolver interface {
	Resolve(ctx context.Context, item domain.RawItem) string
}

// Classifier assigns a category to an item
type Classifier interface {
	Classify(feedCategory, title, content string) string
}

// LLMClassifier assigns a category via a language model
type LLMClassifier interface {
	ClassifyCategory(ctx context.Context, title, content string) (string, error)
}

// Normalizer builds the stored article from pipeline outputs
type Normalizer interface {
	Normalize(item domain.RawItem, f domain.Feed, image, category string) domain.Article
}

// Notifier is told about newly created articles
type Notifier interface {
	NotifyNewArticle(ctx context.Context, article domain.Article) error
}

// Config holds scheduler configuration
type Config struct {
	UpdateInterval time.Duration
	MaxWorkers     int
	LLMClassifier  LLMClassifier
	Notifier       Notifier
}

// NewScheduler creates a new scheduler instance
func NewScheduler(feeds FeedRegistry, articles ArticleStore, fetcher Fetcher, parser Parser,
	images ImageResolver, classifier Classifier, normalizer Normalizer, cfg Config) *Scheduler {
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = 30 * time.Minute
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 5
	}

	return &Scheduler{
		feeds:          feeds,
		articles:       articles,
		fetcher:        fetcher,
		parser:         parser,
		images:         images,
		classifier:     classifier,
		llmClassifier:  cfg.LLMClassifier,
		normalizer:     normalizer,
		notifier:       cfg.Notifier,
		updateInterval: cfg.UpdateInterval,
		maxWorkers:     cfg.MaxWorkers,
	}
}

// Start begins periodic ingestion, the first run happens immediately
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.updateInterval)
		defer ticker.Stop()

		s.runAndLog(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runAndLog(ctx)
			}
		}
	}()

	lgr.Printf("[INFO] scheduler started with update interval %v, %d workers", s.updateInterval, s.maxWorkers)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	summary, err := s.Run(ctx)
	if err != nil {
		lgr.Printf("[ERROR] ingestion run failed: %v", err)
		return
	}
	lgr.Printf("[INFO] ingestion run %s: %d feeds processed, %d failed, %d items found, %d upserted in %v",
		summary.RunID, summary.FeedsProcessed, summary.FeedsFailed, summary.TotalFound, summary.TotalUpserted, summary.Duration)
}

// Run executes one full ingestion cycle over all enabled feeds and returns
// the per-run summary. Only a failure to list feeds fails the run itself.
func (s *Scheduler) Run(ctx context.Context) (*domain.RunSummary, error) {
	started := time.Now()

	feeds, err := s.feeds.GetFeeds(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("get enabled feeds: %w", err)
	}

	lgr.Printf("[INFO] updating %d feeds", len(feeds))

	var mu sync.Mutex
	results := make([]domain.FeedRunResult, 0, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)
	for _, f := range feeds {
		g.Go(func() error {
			res := s.processFeed(gctx, f)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors, failures live in results

	summary := &domain.RunSummary{
		RunID:          uuid.NewString(),
		StartedAt:      started.UTC(),
		Duration:       time.Since(started),
		FeedsProcessed: len(results),
		Feeds:          results,
	}
	for _, res := range results {
		summary.TotalFound += res.ItemsFound
		summary.TotalUpserted += res.ItemsUpserted
		if res.Error != "" {
			summary.FeedsFailed++
		}
	}
	return summary, nil
}

// processFeed runs the pipeline for one feed and records the outcome
func (s *Scheduler) processFeed(ctx context.Context, f domain.Feed) domain.FeedRunResult {
	res := domain.FeedRunResult{FeedID: f.ID, Source: f.Source}

	lgr.Printf("[DEBUG] updating feed: %s", f.URL)

	data, err := s.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		return s.failFeed(ctx, f, res, fmt.Errorf("fetch: %w", err))
	}

	items, err := s.parser.Parse(data, time.Now())
	if err != nil {
		return s.failFeed(ctx, f, res, fmt.Errorf("parse: %w", err))
	}
	res.ItemsFound = len(items)

	for _, item := range items {
		if ctx.Err() != nil {
			res.Error = ctx.Err().Error()
			return res
		}
		if err := s.processItem(ctx, item, f); err != nil {
			lgr.Printf("[WARN] item %s from %s skipped: %v", item.Link, f.Source, err)
			continue
		}
		res.ItemsUpserted++
	}

	if err := s.feeds.UpdateFeedFetched(ctx, f.ID); err != nil {
		lgr.Printf("[ERROR] failed to update last fetched for %s: %v", f.URL, err)
	}

	if res.ItemsUpserted > 0 {
		lgr.Printf("[INFO] upserted %d articles from feed: %s", res.ItemsUpserted, f.Source)
	}
	return res
}

// failFeed records a feed-level failure in both the registry and the result
func (s *Scheduler) failFeed(ctx context.Context, f domain.Feed, res domain.FeedRunResult, err error) domain.FeedRunResult {
	lgr.Printf("[ERROR] feed %s failed: %v", f.URL, err)
	res.Error = err.Error()
	if uerr := s.feeds.UpdateFeedError(ctx, f.ID, err.Error()); uerr != nil {
		lgr.Printf("[ERROR] failed to record feed error for %s: %v", f.URL, uerr)
	}
	return res
}

// processItem resolves, classifies, normalizes and stores one item
func (s *Scheduler) processItem(ctx context.Context, item domain.RawItem, f domain.Feed) error {
	image := s.images.Resolve(ctx, item)
	category := s.classifyItem(ctx, item, f)

	article := s.normalizer.Normalize(item, f, image, category)
	created, err := s.articles.UpsertArticle(ctx, &article)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", item.Link, err)
	}

	if created && s.notifier != nil {
		if err := s.notifier.NotifyNewArticle(ctx, article); err != nil {
			lgr.Printf("[WARN] notify failed for %s: %v", article.Link, err)
		}
	}
	return nil
}

// classifyItem tries the llm classifier first when configured, falling back
// to the keyword classifier on any error
func (s *Scheduler) classifyItem(ctx context.Context, item domain.RawItem, f domain.Feed) string {
	if s.llmClassifier != nil {
		category, err := s.llmClassifier.ClassifyCategory(ctx, item.Title, item.Content)
		if err == nil {
			return category
		}
		lgr.Printf("[DEBUG] llm classification failed for %s, using keyword rules: %v", item.Link, err)
	}
	return s.classifier.Classify(f.Category, item.Title, item.Content)
}

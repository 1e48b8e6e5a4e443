package service

import (
	"context"

	"github.com/newsleak/newsleak/pkg/domain"
	"github.com/newsleak/newsleak/pkg/repository"
)

// Store provides unified access to repositories for the scheduler and the
// HTTP server
type Store struct {
	feedRepo    *repository.FeedRepository
	articleRepo *repository.ArticleRepository
}

// NewStore creates a new store facade
func NewStore(feedRepo *repository.FeedRepository, articleRepo *repository.ArticleRepository) *Store {
	return &Store{
		feedRepo:    feedRepo,
		articleRepo: articleRepo,
	}
}

// Feed management methods

func (s *Store) CreateFeed(ctx context.Context, feed *domain.Feed) error {
	return s.feedRepo.CreateFeed(ctx, feed)
}

func (s *Store) GetFeed(ctx context.Context, id int64) (*domain.Feed, error) {
	return s.feedRepo.GetFeed(ctx, id)
}

func (s *Store) GetFeeds(ctx context.Context, enabledOnly bool) ([]domain.Feed, error) {
	return s.feedRepo.GetFeeds(ctx, enabledOnly)
}

func (s *Store) UpdateFeedFetched(ctx context.Context, feedID int64) error {
	return s.feedRepo.UpdateFeedFetched(ctx, feedID)
}

func (s *Store) UpdateFeedError(ctx context.Context, feedID int64, errMsg string) error {
	return s.feedRepo.UpdateFeedError(ctx, feedID, errMsg)
}

func (s *Store) UpdateFeedStatus(ctx context.Context, feedID int64, enabled bool) error {
	return s.feedRepo.UpdateFeedStatus(ctx, feedID, enabled)
}

func (s *Store) DeleteFeed(ctx context.Context, id int64) error {
	return s.feedRepo.DeleteFeed(ctx, id)
}

// Article methods

func (s *Store) UpsertArticle(ctx context.Context, article *domain.Article) (created bool, err error) {
	return s.articleRepo.UpsertArticle(ctx, article)
}

func (s *Store) GetArticle(ctx context.Context, id int64) (*domain.Article, error) {
	return s.articleRepo.GetArticle(ctx, id)
}

func (s *Store) GetArticles(ctx context.Context, limit, offset int) ([]domain.Article, error) {
	return s.articleRepo.GetArticles(ctx, limit, offset)
}

func (s *Store) GetArticlesByCategory(ctx context.Context, category string, limit, offset int) ([]domain.Article, error) {
	return s.articleRepo.GetArticlesByCategory(ctx, category, limit, offset)
}

func (s *Store) SearchArticles(ctx context.Context, query string, limit, offset int) ([]domain.Article, error) {
	return s.articleRepo.SearchArticles(ctx, query, limit, offset)
}

func (s *Store) CountArticles(ctx context.Context) (int, error) {
	return s.articleRepo.CountArticles(ctx)
}

func (s *Store) SetArticlePublished(ctx context.Context, id int64, published bool) error {
	return s.articleRepo.SetArticlePublished(ctx, id, published)
}

func (s *Store) DeleteArticle(ctx context.Context, id int64) error {
	return s.articleRepo.DeleteArticle(ctx, id)
}

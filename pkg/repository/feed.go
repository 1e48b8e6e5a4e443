package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/newsleak/newsleak/pkg/domain"
)

// ErrFeedExists is returned when a feed with the same URL is already registered
var ErrFeedExists = errors.New("feed already exists")

// FeedRepository handles feed-related database operations
type FeedRepository struct {
	db *sqlx.DB
}

// feedSQL represents a feed for SQL operations
type feedSQL struct {
	ID          int64      `db:"id"`
	URL         string     `db:"url"`
	Source      string     `db:"source"`
	Category    string     `db:"category"`
	Enabled     bool       `db:"enabled"`
	LastFetched *time.Time `db:"last_fetched"`
	ErrorCount  int        `db:"error_count"`
	LastError   string     `db:"last_error"`
	CreatedAt   time.Time  `db:"created_at"`
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(database *sqlx.DB) *FeedRepository {
	return &FeedRepository{db: database}
}

// CreateFeed inserts a new feed, URL uniqueness is enforced here
func (r *FeedRepository) CreateFeed(ctx context.Context, feed *domain.Feed) error {
	sqlFeed := &feedSQL{
		URL:      feed.URL,
		Source:   feed.Source,
		Category: feed.Category,
		Enabled:  feed.Enabled,
	}
	if sqlFeed.Category == "" {
		sqlFeed.Category = "General"
	}

	query := `
		INSERT INTO feeds (url, source, category, enabled)
		VALUES (:url, :source, :category, :enabled)
	`
	result, err := r.db.NamedExecContext(ctx, query, sqlFeed)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: feeds.url") {
			return ErrFeedExists
		}
		return fmt.Errorf("create feed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}

	feed.ID = id
	feed.Category = sqlFeed.Category
	return nil
}

// GetFeed retrieves a feed by ID
func (r *FeedRepository) GetFeed(ctx context.Context, id int64) (*domain.Feed, error) {
	var sqlFeed feedSQL
	err := r.db.GetContext(ctx, &sqlFeed, "SELECT * FROM feeds WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	return r.toDomainFeed(&sqlFeed), nil
}

// GetFeeds retrieves feeds with optional filtering
func (r *FeedRepository) GetFeeds(ctx context.Context, enabledOnly bool) ([]domain.Feed, error) {
	query := "SELECT * FROM feeds"
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY source, url"

	var sqlFeeds []feedSQL
	err := r.db.SelectContext(ctx, &sqlFeeds, query)
	if err != nil {
		return nil, fmt.Errorf("get feeds: %w", err)
	}

	feeds := make([]domain.Feed, len(sqlFeeds))
	for i, f := range sqlFeeds {
		feeds[i] = *r.toDomainFeed(&f)
	}
	return feeds, nil
}

// UpdateFeedFetched stamps a successful fetch and clears error bookkeeping
func (r *FeedRepository) UpdateFeedFetched(ctx context.Context, feedID int64) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			UPDATE feeds
			SET last_fetched = datetime('now'),
			    error_count = 0,
			    last_error = ''
			WHERE id = ?
		`
		_, err := r.db.ExecContext(ctx, query, feedID)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update feed fetched: %w", err)}
		}
		return nil
	})
}

// UpdateFeedError records a failed fetch
func (r *FeedRepository) UpdateFeedError(ctx context.Context, feedID int64, errMsg string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			UPDATE feeds
			SET error_count = error_count + 1,
			    last_error = ?
			WHERE id = ?
		`
		_, err := r.db.ExecContext(ctx, query, errMsg, feedID)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update feed error: %w", err)}
		}
		return nil
	})
}

// UpdateFeedStatus enables or disables a feed
func (r *FeedRepository) UpdateFeedStatus(ctx context.Context, feedID int64, enabled bool) error {
	query := "UPDATE feeds SET enabled = ? WHERE id = ?"
	_, err := r.db.ExecContext(ctx, query, enabled, feedID)
	if err != nil {
		return fmt.Errorf("update feed status: %w", err)
	}
	return nil
}

// DeleteFeed removes a feed and all its articles
func (r *FeedRepository) DeleteFeed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	return nil
}

// toDomainFeed converts feedSQL to domain.Feed
func (r *FeedRepository) toDomainFeed(sqlFeed *feedSQL) *domain.Feed {
	return &domain.Feed{
		ID:          sqlFeed.ID,
		URL:         sqlFeed.URL,
		Source:      sqlFeed.Source,
		Category:    sqlFeed.Category,
		Enabled:     sqlFeed.Enabled,
		LastFetched: sqlFeed.LastFetched,
		ErrorCount:  sqlFeed.ErrorCount,
		LastError:   sqlFeed.LastError,
		CreatedAt:   sqlFeed.CreatedAt,
	}
}

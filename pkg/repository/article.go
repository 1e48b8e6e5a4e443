package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/newsleak/newsleak/pkg/domain"
)

// ArticleRepository handles article-related database operations
type ArticleRepository struct {
	db *sqlx.DB
}

// articleSQL represents an article for SQL operations, image is nullable
type articleSQL struct {
	ID          int64     `db:"id"`
	FeedID      int64     `db:"feed_id"`
	Title       string    `db:"title"`
	Link        string    `db:"link"`
	Summary     string    `db:"summary"`
	Image       *string   `db:"image"`
	Source      string    `db:"source"`
	Category    string    `db:"category"`
	Author      string    `db:"author"`
	Published   time.Time `db:"published"`
	IsPublished bool      `db:"is_published"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(database *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: database}
}

// UpsertArticle inserts an article or updates the existing one keyed by
// link. On conflict the content fields refresh in place, feed_id and
// is_published keep their stored values, and published only moves forward.
// Returns true when a new row was created.
func (r *ArticleRepository) UpsertArticle(ctx context.Context, article *domain.Article) (created bool, err error) {
	sqlArticle := r.toSQLArticle(article)

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err = retrier.Do(ctx, func() error {
		var existingID int64
		gerr := r.db.GetContext(ctx, &existingID, "SELECT id FROM articles WHERE link = ?", article.Link)
		exists := gerr == nil

		query := `
			INSERT INTO articles (feed_id, title, link, summary, image, source, category, author, published, is_published)
			VALUES (:feed_id, :title, :link, :summary, :image, :source, :category, :author, :published, :is_published)
			ON CONFLICT(link) DO UPDATE SET
				title = excluded.title,
				summary = excluded.summary,
				image = excluded.image,
				source = excluded.source,
				category = excluded.category,
				author = excluded.author,
				published = CASE WHEN excluded.published > articles.published
					THEN excluded.published ELSE articles.published END,
				updated_at = CURRENT_TIMESTAMP
		`
		result, uerr := r.db.NamedExecContext(ctx, query, sqlArticle)
		if uerr != nil {
			if isLockError(uerr) {
				return uerr // retry
			}
			return &criticalError{err: fmt.Errorf("upsert article: %w", uerr)}
		}

		if !exists {
			created = true
			if id, ierr := result.LastInsertId(); ierr == nil {
				article.ID = id
			}
		} else {
			article.ID = existingID
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetArticle retrieves an article by ID
func (r *ArticleRepository) GetArticle(ctx context.Context, id int64) (*domain.Article, error) {
	var sqlArticle articleSQL
	err := r.db.GetContext(ctx, &sqlArticle, "SELECT * FROM articles WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return r.toDomainArticle(&sqlArticle), nil
}

// GetArticleByLink retrieves an article by its canonical link
func (r *ArticleRepository) GetArticleByLink(ctx context.Context, link string) (*domain.Article, error) {
	var sqlArticle articleSQL
	err := r.db.GetContext(ctx, &sqlArticle, "SELECT * FROM articles WHERE link = ?", link)
	if err != nil {
		return nil, fmt.Errorf("get article by link: %w", err)
	}
	return r.toDomainArticle(&sqlArticle), nil
}

// GetArticles retrieves published articles newest first
func (r *ArticleRepository) GetArticles(ctx context.Context, limit, offset int) ([]domain.Article, error) {
	query := `
		SELECT * FROM articles
		WHERE is_published = 1
		ORDER BY published DESC
		LIMIT ? OFFSET ?
	`
	var sqlArticles []articleSQL
	err := r.db.SelectContext(ctx, &sqlArticles, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get articles: %w", err)
	}
	return r.toDomainArticles(sqlArticles), nil
}

// GetArticlesByCategory retrieves published articles for one category
func (r *ArticleRepository) GetArticlesByCategory(ctx context.Context, category string, limit, offset int) ([]domain.Article, error) {
	query := `
		SELECT * FROM articles
		WHERE is_published = 1 AND category = ?
		ORDER BY published DESC
		LIMIT ? OFFSET ?
	`
	var sqlArticles []articleSQL
	err := r.db.SelectContext(ctx, &sqlArticles, query, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get articles by category: %w", err)
	}
	return r.toDomainArticles(sqlArticles), nil
}

// SearchArticles matches the query against titles and summaries
func (r *ArticleRepository) SearchArticles(ctx context.Context, q string, limit, offset int) ([]domain.Article, error) {
	query := `
		SELECT * FROM articles
		WHERE is_published = 1 AND (title LIKE ? OR summary LIKE ?)
		ORDER BY published DESC
		LIMIT ? OFFSET ?
	`
	pattern := "%" + q + "%"
	var sqlArticles []articleSQL
	err := r.db.SelectContext(ctx, &sqlArticles, query, pattern, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	return r.toDomainArticles(sqlArticles), nil
}

// CountArticles returns the number of published articles
func (r *ArticleRepository) CountArticles(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM articles WHERE is_published = 1")
	if err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

// SetArticlePublished toggles article visibility
func (r *ArticleRepository) SetArticlePublished(ctx context.Context, id int64, published bool) error {
	query := "UPDATE articles SET is_published = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	_, err := r.db.ExecContext(ctx, query, published, id)
	if err != nil {
		return fmt.Errorf("set article published: %w", err)
	}
	return nil
}

// DeleteArticle removes an article
func (r *ArticleRepository) DeleteArticle(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM articles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return nil
}

// toSQLArticle converts domain.Article to articleSQL, empty image becomes NULL
func (r *ArticleRepository) toSQLArticle(article *domain.Article) *articleSQL {
	sqlArticle := &articleSQL{
		FeedID:      article.FeedID,
		Title:       article.Title,
		Link:        article.Link,
		Summary:     article.Summary,
		Source:      article.Source,
		Category:    article.Category,
		Author:      article.Author,
		Published:   article.Published,
		IsPublished: article.IsPublished,
	}
	if article.Image != "" {
		img := article.Image
		sqlArticle.Image = &img
	}
	return sqlArticle
}

// toDomainArticle converts articleSQL to domain.Article
func (r *ArticleRepository) toDomainArticle(sqlArticle *articleSQL) *domain.Article {
	article := &domain.Article{
		ID:          sqlArticle.ID,
		FeedID:      sqlArticle.FeedID,
		Title:       sqlArticle.Title,
		Link:        sqlArticle.Link,
		Summary:     sqlArticle.Summary,
		Source:      sqlArticle.Source,
		Category:    sqlArticle.Category,
		Author:      sqlArticle.Author,
		Published:   sqlArticle.Published,
		IsPublished: sqlArticle.IsPublished,
		CreatedAt:   sqlArticle.CreatedAt,
		UpdatedAt:   sqlArticle.UpdatedAt,
	}
	if sqlArticle.Image != nil {
		article.Image = *sqlArticle.Image
	}
	return article
}

func (r *ArticleRepository) toDomainArticles(sqlArticles []articleSQL) []domain.Article {
	articles := make([]domain.Article, len(sqlArticles))
	for i, a := range sqlArticles {
		articles[i] = *r.toDomainArticle(&a)
	}
	return articles
}

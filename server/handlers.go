package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/newsleak/newsleak/pkg/domain"
	"github.com/newsleak/newsleak/pkg/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountArticles(r.Context())
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	status := map[string]interface{}{
		"status":   "ok",
		"version":  s.version,
		"articles": count,
		"time":     time.Now().UTC(),
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// listFeedsHandler returns all registered feeds
func (s *Server) listFeedsHandler(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"
	feeds, err := s.store.GetFeeds(r.Context(), enabledOnly)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, feeds)
}

// createFeedHandler registers a new feed
func (s *Server) createFeedHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL      string `json:"url"`
		Source   string `json:"source"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		RenderError(w, r, fmt.Errorf("url is required"), http.StatusBadRequest)
		return
	}

	feed := domain.Feed{URL: req.URL, Source: req.Source, Category: req.Category, Enabled: true}
	if err := s.store.CreateFeed(r.Context(), &feed); err != nil {
		if errors.Is(err, repository.ErrFeedExists) {
			RenderError(w, r, err, http.StatusConflict)
			return
		}
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusCreated, feed)
}

// getFeedHandler returns a single feed
func (s *Server) getFeedHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, fmt.Errorf("invalid feed id"), http.StatusBadRequest)
		return
	}

	feed, err := s.store.GetFeed(r.Context(), id)
	if err != nil {
		RenderError(w, r, err, http.StatusNotFound)
		return
	}
	RenderJSON(w, r, http.StatusOK, feed)
}

// updateFeedStatusHandler enables or disables a feed
func (s *Server) updateFeedStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, fmt.Errorf("invalid feed id"), http.StatusBadRequest)
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	if err := s.store.UpdateFeedStatus(r.Context(), id, req.Enabled); err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// deleteFeedHandler removes a feed and its articles
func (s *Server) deleteFeedHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, fmt.Errorf("invalid feed id"), http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteFeed(r.Context(), id); err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listArticlesHandler returns published articles, optionally filtered by
// category or search query
func (s *Server) listArticlesHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	category := r.URL.Query().Get("category")
	query := r.URL.Query().Get("q")

	var articles []domain.Article
	var err error
	switch {
	case query != "":
		articles, err = s.store.SearchArticles(r.Context(), query, limit, offset)
	case category != "":
		articles, err = s.store.GetArticlesByCategory(r.Context(), category, limit, offset)
	default:
		articles, err = s.store.GetArticles(r.Context(), limit, offset)
	}
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, articles)
}

// getArticleHandler returns a single article
func (s *Server) getArticleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, fmt.Errorf("invalid article id"), http.StatusBadRequest)
		return
	}

	article, err := s.store.GetArticle(r.Context(), id)
	if err != nil {
		RenderError(w, r, err, http.StatusNotFound)
		return
	}
	RenderJSON(w, r, http.StatusOK, article)
}

// setArticlePublishedHandler hides or restores an article in listings
func (s *Server) setArticlePublishedHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, fmt.Errorf("invalid article id"), http.StatusBadRequest)
		return
	}

	var req struct {
		Published bool `json:"published"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	if err := s.store.SetArticlePublished(r.Context(), id, req.Published); err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, map[string]bool{"published": req.Published})
}

// deleteArticleHandler removes an article
func (s *Server) deleteArticleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, fmt.Errorf("invalid article id"), http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteArticle(r.Context(), id); err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// refreshHandler triggers an immediate ingestion run and returns its summary
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.scheduler.Run(r.Context())
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, summary)
}

// rssFeedHandler serves generated RSS, scoped to a category when present
func (s *Server) rssFeedHandler(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")

	var articles []domain.Article
	var err error
	if category != "" {
		articles, err = s.store.GetArticlesByCategory(r.Context(), category, defaultPageSize, 0)
	} else {
		articles, err = s.store.GetArticles(r.Context(), defaultPageSize, 0)
	}
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	rss, err := s.generator.GenerateRSS(articles, category)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	fmt.Fprint(w, rss)
}

// pagination extracts bounded limit/offset query params
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newsleak/newsleak/pkg/domain"
)

// WebhookNotifier posts newly created articles to an external endpoint,
// typically a push-notification relay. Updates to existing articles are
// never announced.
type WebhookNotifier struct {
	client   *http.Client
	endpoint string
}

// payload is the webhook wire format
type payload struct {
	ArticleID int64  `json:"article_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	ImageURL  string `json:"image_url,omitempty"`
	Category  string `json:"category"`
	Link      string `json:"link"`
}

// NewWebhookNotifier creates a notifier for the given endpoint
func NewWebhookNotifier(endpoint string, timeout time.Duration) *WebhookNotifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

// NotifyNewArticle posts the article to the webhook endpoint
func (n *WebhookNotifier) NotifyNewArticle(ctx context.Context, article domain.Article) error {
	body, err := json.Marshal(payload{
		ArticleID: article.ID,
		Title:     article.Title,
		Body:      article.Summary,
		ImageURL:  article.Image,
		Category:  article.Category,
		Link:      article.Link,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Classifier assigns article categories with an OpenAI-compatible chat
// model. It is an optional upgrade over the keyword rules and is expected
// to fail sometimes, callers fall back on error.
type Classifier struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	categories  []string
}

// Config holds classifier settings
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Categories  []string
}

const systemPrompt = `You classify news articles into exactly one category from the provided list.
Respond with the category name only, nothing else. If unsure pick the closest match.`

// content longer than this adds tokens without improving classification
const maxContentChars = 500

// NewClassifier creates a new LLM classifier
func NewClassifier(cfg Config) *Classifier {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 16
	}

	return &Classifier{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		categories:  cfg.Categories,
	}
}

// ClassifyCategory returns the category for an article, validated against
// the configured category list
func (c *Classifier) ClassifyCategory(ctx context.Context, title, content string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if runes := []rune(content); len(runes) > maxContentChars {
		content = string(runes[:maxContentChars])
	}

	prompt := fmt.Sprintf("Categories: %s\n\nTitle: %s\n\n%s",
		strings.Join(c.categories, ", "), title, content)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from llm")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	for _, category := range c.categories {
		if strings.EqualFold(answer, category) {
			return category, nil
		}
	}
	return "", fmt.Errorf("llm returned unknown category %q", answer)
}

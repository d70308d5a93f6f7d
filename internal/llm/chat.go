package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/dvloznov/statement-kfi/internal/config"
)

// ChatClient talks to an OpenAI-compatible chat completions endpoint (Groq by default).
type ChatClient struct {
	httpClient  *resty.Client
	model       string
	temperature float64
	maxTokens   int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewChatClient creates a client for cfg.BaseURL. Requests are never retried.
func NewChatClient(cfg config.LLMConfig) *ChatClient {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &ChatClient{
		httpClient:  httpClient,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Generate implements Generator.
func (c *ChatClient) Generate(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var out chatResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("ChatClient.Generate: send request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ChatClient.Generate: unexpected status %d: %s", resp.StatusCode(), truncate(resp.String(), 500))
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("ChatClient.Generate: no choices in response")
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("ChatClient.Generate: %w", ErrEmptyResponse)
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

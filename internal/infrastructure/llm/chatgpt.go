package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

const maxBackoff = 10 * time.Second

// ChatGPTClient implements ports.CompletionClient backed by OpenAI-compatible
// chat completion APIs. Requests are rate limited client-wide and retried on
// 429, 5xx and transport errors.
type ChatGPTClient struct {
	endpoint     string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	backoff      time.Duration
	logger       *slog.Logger
}

var _ ports.CompletionClient = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig, logger *slog.Logger) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		systemPrompt: strings.TrimSpace(cfg.SystemPrompt),
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(limit, burst),
		maxRetries:   max(cfg.MaxRetries, 0),
		backoff:      backoff,
		logger:       logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string         `json:"model"`
	Messages    []chatMessage  `json:"messages"`
	Temperature float64        `json:"temperature"`
	TopP        float64        `json:"top_p"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	N           int            `json:"n"`
	LogitBias   map[string]int `json:"logit_bias,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// statusError is a non-2xx reply from the API.
type statusError struct {
	status     string
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("chatgpt error %s: %s", e.status, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}

// Complete sends the prompt as a user message and returns the first choice.
func (c *ChatGPTClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || req.Model == "" {
		return "", fmt.Errorf("chatgpt client misconfigured")
	}

	messages := make([]chatMessage, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		N:           1,
		LogitBias:   req.LogitBias,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		text, err := c.do(ctx, body)
		if err == nil {
			return text, nil
		}

		var se *statusError
		retryable := !errors.Is(err, domain.ErrNoCompletion) && ctx.Err() == nil
		if errors.As(err, &se) {
			retryable = se.retryable()
		}
		if !retryable || attempt >= c.maxRetries {
			return "", err
		}

		sleep := backoff
		if se != nil && se.retryAfter > 0 {
			sleep = se.retryAfter
		}
		sleep = min(sleep, maxBackoff)

		c.logger.Warn("chatgpt request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleep.String(),
			"error", err,
		)

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		backoff *= 2
	}
}

func (c *ChatGPTClient) do(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &statusError{
			status:     resp.Status,
			code:       resp.StatusCode,
			body:       strings.TrimSpace(string(payload)),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", domain.ErrNoCompletion
	}

	choice := decoded.Choices[0]
	if choice.FinishReason == "length" {
		c.logger.Debug("completion stopped at max_tokens")
	}
	return choice.Message.Content, nil
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
)

func testConfig(endpoint string) config.ChatGPTConfig {
	return config.ChatGPTConfig{
		Endpoint:     endpoint,
		APIKey:       "sk-test",
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		Timeout:      5 * time.Second,
	}
}

func testRequest() domain.CompletionRequest {
	return domain.CompletionRequest{
		Prompt:      "score these",
		Model:       "gpt-3.5-turbo-16k",
		Temperature: 0.4,
		TopP:        1,
		MaxTokens:   512,
		LogitBias:   map[string]int{"100257": -100},
	}
}

func TestCompleteSendsDecodingArguments(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}

		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Model != "gpt-3.5-turbo-16k" || body.MaxTokens != 512 || body.N != 1 {
			t.Errorf("unexpected request: %+v", body)
		}
		if body.Temperature != 0.4 || body.TopP != 1 {
			t.Errorf("unexpected sampling: %+v", body)
		}
		if body.LogitBias["100257"] != -100 {
			t.Errorf("missing logit bias: %+v", body.LogitBias)
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" || body.Messages[0].Content != "score these" {
			t.Errorf("unexpected messages: %+v", body.Messages)
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"Relevancy score\": 9}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewChatGPTClient(testConfig(server.URL), nil)
	text, err := client.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if !strings.Contains(text, "Relevancy score") {
		t.Fatalf("unexpected completion: %q", text)
	}
}

func TestCompleteRetriesRateLimited(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"slow down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewChatGPTClient(testConfig(server.URL), nil)
	text, err := client.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if text != "ok" || calls.Load() != 3 {
		t.Fatalf("text=%q calls=%d", text, calls.Load())
	}
}

func TestCompleteGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewChatGPTClient(testConfig(server.URL), nil)
	if _, err := client.Complete(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"context length exceeded"}`))
	}))
	defer server.Close()

	client := NewChatGPTClient(testConfig(server.URL), nil)
	_, err := client.Complete(context.Background(), testRequest())
	if err == nil || !strings.Contains(err.Error(), "context length exceeded") {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestCompleteNoChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewChatGPTClient(testConfig(server.URL), nil)
	_, err := client.Complete(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrNoCompletion) {
		t.Fatalf("expected ErrNoCompletion, got %v", err)
	}
}

func TestCompleteMisconfigured(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://unused")
	cfg.APIKey = ""
	client := NewChatGPTClient(cfg, nil)
	if _, err := client.Complete(context.Background(), testRequest()); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Fatalf("got %v", got)
	}
	if got := parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"); got != 0 {
		t.Fatalf("got %v", got)
	}
}

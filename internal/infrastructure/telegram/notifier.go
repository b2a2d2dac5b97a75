package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ArxivDigest/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// maxMessageLen is the Bot API limit for a single text message.
	maxMessageLen = 4096
)

// ErrMisconfigured is returned when the bot token or chat id is missing.
var ErrMisconfigured = errors.New("telegram notifier misconfigured")

// Notifier sends run reports to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// Option customizes a Notifier.
type Option func(*Notifier)

// WithAPIBase points the notifier at a different Bot API host.
func WithAPIBase(base string) Option {
	return func(n *Notifier) { n.apiBase = strings.TrimRight(base, "/") }
}

// WithHTTPClient replaces the default five second client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) { n.client = client }
}

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string, opts ...Option) *Notifier {
	n := &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// PublishReport posts the report as plain text, truncated to the message limit.
func (n *Notifier) PublishReport(ctx context.Context, report string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return ErrMisconfigured
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", truncate(report, maxMessageLen))
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

// Package notifier delivers digests and command replies through the
// Telegram Bot API.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"StockPulse/internal/httpx"
	"StockPulse/internal/logger"
)

const DefaultBaseURL = "https://api.telegram.org"

// Telegram sends messages to one chat.
type Telegram struct {
	baseURL     string
	token       string
	chatID      string
	client      httpx.Doer
	logger      arbor.ILogger
	backoff     func(attempt int) time.Duration
	pollTimeout int
	pollPause   time.Duration
}

type Option func(*Telegram)

func WithBaseURL(u string) Option {
	return func(t *Telegram) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the client. Its timeout must exceed the long-poll
// timeout.
func WithHTTPClient(d httpx.Doer) Option {
	return func(t *Telegram) { t.client = d }
}

func WithLogger(l arbor.ILogger) Option {
	return func(t *Telegram) { t.logger = l }
}

// WithBackoff replaces the 1s, 2s, 4s... retry schedule.
func WithBackoff(f func(attempt int) time.Duration) Option {
	return func(t *Telegram) { t.backoff = f }
}

// WithPolling sets the getUpdates long-poll timeout in seconds and the pause
// after a failed poll.
func WithPolling(timeoutSeconds int, pause time.Duration) Option {
	return func(t *Telegram) {
		t.pollTimeout = timeoutSeconds
		t.pollPause = pause
	}
}

func exponential(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func NewTelegram(token, chatID string, opts ...Option) *Telegram {
	t := &Telegram{
		baseURL:     DefaultBaseURL,
		token:       token,
		chatID:      chatID,
		client:      &http.Client{Timeout: 35 * time.Second},
		logger:      logger.Discard(),
		backoff:     exponential,
		pollTimeout: 30,
		pollPause:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Telegram) method(name string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, name)
}

// Send posts an HTML message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.method("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *Telegram) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.Send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := t.backoff(i)
		t.logger.Warn().Int("attempt", i+1).Int("of", maxRetries+1).Str("retry_in", backoff.String()).Err(err).Msg("Telegram send failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts exhausted: %w", maxRetries+1, lastErr)
}

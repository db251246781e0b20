package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"StockPulse/internal/httpx"
	"StockPulse/internal/logger"
)

const (
	// DefaultBaseURL is the base URL for the Alpha Vantage API.
	DefaultBaseURL = "https://www.alphavantage.co"

	// DefaultRequestsPerMinute matches the free tier.
	DefaultRequestsPerMinute = 5
)

// ErrRateLimited is returned when the local limiter has no budget left or
// the API answers with its throttling note.
var ErrRateLimited = errors.New("alphavantage: rate limited")

// APIError is returned for HTTP failures and error payloads.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("alphavantage %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("alphavantage %s: %s", e.Endpoint, e.Message)
}

// Client is an Alpha Vantage API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpx.Doer
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(d httpx.Doer) ClientOption {
	return func(c *Client) {
		c.httpClient = d
	}
}

// WithLogger sets a logger.
func WithLogger(l arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRequestsPerMinute sets the local request budget. Zero disables it.
func WithRequestsPerMinute(n int) ClientOption {
	return func(c *Client) {
		c.limiter = newLimiter(n)
	}
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// NewClient creates a new Alpha Vantage client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		logger:     logger.Discard(),
		limiter:    newLimiter(DefaultRequestsPerMinute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// query performs GET /query with the given function and parameters and
// returns the top-level JSON object after screening out error payloads.
func (c *Client) query(ctx context.Context, function string, params url.Values) (map[string]json.RawMessage, error) {
	// Fail fast when the local budget is spent; callers fall through to the next provider.
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}
	if c.apiKey == "" {
		return nil, &APIError{Endpoint: function, Message: "api key not configured"}
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("function", function)
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())
	c.logger.Debug().Str("function", function).Str("symbol", params.Get("symbol")).Msg("Alpha Vantage request")

	resp, err := httpx.Get(ctx, c.httpClient, reqURL)
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s: %w", function, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s read body: %w", function, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: function, Message: truncate(string(body), 200)}
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("alphavantage %s decode: %w", function, err)
	}
	if msg, ok := stringField(payload, "Error Message"); ok {
		return nil, &APIError{Endpoint: function, Message: msg}
	}
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := stringField(payload, key); ok {
			c.logger.Warn().Str("function", function).Str("note", truncate(msg, 120)).Msg("Alpha Vantage throttled the request")
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, truncate(msg, 120))
		}
	}
	return payload, nil
}

func stringField(payload map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := payload[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	return s, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package finnhub is a small client for the Finnhub REST API: quotes,
// general market news and company news.
package finnhub

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
	DefaultBaseURL           = "https://finnhub.io/api/v1"
	DefaultRequestsPerMinute = 60
)

var (
	ErrRateLimited = errors.New("finnhub: rate limited")
	ErrNoKey       = errors.New("finnhub: api key not configured")
)

// Quote is the /quote payload.
type Quote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// Article is one item from /news or /company-news.
type Article struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// Published returns the article time.
func (a Article) Published() time.Time { return time.Unix(a.Datetime, 0) }

type Client struct {
	baseURL    string
	token      string
	httpClient httpx.Doer
	logger     arbor.ILogger
	limiter    *rate.Limiter
	now        func() time.Time
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(d httpx.Doer) ClientOption {
	return func(c *Client) { c.httpClient = d }
}

func WithLogger(l arbor.ILogger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithRequestsPerMinute sets the local request budget. Zero disables it.
func WithRequestsPerMinute(n int) ClientOption {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

// WithClock overrides the clock used to build the company-news window.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: http.DefaultClient,
		logger:     logger.Discard(),
		now:        time.Now,
	}
	WithRequestsPerMinute(DefaultRequestsPerMinute)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.token == "" {
		return ErrNoKey
	}
	if !c.limiter.Allow() {
		return ErrRateLimited
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.token)

	resp, err := httpx.Get(ctx, c.httpClient, c.baseURL+path+"?"+params.Encode())
	if err != nil {
		return fmt.Errorf("finnhub %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("finnhub %s read body: %w", path, err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("finnhub %s: status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("finnhub %s decode: %w", path, err)
	}
	return nil
}

// Quote returns the real-time quote. A non-positive current price means the
// symbol is unknown to Finnhub and is reported as an error.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var q Quote
	if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &q); err != nil {
		return nil, err
	}
	if q.Current <= 0 {
		return nil, fmt.Errorf("finnhub /quote: no price for %s", symbol)
	}
	return &q, nil
}

// GeneralNews returns market news for category ("general" when empty).
func (c *Client) GeneralNews(ctx context.Context, category string) ([]Article, error) {
	if category == "" {
		category = "general"
	}
	var out []Article
	if err := c.get(ctx, "/news", url.Values{"category": {category}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompanyNews returns news for symbol published over the last `days` days.
func (c *Client) CompanyNews(ctx context.Context, symbol string, days int) ([]Article, error) {
	to := c.now()
	from := to.AddDate(0, 0, -days)
	params := url.Values{
		"symbol": {symbol},
		"from":   {from.Format("2006-01-02")},
		"to":     {to.Format("2006-01-02")},
	}
	var out []Article
	if err := c.get(ctx, "/company-news", params, &out); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("symbol", symbol).Int("count", len(out)).Msg("Finnhub company news")
	return out, nil
}

// Package newsapi is a client for newsapi.org v2.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"StockPulse/internal/httpx"
	"StockPulse/internal/logger"
)

const DefaultBaseURL = "https://newsapi.org/v2"

var ErrNoKey = errors.New("newsapi: api key not configured")

// Article is one NewsAPI article.
type Article struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

type response struct {
	Status   string    `json:"status"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Articles []Article `json:"articles"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpx.Doer
	logger     arbor.ILogger
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

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Everything searches all articles for query, newest first.
func (c *Client) Everything(ctx context.Context, query string, pageSize int) ([]Article, error) {
	return c.get(ctx, "/everything", url.Values{
		"q":        {query},
		"sortBy":   {"publishedAt"},
		"pageSize": {strconv.Itoa(pageSize)},
		"language": {"en"},
	})
}

// TopHeadlines returns the top US headlines for category.
func (c *Client) TopHeadlines(ctx context.Context, category string, pageSize int) ([]Article, error) {
	return c.get(ctx, "/top-headlines", url.Values{
		"category": {category},
		"country":  {"us"},
		"pageSize": {strconv.Itoa(pageSize)},
	})
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]Article, error) {
	if c.apiKey == "" {
		return nil, ErrNoKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("newsapi %s read body: %w", path, err)
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("newsapi %s decode (status %d): %w", path, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || r.Status != "ok" {
		return nil, fmt.Errorf("newsapi %s: status %d: %s %s", path, resp.StatusCode, r.Code, r.Message)
	}
	c.logger.Debug().Str("path", path).Int("articles", len(r.Articles)).Msg("NewsAPI response")
	return r.Articles, nil
}

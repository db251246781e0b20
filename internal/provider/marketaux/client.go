// Package marketaux is a client for the Marketaux news/all endpoint.
package marketaux

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

const DefaultBaseURL = "https://api.marketaux.com/v1"

var ErrNoKey = errors.New("marketaux: api token not configured")

// Article is one Marketaux news item.
type Article struct {
	UUID        string    `json:"uuid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Snippet     string    `json:"snippet"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// Text returns the description, or the snippet when the description is empty.
func (a Article) Text() string {
	if a.Description != "" {
		return a.Description
	}
	return a.Snippet
}

type Client struct {
	baseURL    string
	token      string
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

func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: http.DefaultClient,
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// News returns the latest entity-filtered news. symbols, when non-empty, is
// a comma-separated ticker list; otherwise US market news is returned.
func (c *Client) News(ctx context.Context, symbols string, limit int) ([]Article, error) {
	if c.token == "" {
		return nil, ErrNoKey
	}
	params := url.Values{
		"filter_entities": {"true"},
		"language":        {"en"},
		"limit":           {strconv.Itoa(limit)},
		"api_token":       {c.token},
	}
	if symbols != "" {
		params.Set("symbols", symbols)
	} else {
		params.Set("countries", "us")
	}

	resp, err := httpx.Get(ctx, c.httpClient, c.baseURL+"/news/all?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("marketaux news: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("marketaux read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketaux news: status %d", resp.StatusCode)
	}

	var r struct {
		Data []Article `json:"data"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("marketaux decode: %w", err)
	}
	c.logger.Debug().Int("articles", len(r.Data)).Msg("Marketaux response")
	return r.Data, nil
}

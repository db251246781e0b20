package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"StockPulse/internal/httpx"
	"StockPulse/internal/logger"
)

// DefaultBaseURL is the public exchange-rate API.
const DefaultBaseURL = "https://api.exchangerate-api.com"

// Source tags where a rate came from.
type Source string

const (
	SourceIdentity Source = "identity"
	SourceCache    Source = "cache"
	SourceLive     Source = "live"
	SourceStatic   Source = "static"
	SourceDefault  Source = "default"
)

// Converter converts amounts between currencies. It never fails: when the
// live lookup is unavailable it falls back to the static table, and to a
// rate of 1 for pairs the table does not cover.
type Converter struct {
	baseURL string
	client  httpx.Doer
	cache   RateCache
	logger  arbor.ILogger
}

// Option configures the Converter.
type Option func(*Converter)

// WithBaseURL sets a custom rate API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Converter) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(d httpx.Doer) Option {
	return func(c *Converter) {
		c.client = d
	}
}

// WithCache enables caching of live rates.
func WithCache(cache RateCache) Option {
	return func(c *Converter) {
		c.cache = cache
	}
}

// WithLogger sets a logger.
func WithLogger(l arbor.ILogger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// NewConverter creates a Converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		baseURL: DefaultBaseURL,
		client:  http.DefaultClient,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type latestResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Rate returns the multiplier converting from into to, and where it came from.
func (c *Converter) Rate(ctx context.Context, from, to string) (float64, Source) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, SourceIdentity
	}

	if c.cache != nil {
		if r, ok := c.cache.Get(ctx, from, to); ok {
			return r, SourceCache
		}
	}

	r, err := c.fetchLive(ctx, from, to)
	if err == nil {
		if c.cache != nil {
			c.cache.Set(ctx, from, to, r)
		}
		return r, SourceLive
	}
	c.logger.Debug().Err(err).Str("from", from).Str("to", to).Msg("live exchange rate unavailable, using static table")

	if r, ok := StaticRate(from, to); ok {
		return r, SourceStatic
	}
	c.logger.Warn().Str("from", from).Str("to", to).Msg("no static rate for pair, assuming 1")
	return 1, SourceDefault
}

// Convert converts amount from one currency to another without rounding.
// Converting into the same currency returns amount unchanged.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) float64 {
	rate, src := c.Rate(ctx, from, to)
	if src == SourceIdentity {
		return amount
	}
	return amount * rate
}

// ConvertRounded converts amount and rounds it to the target currency's minor unit.
func (c *Converter) ConvertRounded(ctx context.Context, amount float64, from, to string) float64 {
	return Round(c.Convert(ctx, amount, from, to), to)
}

func (c *Converter) fetchLive(ctx context.Context, from, to string) (float64, error) {
	u := fmt.Sprintf("%s/v4/latest/%s", c.baseURL, url.PathEscape(from))
	resp, err := httpx.Get(ctx, c.client, u)
	if err != nil {
		return 0, fmt.Errorf("rate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("rate read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate api: status %d", resp.StatusCode)
	}

	var latest latestResponse
	if err := json.Unmarshal(body, &latest); err != nil {
		return 0, fmt.Errorf("rate decode: %w", err)
	}
	r, ok := latest.Rates[to]
	if !ok || r <= 0 {
		return 0, fmt.Errorf("rate api: no rate for %s", to)
	}
	return r, nil
}

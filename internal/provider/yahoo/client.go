// Package yahoo reads the public Yahoo Finance v8 chart endpoint, which
// needs no API key and serves both the quote meta block and OHLCV bars.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"StockPulse/internal/httpx"
	"StockPulse/internal/logger"
	"StockPulse/internal/model"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Meta is the quote summary carried on every chart response.
type Meta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	PreviousClose      float64 `json:"previousClose"`
	ChartPreviousClose float64 `json:"chartPreviousClose"`
	RegularMarketVol   int64   `json:"regularMarketVolume"`
	RegularMarketOpen  float64 `json:"regularMarketOpen"`
	RegularMarketHigh  float64 `json:"regularMarketDayHigh"`
	RegularMarketLow   float64 `json:"regularMarketDayLow"`
}

// Close returns the previous close, preferring previousClose over the
// chart-range close.
func (m Meta) Close() float64 {
	if m.PreviousClose > 0 {
		return m.PreviousClose
	}
	return m.ChartPreviousClose
}

// Chart is a decoded chart response. Bars are oldest first.
type Chart struct {
	Meta Meta
	Bars []model.OHLCV
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta       Meta    `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Client fetches Yahoo Finance charts.
type Client struct {
	baseURL    string
	httpClient httpx.Doer
	logger     arbor.ILogger
	symbolMap  map[string]string
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

// NewClient creates a Yahoo chart client. Index aliases such as SPX500 are
// mapped to Yahoo tickers.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     logger.Discard(),
		symbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ticker(symbol string) string {
	if mapped, ok := c.symbolMap[strings.ToUpper(symbol)]; ok {
		return mapped
	}
	return symbol
}

// Chart fetches /v8/finance/chart/{symbol}. Bars whose close is null are
// skipped.
func (c *Client) Chart(ctx context.Context, symbol, interval, rng string) (*Chart, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		c.baseURL, url.PathEscape(c.ticker(symbol)), url.QueryEscape(interval), url.QueryEscape(rng))

	resp, err := httpx.Get(ctx, c.httpClient, u)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d", resp.StatusCode)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned for %s", symbol)
	}

	result := chart.Chart.Result[0]
	out := &Chart{Meta: result.Meta}
	if len(result.Indicators.Quote) == 0 {
		return out, nil
	}

	q := result.Indicators.Quote[0]
	out.Bars = make([]model.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice := at(q.Close, i)
		if closePrice == nil {
			continue
		}
		out.Bars = append(out.Bars, model.OHLCV{
			Time:   time.Unix(ts, 0),
			Open:   deref(at(q.Open, i)),
			High:   deref(at(q.High, i)),
			Low:    deref(at(q.Low, i)),
			Close:  *closePrice,
			Volume: deref(at(q.Volume, i)),
		})
	}
	sort.Slice(out.Bars, func(i, j int) bool { return out.Bars[i].Time.Before(out.Bars[j].Time) })

	c.logger.Debug().Str("symbol", symbol).Str("interval", interval).Int("bars", len(out.Bars)).Msg("Yahoo chart fetched")
	return out, nil
}

// Quote fetches the one-day chart and returns only its meta block. A
// non-positive price is an error.
func (c *Client) Quote(ctx context.Context, symbol string) (*Meta, error) {
	chart, err := c.Chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, err
	}
	if chart.Meta.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("yahoo: no price for %s", symbol)
	}
	return &chart.Meta, nil
}

func at(s []*float64, i int) *float64 {
	if i < len(s) {
		return s[i]
	}
	return nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

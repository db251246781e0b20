package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// GlobalQuote is the parsed GLOBAL_QUOTE payload. Prices are in the
// listing currency reported by the API (USD for the supported tickers).
type GlobalQuote struct {
	Symbol        string
	Open          float64
	High          float64
	Low           float64
	Price         float64
	Volume        int64
	PreviousClose float64
	Change        float64
	ChangePercent float64
}

// Overview is the subset of OVERVIEW the app uses.
type Overview struct {
	Symbol      string
	Name        string
	Description string
	Sector      string
	MarketCap   float64
}

// Point is one close price in a time series.
type Point struct {
	Time  time.Time
	Close float64
}

// SearchMatch is one SYMBOL_SEARCH result.
type SearchMatch struct {
	Symbol   string
	Name     string
	Region   string
	Currency string
}

// NewsItem is one NEWS_SENTIMENT feed entry.
type NewsItem struct {
	Title          string
	URL            string
	Summary        string
	Source         string
	Published      time.Time
	SentimentLabel string
}

// TimePublishedLayout is the layout of NEWS_SENTIMENT time_published values.
const TimePublishedLayout = "20060102T150405"

// GlobalQuote fetches the latest quote for symbol.
func (c *Client) GlobalQuote(ctx context.Context, symbol string) (*GlobalQuote, error) {
	payload, err := c.query(ctx, "GLOBAL_QUOTE", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}

	var raw map[string]string
	if b, ok := payload["Global Quote"]; ok {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("alphavantage GLOBAL_QUOTE decode quote: %w", err)
		}
	}
	if raw["05. price"] == "" {
		return nil, &APIError{Endpoint: "GLOBAL_QUOTE", Message: "no quote data for " + symbol}
	}

	price := parseFloat(raw["05. price"])
	if price <= 0 || math.IsNaN(price) {
		return nil, &APIError{Endpoint: "GLOBAL_QUOTE", Message: fmt.Sprintf("invalid price %q", raw["05. price"])}
	}

	return &GlobalQuote{
		Symbol:        raw["01. symbol"],
		Open:          parseFloat(raw["02. open"]),
		High:          parseFloat(raw["03. high"]),
		Low:           parseFloat(raw["04. low"]),
		Price:         price,
		Volume:        parseInt(raw["06. volume"]),
		PreviousClose: parseFloat(raw["08. previous close"]),
		Change:        parseFloat(raw["09. change"]),
		ChangePercent: parseFloat(strings.TrimSuffix(raw["10. change percent"], "%")),
	}, nil
}

// Overview fetches company fundamentals. A placeholder name ("None") is
// reported as an error.
func (c *Client) Overview(ctx context.Context, symbol string) (*Overview, error) {
	payload, err := c.query(ctx, "OVERVIEW", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}

	name, _ := stringField(payload, "Name")
	if name == "" || name == "None" {
		return nil, &APIError{Endpoint: "OVERVIEW", Message: "no company overview for " + symbol}
	}
	desc, _ := stringField(payload, "Description")
	if desc == "None" {
		desc = ""
	}
	sector, _ := stringField(payload, "Sector")
	capStr, _ := stringField(payload, "MarketCapitalization")

	return &Overview{
		Symbol:      symbol,
		Name:        name,
		Description: desc,
		Sector:      sector,
		MarketCap:   parseFloat(capStr),
	}, nil
}

// Series fetches close prices newest first. interval is one of the intraday
// intervals (1min, 5min, 15min, 30min, 60min) or "daily".
func (c *Client) Series(ctx context.Context, symbol, interval string) ([]Point, error) {
	function := "TIME_SERIES_INTRADAY"
	params := url.Values{"symbol": {symbol}}
	key := fmt.Sprintf("Time Series (%s)", interval)
	if interval == "daily" {
		function = "TIME_SERIES_DAILY"
		key = "Time Series (Daily)"
	} else {
		params.Set("interval", interval)
	}

	payload, err := c.query(ctx, function, params)
	if err != nil {
		return nil, err
	}
	b, ok := payload[key]
	if !ok {
		return nil, &APIError{Endpoint: function, Message: "no time series data for " + symbol}
	}

	var series map[string]map[string]string
	if err := json.Unmarshal(b, &series); err != nil {
		return nil, fmt.Errorf("alphavantage %s decode series: %w", function, err)
	}

	points := make([]Point, 0, len(series))
	for stamp, bar := range series {
		t, err := parseStamp(stamp)
		if err != nil {
			continue
		}
		points = append(points, Point{Time: t, Close: parseFloat(bar["4. close"])})
	}
	if len(points) == 0 {
		return nil, &APIError{Endpoint: function, Message: "empty time series for " + symbol}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.After(points[j].Time) })
	return points, nil
}

// SymbolSearch returns the best matches for keywords.
func (c *Client) SymbolSearch(ctx context.Context, keywords string) ([]SearchMatch, error) {
	payload, err := c.query(ctx, "SYMBOL_SEARCH", url.Values{"keywords": {keywords}})
	if err != nil {
		return nil, err
	}

	var raw []map[string]string
	if b, ok := payload["bestMatches"]; ok {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("alphavantage SYMBOL_SEARCH decode: %w", err)
		}
	}
	matches := make([]SearchMatch, 0, len(raw))
	for _, m := range raw {
		if m["1. symbol"] == "" {
			continue
		}
		matches = append(matches, SearchMatch{
			Symbol:   m["1. symbol"],
			Name:     m["2. name"],
			Region:   m["4. region"],
			Currency: m["8. currency"],
		})
	}
	return matches, nil
}

type newsFeed struct {
	Feed []struct {
		Title          string `json:"title"`
		URL            string `json:"url"`
		TimePublished  string `json:"time_published"`
		Summary        string `json:"summary"`
		Source         string `json:"source"`
		SentimentLabel string `json:"overall_sentiment_label"`
	} `json:"feed"`
}

// NewsSentiment returns the latest feed items, optionally filtered to tickers.
func (c *Client) NewsSentiment(ctx context.Context, tickers string, limit int) ([]NewsItem, error) {
	params := url.Values{"sort": {"LATEST"}, "limit": {strconv.Itoa(limit)}}
	if tickers != "" {
		params.Set("tickers", tickers)
	}
	payload, err := c.query(ctx, "NEWS_SENTIMENT", params)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var feed newsFeed
	if err := json.Unmarshal(b, &feed); err != nil {
		return nil, fmt.Errorf("alphavantage NEWS_SENTIMENT decode: %w", err)
	}

	items := make([]NewsItem, 0, len(feed.Feed))
	for _, f := range feed.Feed {
		published, err := time.Parse(TimePublishedLayout, f.TimePublished)
		if err != nil {
			published = time.Time{}
		}
		items = append(items, NewsItem{
			Title:          f.Title,
			URL:            f.URL,
			Summary:        f.Summary,
			Source:         f.Source,
			Published:      published,
			SentimentLabel: f.SentimentLabel,
		})
	}
	return items, nil
}

func parseStamp(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return int64(parseFloat(s))
	}
	return n
}

// Package news merges headlines from several providers and falls back to
// static templates when none of them answer.
package news

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"StockPulse/internal/logger"
	"StockPulse/internal/model"
)

// Origin tells whether articles came from providers or the static fallback.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginFallback Origin = "fallback"
)

const (
	marketLimit = 25
	symbolLimit = 8
	dedupeChars = 50
)

var financeKeywords = []string{
	"stock", "market", "trading", "investment", "finance", "economy", "economic",
	"earnings", "revenue", "profit", "nasdaq", "nyse", "dow", "s&p", "federal reserve",
	"interest rate", "inflation", "gdp", "unemployment", "bond", "yield", "currency",
	"commodity", "oil", "gold", "crypto", "bitcoin", "ethereum", "ipo", "merger",
	"acquisition", "dividend", "analyst", "forecast", "outlook", "guidance",
}

// FinanceRelated reports whether text mentions any allowlisted keyword.
func FinanceRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range financeKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

type Aggregator struct {
	sources []Source
	logger  arbor.ILogger
	now     func() time.Time
	float   func() float64
}

type Option func(*Aggregator)

func WithLogger(l arbor.ILogger) Option {
	return func(a *Aggregator) { a.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithRandom sets the [0,1) source used for fallback order and timestamps.
func WithRandom(f func() float64) Option {
	return func(a *Aggregator) { a.float = f }
}

func New(sources []Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources: sources,
		logger:  logger.Discard(),
		now:     time.Now,
		float:   rand.Float64,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Market returns up to 25 market headlines, newest first.
func (a *Aggregator) Market(ctx context.Context) ([]model.NewsArticle, Origin) {
	arts := a.gather(ctx, "", func(ctx context.Context, s Source) ([]model.NewsArticle, error) {
		return s.Market(ctx)
	})
	if len(arts) == 0 {
		a.logger.Warn().Msg("No live market news, using fallback headlines")
		return a.marketFallback(), OriginFallback
	}
	return limit(arts, marketLimit), OriginLive
}

// Symbol returns up to 8 headlines about symbol, newest first.
func (a *Aggregator) Symbol(ctx context.Context, symbol string) ([]model.NewsArticle, Origin) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	arts := a.gather(ctx, symbol, func(ctx context.Context, s Source) ([]model.NewsArticle, error) {
		return s.Symbol(ctx, symbol)
	})
	if len(arts) == 0 {
		a.logger.Warn().Str("symbol", symbol).Msg("No live symbol news, using fallback headlines")
		return a.symbolFallback(symbol), OriginFallback
	}
	return limit(arts, symbolLimit), OriginLive
}

// Headlines serves market news for an empty symbol and symbol news otherwise.
func (a *Aggregator) Headlines(ctx context.Context, symbol string) []model.NewsArticle {
	if symbol == "" {
		arts, _ := a.Market(ctx)
		return arts
	}
	arts, _ := a.Symbol(ctx, symbol)
	return arts
}

// gather asks every source concurrently and waits for all of them. Failures
// are logged and skipped.
func (a *Aggregator) gather(ctx context.Context, symbol string, call func(context.Context, Source) ([]model.NewsArticle, error)) []model.NewsArticle {
	results := make([][]model.NewsArticle, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			arts, err := call(ctx, src)
			if err != nil {
				a.logger.Debug().Str("provider", src.Name()).Str("symbol", symbol).Err(err).Msg("News source failed")
				return nil
			}
			results[i] = arts
			return nil
		})
	}
	_ = g.Wait()

	var merged []model.NewsArticle
	for _, arts := range results {
		for _, art := range arts {
			if art.Title == "" || !FinanceRelated(art.Title+" "+art.Summary) {
				continue
			}
			merged = append(merged, art)
		}
	}
	merged = Dedupe(merged)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})
	return merged
}

// Dedupe keeps the first article for each lowercased 50-character title prefix.
func Dedupe(arts []model.NewsArticle) []model.NewsArticle {
	seen := make(map[string]bool, len(arts))
	out := arts[:0:0]
	for _, art := range arts {
		key := truncate(strings.ToLower(art.Title), dedupeChars)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, art)
	}
	return out
}

func limit(arts []model.NewsArticle, n int) []model.NewsArticle {
	if len(arts) > n {
		return arts[:n]
	}
	return arts
}

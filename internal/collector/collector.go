package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"StockPulse/internal/currency"
	"StockPulse/internal/logger"
	"StockPulse/internal/model"
	"StockPulse/internal/provider/alphavantage"
)

// ErrNoData is returned when every source in a chain failed for a symbol.
var ErrNoData = errors.New("no market data available")

// DefaultBatchDelay paces sequential batch fetches.
const DefaultBatchDelay = 100 * time.Millisecond

const searchLimit = 5

// Attempt records one failed source in a chain.
type Attempt struct {
	Source string
	Err    error
}

// ChainError lists every failed source. It unwraps to ErrNoData.
type ChainError struct {
	Symbol   string
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Source, a.Err))
	}
	return fmt.Sprintf("%s: %v [%s]", e.Symbol, ErrNoData, strings.Join(parts, "; "))
}

func (e *ChainError) Unwrap() error { return ErrNoData }

// Result is a converted quote plus the chain bookkeeping. Attempts lists
// the sources skipped before Source answered.
type Result struct {
	Quote    model.Quote
	Source   string
	Attempts []Attempt
}

// Rater resolves exchange rates.
type Rater interface {
	Rate(ctx context.Context, from, to string) (float64, currency.Source)
}

// HeadlineSource returns recent headlines for a symbol, or market headlines
// for an empty symbol.
type HeadlineSource interface {
	Headlines(ctx context.Context, symbol string) []model.NewsArticle
}

// SymbolSearcher resolves free-text queries to tickers.
type SymbolSearcher interface {
	SymbolSearch(ctx context.Context, keywords string) ([]alphavantage.SearchMatch, error)
}

// Collector runs the ordered quote chain and decorates results with company
// metadata and local-currency prices.
type Collector struct {
	sources       []Source
	detailSources []Source
	metadata      MetadataSource
	searcher      SymbolSearcher
	rates         Rater
	news          HeadlineSource
	logger        arbor.ILogger
	batchDelay    time.Duration
}

// Option configures the Collector.
type Option func(*Collector)

// WithSources sets the quote chain, tried in order.
func WithSources(sources ...Source) Option {
	return func(c *Collector) { c.sources = sources }
}

// WithDetailSources sets the chain used for FetchDetail.
func WithDetailSources(sources ...Source) Option {
	return func(c *Collector) { c.detailSources = sources }
}

func WithMetadata(m MetadataSource) Option {
	return func(c *Collector) { c.metadata = m }
}

func WithSearcher(s SymbolSearcher) Option {
	return func(c *Collector) { c.searcher = s }
}

func WithRates(r Rater) Option {
	return func(c *Collector) { c.rates = r }
}

func WithNews(n HeadlineSource) Option {
	return func(c *Collector) { c.news = n }
}

func WithLogger(l arbor.ILogger) Option {
	return func(c *Collector) { c.logger = l }
}

// WithBatchDelay overrides the pause between batch fetches.
func WithBatchDelay(d time.Duration) Option {
	return func(c *Collector) { c.batchDelay = d }
}

// New creates a Collector. Without WithRates a live converter is used.
func New(opts ...Option) *Collector {
	c := &Collector{
		logger:     logger.Discard(),
		batchDelay: DefaultBatchDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rates == nil {
		c.rates = currency.NewConverter(currency.WithLogger(c.logger))
	}
	if c.detailSources == nil {
		c.detailSources = c.sources
	}
	return c
}

// runChain tries each source in order and stops at the first valid quote.
func (c *Collector) runChain(ctx context.Context, sources []Source, symbol string) (RawQuote, string, []Attempt, error) {
	var attempts []Attempt
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return RawQuote{}, "", attempts, err
		}
		raw, err := src.FetchQuote(ctx, symbol)
		if err == nil {
			err = raw.validate(src.Name())
		}
		if err != nil {
			c.logger.Debug().Str("symbol", symbol).Str("provider", src.Name()).Err(err).Msg("Quote source failed, trying next")
			attempts = append(attempts, Attempt{Source: src.Name(), Err: err})
			continue
		}
		return raw, src.Name(), attempts, nil
	}
	c.logger.Warn().Str("symbol", symbol).Int("sources", len(sources)).Msg("All quote sources failed")
	return RawQuote{}, "", attempts, &ChainError{Symbol: symbol, Attempts: attempts}
}

func (c *Collector) usdRate(ctx context.Context, target string) float64 {
	rate, src := c.rates.Rate(ctx, "USD", target)
	if src != currency.SourceIdentity && src != currency.SourceLive && src != currency.SourceCache {
		c.logger.Debug().Str("currency", target).Str("source", string(src)).Msg("Using fallback exchange rate")
	}
	return rate
}

func normalizeCountry(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return "US"
	}
	return country
}

// FetchQuote returns the quote for symbol in country's currency. The
// exchange suffix is stripped before the chain runs.
func (c *Collector) FetchQuote(ctx context.Context, symbol, country string) (*Result, error) {
	clean := CleanSymbol(symbol)
	if clean == "" {
		return nil, fmt.Errorf("fetch quote: empty symbol")
	}
	country = normalizeCountry(country)

	raw, source, attempts, err := c.runChain(ctx, c.sources, clean)
	if err != nil {
		return nil, err
	}

	cur := currency.ForCountry(country)
	rate := c.usdRate(ctx, cur)
	info := c.companyInfo(ctx, clean)

	return &Result{
		Quote: model.Quote{
			Symbol:        clean,
			Name:          info.Name,
			Price:         currency.Round(raw.Price*rate, cur),
			Change:        currency.Round(raw.Change*rate, cur),
			ChangePercent: currency.RoundPlaces(raw.ChangePercent, 2),
			Volume:        raw.Volume,
			MarketCap:     info.MarketCap,
			Sector:        info.Sector,
			Country:       country,
		},
		Source:   source,
		Attempts: attempts,
	}, nil
}

// FetchBatch quotes symbols one at a time, pausing between requests.
// Failed symbols are dropped; an error is returned only when nothing could
// be fetched.
func (c *Collector) FetchBatch(ctx context.Context, symbols []string, country string) ([]model.Quote, error) {
	if len(symbols) == 0 {
		return []model.Quote{}, nil
	}

	quotes := make([]model.Quote, 0, len(symbols))
	for i, sym := range symbols {
		if i > 0 && c.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.batchDelay):
			}
		}
		res, err := c.FetchQuote(ctx, sym, country)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn().Str("symbol", sym).Err(err).Msg("Dropping symbol from batch")
			continue
		}
		quotes = append(quotes, res.Quote)
	}

	if len(quotes) == 0 {
		return nil, fmt.Errorf("fetch batch of %d symbols: %w", len(symbols), ErrNoData)
	}
	c.logger.Info().Str("country", country).Int("fetched", len(quotes)).Int("requested", len(symbols)).Msg("Batch fetched")
	return quotes, nil
}

// FetchCountry quotes the browse list of country.
func (c *Collector) FetchCountry(ctx context.Context, country string) ([]model.Quote, error) {
	return c.FetchBatch(ctx, CountrySymbols(country), normalizeCountry(country))
}

// FetchDetail returns the full detail record. The country, and therefore the
// display currency, is inferred from the symbol's exchange suffix.
func (c *Collector) FetchDetail(ctx context.Context, symbol string) (*model.QuoteDetail, error) {
	clean := CleanSymbol(symbol)
	if clean == "" {
		return nil, fmt.Errorf("fetch detail: empty symbol")
	}
	country := CountryFromSymbol(symbol)

	raw, source, _, err := c.runChain(ctx, c.detailSources, clean)
	if err != nil {
		return nil, err
	}

	cur := currency.ForCountry(country)
	rate := c.usdRate(ctx, cur)
	conv := func(v float64) float64 { return currency.Round(v*rate, cur) }
	info := c.companyInfo(ctx, clean)

	detail := &model.QuoteDetail{
		Quote: model.Quote{
			Symbol:        clean,
			Name:          info.Name,
			Price:         conv(raw.Price),
			Change:        conv(raw.Change),
			ChangePercent: currency.RoundPlaces(raw.ChangePercent, 2),
			Volume:        raw.Volume,
			MarketCap:     info.MarketCap,
			Sector:        info.Sector,
			Country:       country,
		},
		Open:          conv(raw.Open),
		High:          conv(raw.High),
		Low:           conv(raw.Low),
		PreviousClose: conv(raw.PreviousClose),
		Description:   info.Description,
	}
	if c.news != nil {
		detail.News = c.news.Headlines(ctx, symbol)
	}

	c.logger.Debug().Str("symbol", symbol).Str("provider", source).Msg("Detail fetched")
	return detail, nil
}

// Search resolves query through symbol search and falls back to filtering
// the country browse list by name or ticker. It never fails.
func (c *Collector) Search(ctx context.Context, query, country string) []model.Quote {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Quote{}
	}

	if c.searcher != nil {
		matches, err := c.searcher.SymbolSearch(ctx, query)
		if err != nil {
			c.logger.Debug().Str("query", query).Err(err).Msg("Symbol search failed, filtering browse list")
		}
		if len(matches) > searchLimit {
			matches = matches[:searchLimit]
		}
		results := make([]model.Quote, 0, len(matches))
		for _, m := range matches {
			res, err := c.FetchQuote(ctx, m.Symbol, country)
			if err != nil {
				continue
			}
			results = append(results, res.Quote)
		}
		if len(results) > 0 {
			return results
		}
	}

	all, err := c.FetchCountry(ctx, country)
	if err != nil {
		c.logger.Warn().Str("query", query).Err(err).Msg("Search fallback failed")
		return []model.Quote{}
	}
	needle := strings.ToLower(query)
	filtered := make([]model.Quote, 0)
	for _, q := range all {
		if strings.Contains(strings.ToLower(q.Name), needle) || strings.Contains(strings.ToLower(q.Symbol), needle) {
			filtered = append(filtered, q)
		}
	}
	return filtered
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"StockPulse/internal/analyzer"
	"StockPulse/internal/chart"
	"StockPulse/internal/collector"
	"StockPulse/internal/config"
	"StockPulse/internal/currency"
	"StockPulse/internal/httpx"
	"StockPulse/internal/news"
	"StockPulse/internal/provider/alphavantage"
	"StockPulse/internal/provider/finnhub"
	"StockPulse/internal/provider/marketaux"
	"StockPulse/internal/provider/newsapi"
	"StockPulse/internal/provider/yahoo"
	"StockPulse/internal/store"
	"StockPulse/internal/store/badgerstore"
	"StockPulse/internal/store/sqlstore"
)

// app holds the market-data services shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger arbor.ILogger
	client *httpx.Client
	redis  *redis.Client

	rates   *currency.Converter
	quotes  *collector.Collector
	charts  *chart.Fetcher
	analyst *analyzer.Analyzer
	news    *news.Aggregator
}

func newApp(ctx context.Context, cfg *config.Config, log arbor.ILogger) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: log,
		client: httpx.New(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, cfg.Proxy),
	}
	p := cfg.Providers

	var av *alphavantage.Client
	if p.AlphaVantage.APIKey != "" {
		av = alphavantage.NewClient(p.AlphaVantage.APIKey,
			alphavantage.WithBaseURL(p.AlphaVantage.BaseURL),
			alphavantage.WithHTTPClient(a.client),
			alphavantage.WithLogger(log),
			alphavantage.WithRequestsPerMinute(p.AlphaVantage.RequestsPerMinute),
		)
	} else {
		log.Warn().Msg("Alpha Vantage key not set, quotes fall through to Finnhub/Yahoo")
	}

	var fh *finnhub.Client
	if p.Finnhub.APIKey != "" {
		fh = finnhub.NewClient(p.Finnhub.APIKey,
			finnhub.WithBaseURL(p.Finnhub.BaseURL),
			finnhub.WithHTTPClient(a.client),
			finnhub.WithLogger(log),
			finnhub.WithRequestsPerMinute(p.Finnhub.RequestsPerMinute),
		)
	}

	yh := yahoo.NewClient(
		yahoo.WithBaseURL(p.Yahoo.BaseURL),
		yahoo.WithHTTPClient(a.client),
		yahoo.WithLogger(log),
	)

	copts := []currency.Option{
		currency.WithBaseURL(p.ExchangeRate.BaseURL),
		currency.WithHTTPClient(a.client),
		currency.WithLogger(log),
	}
	if cache := a.rateCache(ctx); cache != nil {
		copts = append(copts, currency.WithCache(cache))
	}
	a.rates = currency.NewConverter(copts...)

	var sources []news.Source
	if p.NewsAPI.APIKey != "" {
		sources = append(sources, &news.NewsAPISource{Client: newsapi.NewClient(p.NewsAPI.APIKey,
			newsapi.WithBaseURL(p.NewsAPI.BaseURL),
			newsapi.WithHTTPClient(a.client),
			newsapi.WithLogger(log),
		)})
	}
	if av != nil {
		sources = append(sources, &news.AlphaVantageSource{Client: av})
	}
	if fh != nil {
		sources = append(sources, &news.FinnhubSource{Client: fh})
	}
	if p.Marketaux.APIKey != "" {
		sources = append(sources, &news.MarketauxSource{Client: marketaux.NewClient(p.Marketaux.APIKey,
			marketaux.WithBaseURL(p.Marketaux.BaseURL),
			marketaux.WithHTTPClient(a.client),
			marketaux.WithLogger(log),
		)})
	}
	a.news = news.New(sources, news.WithLogger(log))

	opts := []collector.Option{
		collector.WithRates(a.rates),
		collector.WithNews(a.news),
		collector.WithLogger(log),
	}
	var chain, detail []collector.Source
	if av != nil {
		chain = append(chain, collector.AlphaVantageSource{Client: av})
		detail = append(detail, collector.AlphaVantageSource{Client: av})
		opts = append(opts, collector.WithMetadata(av), collector.WithSearcher(av))
	}
	if fh != nil {
		chain = append(chain, collector.FinnhubSource{Client: fh})
	}
	chain = append(chain, collector.YahooSource{Client: yh})
	detail = append(detail, collector.YahooSource{Client: yh})
	opts = append(opts, collector.WithSources(chain...), collector.WithDetailSources(detail...))
	a.quotes = collector.New(opts...)

	loc, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Market.Timezone, err)
	}
	var series chart.SeriesSource
	if av != nil {
		series = av
	}
	a.charts = chart.NewFetcher(series, yh, a.rates, chart.WithLocation(loc), chart.WithLogger(log))

	chat, err := analyzer.NewChatClient(ctx, analyzer.ChatSettings{
		Provider:    cfg.Chat.Provider,
		APIKey:      cfg.Chat.APIKey,
		BaseURL:     cfg.Chat.BaseURL,
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat client: %w", err)
	}
	aopts := []analyzer.Option{analyzer.WithHeadlines(a.news), analyzer.WithLogger(log)}
	if chat != nil {
		aopts = append(aopts, analyzer.WithChatClient(chat))
		log.Info().Str("provider", cfg.Chat.Provider).Str("model", cfg.Chat.Model).Msg("Remote analysis enabled")
	}
	a.analyst = analyzer.New(aopts...)

	return a, nil
}

// defaultRedisRateTTL applies when Redis is configured without a TTL.
const defaultRedisRateTTL = time.Hour

// rateCache returns nil unless caching was asked for: every conversion then
// does its own live lookup. Redis is used when an address is set, memory
// when only a TTL is.
func (a *app) rateCache(ctx context.Context) currency.RateCache {
	ttl := time.Duration(a.cfg.Redis.RateCacheTTLSecond) * time.Second
	if a.cfg.Redis.Addr == "" {
		if ttl <= 0 {
			return nil
		}
		return currency.NewMemoryCache(ttl)
	}
	if ttl <= 0 {
		ttl = defaultRedisRateTTL
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		a.logger.Warn().Str("addr", a.cfg.Redis.Addr).Err(err).Msg("Redis unreachable, rate cache misses until it recovers")
	}
	return currency.NewRedisCache(a.redis, ttl)
}

func (a *app) openStore() (store.Store, error) {
	if a.cfg.Store.Driver == "badger" {
		st, err := badgerstore.Open(a.cfg.Store.DSN, badgerstore.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st, err := sqlstore.Open(a.cfg.Store.Driver, a.cfg.Store.DSN, sqlstore.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Close redis")
		}
	}
}

package news

import (
	"context"
	"strings"

	"StockPulse/internal/model"
	"StockPulse/internal/provider/alphavantage"
	"StockPulse/internal/provider/finnhub"
	"StockPulse/internal/provider/marketaux"
	"StockPulse/internal/provider/newsapi"
)

// Source is one news provider. A nil slice with a nil error means the
// provider had nothing to offer.
type Source interface {
	Name() string
	Market(ctx context.Context) ([]model.NewsArticle, error)
	Symbol(ctx context.Context, symbol string) ([]model.NewsArticle, error)
}

var companyNames = map[string]string{
	"AAPL":  "Apple",
	"GOOGL": "Google",
	"MSFT":  "Microsoft",
	"TSLA":  "Tesla",
	"AMZN":  "Amazon",
	"META":  "Meta",
	"NVDA":  "NVIDIA",
	"NFLX":  "Netflix",
	"AMD":   "AMD",
	"INTC":  "Intel",
}

// CompanyName returns the short company name used in queries and fallback
// headlines, or the symbol itself.
func CompanyName(symbol string) string {
	if n, ok := companyNames[symbol]; ok {
		return n
	}
	return symbol
}

func summaryOr(summary, title string) string {
	if strings.TrimSpace(summary) != "" {
		return summary
	}
	return truncate(title, 200) + "..."
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// NewsAPIClient is the subset of the NewsAPI client used here.
type NewsAPIClient interface {
	Everything(ctx context.Context, query string, pageSize int) ([]newsapi.Article, error)
	TopHeadlines(ctx context.Context, category string, pageSize int) ([]newsapi.Article, error)
}

var marketQueries = []string{
	"stock market finance economy earnings",
	"NYSE NASDAQ trading investment",
	"Federal Reserve interest rates inflation",
	"S&P 500 Dow Jones market analysis",
}

// NewsAPISource tries each query in turn and keeps the first one that
// yields usable articles.
type NewsAPISource struct {
	Client NewsAPIClient
}

func (s *NewsAPISource) Name() string { return "newsapi" }

func (s *NewsAPISource) Market(ctx context.Context) ([]model.NewsArticle, error) {
	var lastErr error
	for _, q := range marketQueries {
		arts, err := s.Client.Everything(ctx, q, 10)
		if err != nil {
			lastErr = err
			continue
		}
		if out := convertNewsAPI(arts); len(out) > 0 {
			return out, nil
		}
	}
	arts, err := s.Client.TopHeadlines(ctx, "business", 15)
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return convertNewsAPI(arts), nil
}

func (s *NewsAPISource) Symbol(ctx context.Context, symbol string) ([]model.NewsArticle, error) {
	name := CompanyName(symbol)
	queries := []string{
		symbol + " stock",
		name + " earnings",
		name + " financial results",
		symbol + " price target",
	}
	var lastErr error
	for _, q := range queries {
		arts, err := s.Client.Everything(ctx, q, 5)
		if err != nil {
			lastErr = err
			continue
		}
		if out := convertNewsAPI(arts); len(out) > 0 {
			return out, nil
		}
	}
	return nil, lastErr
}

// convertNewsAPI drops removed articles and those with a short or missing
// description.
func convertNewsAPI(arts []newsapi.Article) []model.NewsArticle {
	out := make([]model.NewsArticle, 0, len(arts))
	for _, a := range arts {
		if a.Title == "" || a.URL == "" || strings.Contains(a.Title, "[Removed]") || len([]rune(a.Description)) <= 50 {
			continue
		}
		src := a.Source.Name
		if src == "" {
			src = "NewsAPI"
		}
		out = append(out, model.NewsArticle{
			Title:       a.Title,
			Summary:     a.Description,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
			Source:      src,
		})
	}
	return out
}

// AlphaVantageNews is the subset of the Alpha Vantage client used here.
type AlphaVantageNews interface {
	NewsSentiment(ctx context.Context, tickers string, limit int) ([]alphavantage.NewsItem, error)
}

type AlphaVantageSource struct {
	Client AlphaVantageNews
}

func (s *AlphaVantageSource) Name() string { return "alphavantage" }

func (s *AlphaVantageSource) Market(ctx context.Context) ([]model.NewsArticle, error) {
	items, err := s.Client.NewsSentiment(ctx, "", 15)
	if err != nil {
		return nil, err
	}
	return convertAlphaVantage(items, 15), nil
}

func (s *AlphaVantageSource) Symbol(ctx context.Context, symbol string) ([]model.NewsArticle, error) {
	items, err := s.Client.NewsSentiment(ctx, symbol, 8)
	if err != nil {
		return nil, err
	}
	return convertAlphaVantage(items, 5), nil
}

func convertAlphaVantage(items []alphavantage.NewsItem, limit int) []model.NewsArticle {
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]model.NewsArticle, 0, len(items))
	for _, it := range items {
		src := it.Source
		if src == "" {
			src = "Alpha Vantage"
		}
		out = append(out, model.NewsArticle{
			Title:       it.Title,
			Summary:     summaryOr(it.Summary, it.Title),
			URL:         it.URL,
			PublishedAt: it.Published,
			Source:      src,
		})
	}
	return out
}

// FinnhubNews is the subset of the Finnhub client used here.
type FinnhubNews interface {
	GeneralNews(ctx context.Context, category string) ([]finnhub.Article, error)
	CompanyNews(ctx context.Context, symbol string, days int) ([]finnhub.Article, error)
}

type FinnhubSource struct {
	Client FinnhubNews
}

func (s *FinnhubSource) Name() string { return "finnhub" }

func (s *FinnhubSource) Market(ctx context.Context) ([]model.NewsArticle, error) {
	arts, err := s.Client.GeneralNews(ctx, "general")
	if err != nil {
		return nil, err
	}
	return convertFinnhub(arts, 10), nil
}

func (s *FinnhubSource) Symbol(ctx context.Context, symbol string) ([]model.NewsArticle, error) {
	arts, err := s.Client.CompanyNews(ctx, symbol, 7)
	if err != nil {
		return nil, err
	}
	return convertFinnhub(arts, 5), nil
}

func convertFinnhub(arts []finnhub.Article, limit int) []model.NewsArticle {
	if len(arts) > limit {
		arts = arts[:limit]
	}
	out := make([]model.NewsArticle, 0, len(arts))
	for _, a := range arts {
		src := a.Source
		if src == "" {
			src = "Finnhub"
		}
		out = append(out, model.NewsArticle{
			Title:       a.Headline,
			Summary:     summaryOr(a.Summary, a.Headline),
			URL:         a.URL,
			PublishedAt: a.Published(),
			Source:      src,
		})
	}
	return out
}

// MarketauxNews is the subset of the Marketaux client used here.
type MarketauxNews interface {
	News(ctx context.Context, symbols string, limit int) ([]marketaux.Article, error)
}

type MarketauxSource struct {
	Client MarketauxNews
}

func (s *MarketauxSource) Name() string { return "marketaux" }

func (s *MarketauxSource) Market(ctx context.Context) ([]model.NewsArticle, error) {
	arts, err := s.Client.News(ctx, "", 10)
	if err != nil {
		return nil, err
	}
	return convertMarketaux(arts), nil
}

func (s *MarketauxSource) Symbol(ctx context.Context, symbol string) ([]model.NewsArticle, error) {
	arts, err := s.Client.News(ctx, symbol, 5)
	if err != nil {
		return nil, err
	}
	return convertMarketaux(arts), nil
}

func convertMarketaux(arts []marketaux.Article) []model.NewsArticle {
	out := make([]model.NewsArticle, 0, len(arts))
	for _, a := range arts {
		src := a.Source
		if src == "" {
			src = "Marketaux"
		}
		out = append(out, model.NewsArticle{
			Title:       a.Title,
			Summary:     summaryOr(a.Text(), a.Title),
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
			Source:      src,
		})
	}
	return out
}

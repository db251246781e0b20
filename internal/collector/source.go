package collector

import (
	"context"
	"fmt"
	"math"

	"StockPulse/internal/provider/alphavantage"
	"StockPulse/internal/provider/finnhub"
	"StockPulse/internal/provider/yahoo"
)

// RawQuote is a provider quote in the provider's currency (USD for every
// supported source).
type RawQuote struct {
	Price         float64
	Change        float64
	ChangePercent float64
	Volume        int64
	Open          float64
	High          float64
	Low           float64
	PreviousClose float64
}

func (r RawQuote) validate(source string) error {
	if r.Price <= 0 || math.IsNaN(r.Price) || math.IsInf(r.Price, 0) {
		return fmt.Errorf("%s: invalid price %v", source, r.Price)
	}
	return nil
}

// Source defines the interface for one link in the quote chain.
type Source interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (RawQuote, error)
}

// AlphaVantageQuoter is the part of the Alpha Vantage client the chain uses.
type AlphaVantageQuoter interface {
	GlobalQuote(ctx context.Context, symbol string) (*alphavantage.GlobalQuote, error)
}

// AlphaVantageSource reads GLOBAL_QUOTE.
type AlphaVantageSource struct{ Client AlphaVantageQuoter }

func (s AlphaVantageSource) Name() string { return "alphavantage" }

func (s AlphaVantageSource) FetchQuote(ctx context.Context, symbol string) (RawQuote, error) {
	q, err := s.Client.GlobalQuote(ctx, symbol)
	if err != nil {
		return RawQuote{}, err
	}
	return RawQuote{
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Volume:        q.Volume,
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		PreviousClose: q.PreviousClose,
	}, nil
}

// FinnhubQuoter is the part of the Finnhub client the chain uses.
type FinnhubQuoter interface {
	Quote(ctx context.Context, symbol string) (*finnhub.Quote, error)
}

// FinnhubSource reads /quote. Finnhub reports no volume there.
type FinnhubSource struct{ Client FinnhubQuoter }

func (s FinnhubSource) Name() string { return "finnhub" }

func (s FinnhubSource) FetchQuote(ctx context.Context, symbol string) (RawQuote, error) {
	q, err := s.Client.Quote(ctx, symbol)
	if err != nil {
		return RawQuote{}, err
	}
	return RawQuote{
		Price:         q.Current,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		PreviousClose: q.PreviousClose,
	}, nil
}

// YahooQuoter is the part of the Yahoo client the chain uses.
type YahooQuoter interface {
	Quote(ctx context.Context, symbol string) (*yahoo.Meta, error)
}

// YahooSource derives change from the chart meta block.
type YahooSource struct{ Client YahooQuoter }

func (s YahooSource) Name() string { return "yahoo" }

func (s YahooSource) FetchQuote(ctx context.Context, symbol string) (RawQuote, error) {
	m, err := s.Client.Quote(ctx, symbol)
	if err != nil {
		return RawQuote{}, err
	}
	prev := m.Close()
	raw := RawQuote{
		Price:         m.RegularMarketPrice,
		Volume:        m.RegularMarketVol,
		Open:          m.RegularMarketOpen,
		High:          m.RegularMarketHigh,
		Low:           m.RegularMarketLow,
		PreviousClose: prev,
	}
	if prev > 0 {
		raw.Change = m.RegularMarketPrice - prev
		raw.ChangePercent = raw.Change / prev * 100
	}
	return raw, nil
}

// Package chart builds price series for the detail chart: Alpha Vantage
// first, then one Yahoo fallback.
package chart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"StockPulse/internal/calculator"
	"StockPulse/internal/collector"
	"StockPulse/internal/currency"
	"StockPulse/internal/logger"
	"StockPulse/internal/model"
	"StockPulse/internal/provider/alphavantage"
	"StockPulse/internal/provider/yahoo"
)

// ErrNoSeries is returned when neither provider produced a series.
var ErrNoSeries = errors.New("no chart data available")

// Period is a chart time window.
type Period string

const (
	Period1H Period = "1H"
	Period1D Period = "1D"
	Period1W Period = "1W"
	Period1M Period = "1M"
	Period6M Period = "6M"
	Period1Y Period = "1Y"
)

type periodSpec struct {
	avInterval    string
	points        int
	yahooRange    string
	yahooInterval string
	avDaily       bool
	yahooDaily    bool
}

var periods = map[Period]periodSpec{
	Period1H: {avInterval: "5min", points: 12, yahooRange: "1d", yahooInterval: "5m"},
	Period1D: {avInterval: "15min", points: 24, yahooRange: "1d", yahooInterval: "15m"},
	Period1W: {avInterval: "60min", points: 7, yahooRange: "5d", yahooInterval: "1h"},
	Period1M: {avInterval: "60min", points: 30, yahooRange: "1mo", yahooInterval: "1d", yahooDaily: true},
	Period6M: {avInterval: "daily", points: 26, yahooRange: "6mo", yahooInterval: "1d", avDaily: true, yahooDaily: true},
	Period1Y: {avInterval: "daily", points: 52, yahooRange: "1y", yahooInterval: "1wk", avDaily: true, yahooDaily: true},
}

var defaultPeriod = periodSpec{avInterval: "15min", points: 30, yahooRange: "1d", yahooInterval: "15m"}

func lookup(p Period) periodSpec {
	if s, ok := periods[Period(strings.ToUpper(string(p)))]; ok {
		return s
	}
	return defaultPeriod
}

// SeriesSource is the Alpha Vantage time-series call.
type SeriesSource interface {
	Series(ctx context.Context, symbol, interval string) ([]alphavantage.Point, error)
}

// BarSource is the Yahoo chart call.
type BarSource interface {
	Chart(ctx context.Context, symbol, interval, rng string) (*yahoo.Chart, error)
}

// Result is a converted series and the provider that produced it.
type Result struct {
	model.ChartSeries
	Provider string            `json:"provider"`
	Currency string            `json:"currency"`
	Stats    *calculator.Stats `json:"stats,omitempty"`
}

// Fetcher produces chart series.
type Fetcher struct {
	primary  SeriesSource
	fallback BarSource
	rates    collector.Rater
	location *time.Location
	logger   arbor.ILogger
}

type Option func(*Fetcher)

func WithLocation(loc *time.Location) Option {
	return func(f *Fetcher) {
		if loc != nil {
			f.location = loc
		}
	}
}

func WithLogger(l arbor.ILogger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a Fetcher. Either source may be nil.
func NewFetcher(primary SeriesSource, fallback BarSource, rates collector.Rater, opts ...Option) *Fetcher {
	f := &Fetcher{
		primary:  primary,
		fallback: fallback,
		rates:    rates,
		location: time.Local,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type point struct {
	t time.Time
	v float64
}

// Fetch returns the series for symbol over period, oldest first, in the
// currency of the symbol's listing country.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, period Period) (*Result, error) {
	clean := collector.CleanSymbol(symbol)
	if clean == "" {
		return nil, fmt.Errorf("chart: empty symbol")
	}
	spec := lookup(period)

	var errs []error
	pts, provider, err := f.fromPrimary(ctx, clean, spec)
	if err != nil {
		errs = append(errs, err)
		f.logger.Warn().Str("symbol", clean).Str("provider", "alphavantage").Err(err).Msg("Chart primary failed, trying fallback")
		pts, provider, err = f.fromFallback(ctx, clean, spec)
		if err != nil {
			errs = append(errs, err)
			return nil, fmt.Errorf("%s %s: %w", clean, period, errors.Join(append([]error{ErrNoSeries}, errs...)...))
		}
	}

	cur := currency.ForCountry(collector.CountryFromSymbol(symbol))
	rate := 1.0
	if f.rates != nil {
		rate, _ = f.rates.Rate(ctx, "USD", cur)
	}

	layout := "15:04:05"
	if (provider == "alphavantage" && spec.avDaily) || (provider == "yahoo" && spec.yahooDaily) {
		layout = "2006-01-02"
	}

	res := &Result{
		ChartSeries: model.ChartSeries{
			Labels: make([]string, len(pts)),
			Values: make([]float64, len(pts)),
		},
		Provider: provider,
		Currency: cur,
	}
	for i, p := range pts {
		res.Labels[i] = p.t.In(f.location).Format(layout)
		res.Values[i] = currency.Round(p.v*rate, cur)
	}
	res.Stats = calculator.Summarize(res.Values)
	return res, nil
}

func (f *Fetcher) fromPrimary(ctx context.Context, symbol string, spec periodSpec) ([]point, string, error) {
	if f.primary == nil {
		return nil, "", errors.New("alphavantage: not configured")
	}
	series, err := f.primary.Series(ctx, symbol, spec.avInterval)
	if err != nil {
		return nil, "", err
	}
	if len(series) > spec.points {
		series = series[:spec.points]
	}
	// series is newest first
	pts := make([]point, len(series))
	for i, p := range series {
		pts[len(series)-1-i] = point{t: p.Time, v: p.Close}
	}
	return pts, "alphavantage", nil
}

func (f *Fetcher) fromFallback(ctx context.Context, symbol string, spec periodSpec) ([]point, string, error) {
	if f.fallback == nil {
		return nil, "", errors.New("yahoo: not configured")
	}
	chart, err := f.fallback.Chart(ctx, symbol, spec.yahooInterval, spec.yahooRange)
	if err != nil {
		return nil, "", err
	}
	if len(chart.Bars) == 0 {
		return nil, "", fmt.Errorf("yahoo: no bars for %s", symbol)
	}
	pts := make([]point, len(chart.Bars))
	for i, b := range chart.Bars {
		pts[i] = point{t: b.Time, v: b.Close}
	}
	return pts, "yahoo", nil
}

package chart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/currency"
	"StockPulse/internal/model"
	"StockPulse/internal/provider/alphavantage"
	"StockPulse/internal/provider/yahoo"
)

type seriesStub struct {
	points   []alphavantage.Point
	err      error
	interval string
}

func (s *seriesStub) Series(_ context.Context, _, interval string) ([]alphavantage.Point, error) {
	s.interval = interval
	return s.points, s.err
}

type barStub struct {
	bars          []model.OHLCV
	err           error
	interval, rng string
	calls         int
}

func (b *barStub) Chart(_ context.Context, _, interval, rng string) (*yahoo.Chart, error) {
	b.calls++
	b.interval, b.rng = interval, rng
	if b.err != nil {
		return nil, b.err
	}
	return &yahoo.Chart{Bars: b.bars}, nil
}

type rateStub float64

func (r rateStub) Rate(_ context.Context, from, to string) (float64, currency.Source) {
	if from == to {
		return 1, currency.SourceIdentity
	}
	return float64(r), currency.SourceStatic
}

func newestFirst(n int, start time.Time, step time.Duration) []alphavantage.Point {
	pts := make([]alphavantage.Point, n)
	for i := 0; i < n; i++ {
		pts[i] = alphavantage.Point{Time: start.Add(-time.Duration(i) * step), Close: float64(100 - i)}
	}
	return pts
}

func TestFetch_PrimaryTakesNewestNAscending(t *testing.T) {
	start := time.Date(2024, 3, 1, 15, 55, 0, 0, time.UTC)
	av := &seriesStub{points: newestFirst(40, start, 5*time.Minute)}
	yh := &barStub{}

	f := NewFetcher(av, yh, rateStub(1), WithLocation(time.UTC))
	res, err := f.Fetch(t.Context(), "AAPL", Period1H)
	require.NoError(t, err)

	assert.Equal(t, "5min", av.interval)
	assert.Equal(t, "alphavantage", res.Provider)
	assert.Zero(t, yh.calls)
	require.Equal(t, 12, res.Len())
	assert.Equal(t, 89.0, res.Values[0])
	assert.Equal(t, 100.0, res.Values[11])
	assert.Equal(t, "15:55:00", res.Labels[11])
	assert.Equal(t, "15:00:00", res.Labels[0])

	require.NotNil(t, res.Stats)
	assert.Equal(t, 100.0, res.Stats.High)
	assert.Equal(t, 89.0, res.Stats.Low)
	assert.Equal(t, 94.5, res.Stats.Average)
	assert.Equal(t, 1.0, res.Stats.Position)
}

func TestFetch_FallbackToYahoo(t *testing.T) {
	av := &seriesStub{err: alphavantage.ErrRateLimited}
	yh := &barStub{bars: []model.OHLCV{
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 10},
		{Time: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Close: 11},
	}}

	f := NewFetcher(av, yh, rateStub(83.25), WithLocation(time.UTC))
	res, err := f.Fetch(t.Context(), "TCS.BSE", Period6M)
	require.NoError(t, err)

	assert.Equal(t, "yahoo", res.Provider)
	assert.Equal(t, "6mo", yh.rng)
	assert.Equal(t, "1d", yh.interval)
	assert.Equal(t, "INR", res.Currency)
	assert.Equal(t, []float64{832.5, 915.75}, res.Values)
	assert.Equal(t, []string{"2024-01-02", "2024-01-03"}, res.Labels)
}

func TestFetch_BothFail(t *testing.T) {
	f := NewFetcher(&seriesStub{err: errors.New("a")}, &barStub{err: errors.New("b")}, rateStub(1))
	_, err := f.Fetch(t.Context(), "AAPL", Period1D)
	assert.ErrorIs(t, err, ErrNoSeries)
}

func TestFetch_EmptyYahooIsFailure(t *testing.T) {
	f := NewFetcher(nil, &barStub{}, rateStub(1))
	_, err := f.Fetch(t.Context(), "AAPL", Period1D)
	assert.ErrorIs(t, err, ErrNoSeries)
}

func TestFetch_JPYRoundsToWholeUnits(t *testing.T) {
	av := &seriesStub{points: []alphavantage.Point{{Time: time.Now(), Close: 100.004}}}
	f := NewFetcher(av, nil, rateStub(149.5))
	res, err := f.Fetch(t.Context(), "7203.TYO", Period1D)
	require.NoError(t, err)
	assert.Equal(t, []float64{14951}, res.Values)
}

func TestPeriodTable(t *testing.T) {
	tests := []struct {
		period   Period
		interval string
		points   int
		rng      string
		yInt     string
	}{
		{Period1H, "5min", 12, "1d", "5m"},
		{Period1D, "15min", 24, "1d", "15m"},
		{Period1W, "60min", 7, "5d", "1h"},
		{Period1M, "60min", 30, "1mo", "1d"},
		{Period6M, "daily", 26, "6mo", "1d"},
		{Period1Y, "daily", 52, "1y", "1wk"},
		{Period("5Y"), "15min", 30, "1d", "15m"},
		{Period("1w"), "60min", 7, "5d", "1h"},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			s := lookup(tt.period)
			assert.Equal(t, tt.interval, s.avInterval)
			assert.Equal(t, tt.points, s.points)
			assert.Equal(t, tt.rng, s.yahooRange)
			assert.Equal(t, tt.yInt, s.yahooInterval)
		})
	}
}

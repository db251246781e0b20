package portfolio

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/collector"
	"StockPulse/internal/model"
	"StockPulse/internal/store"
	"StockPulse/internal/store/sqlstore"
)

type fakeQuotes struct {
	mu        sync.Mutex
	prices    map[string]float64
	countries []string
}

func (f *fakeQuotes) FetchQuote(_ context.Context, symbol, country string) (*collector.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countries = append(f.countries, country)
	p, ok := f.prices[symbol]
	if !ok {
		return nil, &collector.ChainError{Symbol: symbol}
	}
	return &collector.Result{Quote: model.Quote{Symbol: symbol, Name: symbol + " Corp", Price: p, Country: country}}, nil
}

var now = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T, prices map[string]float64) (*Service, store.Store, *fakeQuotes) {
	t.Helper()
	st, err := sqlstore.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	q := &fakeQuotes{prices: prices}
	return NewService(st, q, WithClock(func() time.Time { return now })), st, q
}

func TestRecompute(t *testing.T) {
	p := model.PortfolioPosition{BuyPrice: 150, Quantity: 10}
	Recompute(&p, 165.5)
	assert.Equal(t, 165.5, p.CurrentPrice)
	assert.Equal(t, 155.0, p.GainLoss)
	assert.Equal(t, 10.33, p.GainLossPercent)

	zero := model.PortfolioPosition{Quantity: 1}
	Recompute(&zero, 10)
	assert.Equal(t, 0.0, zero.GainLossPercent)
}

func TestRefresh_KeepsFailedPositions(t *testing.T) {
	svc, st, q := newService(t, map[string]float64{"AAPL": 190})
	ctx := t.Context()

	require.NoError(t, st.SaveUser(ctx, &model.User{UID: "u1", Country: "IN"}))
	aapl := &model.PortfolioPosition{UserID: "u1", Symbol: "AAPL", BuyPrice: 150, CurrentPrice: 150, Quantity: 10, BuyDate: now}
	gone := &model.PortfolioPosition{UserID: "u1", Symbol: "GONE", BuyPrice: 20, CurrentPrice: 22, Quantity: 5, GainLoss: 10, GainLossPercent: 10, BuyDate: now.Add(-time.Hour)}
	require.NoError(t, st.AddPosition(ctx, aapl))
	require.NoError(t, st.AddPosition(ctx, gone))

	got, err := svc.Refresh(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 190.0, got[0].CurrentPrice)
	assert.Equal(t, 400.0, got[0].GainLoss)
	assert.Equal(t, 26.67, got[0].GainLossPercent)
	assert.Equal(t, 22.0, got[1].CurrentPrice)
	assert.Equal(t, 10.0, got[1].GainLoss)
	assert.Equal(t, []string{"IN", "IN"}, q.countries)

	stored, err := st.ListPositions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 400.0, stored[0].GainLoss)
	assert.Equal(t, 22.0, stored[1].CurrentPrice)
}

func TestBuy(t *testing.T) {
	svc, _, _ := newService(t, map[string]float64{"MSFT": 410})
	ctx := t.Context()

	p, err := svc.Buy(ctx, "u1", " msft ", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, "MSFT", p.Symbol)
	assert.Equal(t, "MSFT Corp", p.Name)
	assert.Equal(t, 410.0, p.BuyPrice)
	assert.Equal(t, 0.0, p.GainLoss)
	assert.True(t, p.BuyDate.Equal(now))

	p, err = svc.Buy(ctx, "u1", "MSFT", 1, 400)
	require.NoError(t, err)
	assert.Equal(t, 10.0, p.GainLoss)

	_, err = svc.Buy(ctx, "u1", "NOPE", 1, 0)
	assert.ErrorIs(t, err, collector.ErrNoData)

	p, err = svc.Buy(ctx, "u1", "NOPE", 1, 12)
	require.NoError(t, err)
	assert.Equal(t, "NOPE", p.Name)

	_, err = svc.Buy(ctx, "u1", "MSFT", 0, 0)
	assert.Error(t, err)

	list, err := svc.Positions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	require.NoError(t, svc.Remove(ctx, "u1", list[0].ID))
	require.NoError(t, svc.Clear(ctx, "u1"))
	list, err = svc.Positions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWatchlist_SettleAll(t *testing.T) {
	svc, _, _ := newService(t, map[string]float64{"AAPL": 190, "NVDA": 900})
	ctx := t.Context()

	require.NoError(t, svc.Watch(ctx, "u1", "aapl", ""))
	require.NoError(t, svc.Watch(ctx, "u1", "AAPL", "Apple"))
	require.NoError(t, svc.Watch(ctx, "u1", "DEAD", "Dead Co"))
	require.NoError(t, svc.Watch(ctx, "u1", "NVDA", "NVIDIA"))

	items, err := svc.Watchlist(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 3)

	bySymbol := map[string]WatchItem{}
	for _, it := range items {
		bySymbol[it.Symbol] = it
	}
	require.NotNil(t, bySymbol["AAPL"].Quote)
	assert.Equal(t, 190.0, bySymbol["AAPL"].Quote.Price)
	assert.Equal(t, "US", bySymbol["AAPL"].Quote.Country)
	assert.Nil(t, bySymbol["DEAD"].Quote)
	assert.Equal(t, "Dead Co", bySymbol["DEAD"].Name)

	ok, err := svc.IsWatched(ctx, "u1", "nvda")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Unwatch(ctx, "u1", "nvda"))
	ok, err = svc.IsWatched(ctx, "u1", "NVDA")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, svc.Unwatch(ctx, "u1", "NVDA"), store.ErrNotFound)
	assert.Error(t, svc.Watch(ctx, "u1", " ", ""))
}

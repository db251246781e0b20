// Package storetest runs one behavioural suite against any store.Store.
package storetest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/model"
	"StockPulse/internal/store"
)

var day = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

// Run exercises s. Each subtest uses its own user id so a single store can
// be shared.
func Run(t *testing.T, s store.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, s) })
	t.Run("positions", func(t *testing.T) { testPositions(t, s) })
	t.Run("watchlist", func(t *testing.T) { testWatchlist(t, s) })
}

func testUsers(t *testing.T, s store.Store) {
	ctx := t.Context()

	_, err := s.GetUser(ctx, "nobody")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.ErrorIs(t, s.UpdateUserCountry(ctx, "nobody", "IN"), store.ErrNotFound)
	assert.ErrorIs(t, s.MarkOnboardingComplete(ctx, "nobody"), store.ErrNotFound)

	u := &model.User{UID: "u1", Email: "a@example.com", DisplayName: "Ada", CreatedAt: day}
	require.NoError(t, s.SaveUser(ctx, u))

	require.NoError(t, s.UpdateUserCountry(ctx, "u1", "IN"))
	require.NoError(t, s.MarkOnboardingComplete(ctx, "u1"))

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.DisplayName)
	assert.Equal(t, "IN", got.Country)
	assert.True(t, got.HasCompletedOnboarding)
	assert.True(t, got.CreatedAt.Equal(day))

	// Saving again updates the profile but keeps the creation time.
	again := &model.User{UID: "u1", Email: "b@example.com", DisplayName: "Ada L", Country: "IN", CreatedAt: day.Add(time.Hour), HasCompletedOnboarding: true}
	require.NoError(t, s.SaveUser(ctx, again))
	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got.Email)
	assert.True(t, got.CreatedAt.Equal(day))
}

func testPositions(t *testing.T, s store.Store) {
	ctx := t.Context()

	older := &model.PortfolioPosition{UserID: "p1", Symbol: "AAPL", Name: "Apple Inc.", BuyPrice: 150, CurrentPrice: 150, Quantity: 10, BuyDate: day.Add(-48 * time.Hour)}
	newer := &model.PortfolioPosition{UserID: "p1", Symbol: "MSFT", Name: "Microsoft", BuyPrice: 400, CurrentPrice: 400, Quantity: 2.5, BuyDate: day}
	other := &model.PortfolioPosition{UserID: "p2", Symbol: "TSLA", BuyPrice: 200, CurrentPrice: 200, Quantity: 1, BuyDate: day}
	for _, p := range []*model.PortfolioPosition{older, newer, other} {
		require.NoError(t, s.AddPosition(ctx, p))
		require.NotEmpty(t, p.ID)
	}

	list, err := s.ListPositions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "MSFT", list[0].Symbol)
	assert.Equal(t, 2.5, list[0].Quantity)
	assert.True(t, list[1].BuyDate.Equal(older.BuyDate))

	older.CurrentPrice = 180
	older.GainLoss = 300
	older.GainLossPercent = 20
	require.NoError(t, s.UpdatePosition(ctx, older))
	list, err = s.ListPositions(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 180.0, list[1].CurrentPrice)
	assert.Equal(t, 300.0, list[1].GainLoss)

	missing := *older
	missing.ID = "missing"
	assert.ErrorIs(t, s.UpdatePosition(ctx, &missing), store.ErrNotFound)
	assert.ErrorIs(t, s.RemovePosition(ctx, "p2", older.ID), store.ErrNotFound)

	require.NoError(t, s.RemovePosition(ctx, "p1", older.ID))
	list, err = s.ListPositions(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.ClearPortfolio(ctx, "p1"))
	list, err = s.ListPositions(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = s.ListPositions(ctx, "p2")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testWatchlist(t *testing.T, s store.Store) {
	ctx := t.Context()

	require.NoError(t, s.AddWatch(ctx, &model.WatchlistEntry{UserID: "w1", Symbol: "AAPL", Name: "Apple Inc.", AddedAt: day}))
	require.NoError(t, s.AddWatch(ctx, &model.WatchlistEntry{UserID: "w1", Symbol: "NVDA", Name: "NVIDIA", AddedAt: day.Add(time.Minute)}))
	require.NoError(t, s.AddWatch(ctx, &model.WatchlistEntry{UserID: "w2", Symbol: "AAPL", AddedAt: day}))

	err := s.AddWatch(ctx, &model.WatchlistEntry{UserID: "w1", Symbol: "AAPL", AddedAt: day})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	list, err := s.ListWatchlist(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "NVDA", list[0].Symbol)
	assert.NotEmpty(t, list[0].ID)

	require.NoError(t, s.RemoveWatch(ctx, "w1", "NVDA"))
	assert.ErrorIs(t, s.RemoveWatch(ctx, "w1", "NVDA"), store.ErrNotFound)

	list, err = s.ListWatchlist(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = s.ListWatchlist(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

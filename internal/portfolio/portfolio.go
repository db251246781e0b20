// Package portfolio manages simulated holdings and watchlists on top of the
// store and keeps their prices current through the quote collector.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"StockPulse/internal/collector"
	"StockPulse/internal/currency"
	"StockPulse/internal/logger"
	"StockPulse/internal/model"
	"StockPulse/internal/store"
)

// QuoteFetcher fetches one converted quote.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol, country string) (*collector.Result, error)
}

// WatchItem is a watchlist entry with its live quote. Quote is nil when the
// symbol could not be fetched.
type WatchItem struct {
	model.WatchlistEntry
	Quote *model.Quote `json:"quote,omitempty"`
}

type Service struct {
	store  store.Store
	quotes QuoteFetcher
	logger arbor.ILogger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(l arbor.ILogger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, quotes QuoteFetcher, opts ...Option) *Service {
	s := &Service{store: st, quotes: quotes, logger: logger.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// country is the user's stored country, or US.
func (s *Service) country(ctx context.Context, uid string) string {
	u, err := s.store.GetUser(ctx, uid)
	if err != nil || u.Country == "" {
		return "US"
	}
	return u.Country
}

// Recompute sets gain/loss from the current price.
func Recompute(p *model.PortfolioPosition, current float64) {
	p.CurrentPrice = current
	p.GainLoss = currency.RoundPlaces((current-p.BuyPrice)*p.Quantity, 2)
	if p.BuyPrice != 0 {
		p.GainLossPercent = currency.RoundPlaces((current-p.BuyPrice)/p.BuyPrice*100, 2)
	} else {
		p.GainLossPercent = 0
	}
}

// Positions lists the user's holdings without refreshing prices.
func (s *Service) Positions(ctx context.Context, uid string) ([]model.PortfolioPosition, error) {
	return s.store.ListPositions(ctx, uid)
}

// Refresh reprices every position and persists the ones that changed. A
// failed quote leaves that position as stored.
func (s *Service) Refresh(ctx context.Context, uid string) ([]model.PortfolioPosition, error) {
	positions, err := s.store.ListPositions(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("refresh portfolio: %w", err)
	}
	country := s.country(ctx, uid)

	var updated int
	for i := range positions {
		p := &positions[i]
		res, err := s.quotes.FetchQuote(ctx, p.Symbol, country)
		if err != nil {
			s.logger.Debug().Str("symbol", p.Symbol).Err(err).Msg("Keeping stored price")
			continue
		}
		next := *p
		Recompute(&next, res.Quote.Price)
		if err := s.store.UpdatePosition(ctx, &next); err != nil {
			s.logger.Warn().Str("symbol", p.Symbol).Err(err).Msg("Failed to persist refreshed position")
			continue
		}
		*p = next
		updated++
	}
	s.logger.Debug().Str("uid", uid).Int("updated", updated).Int("total", len(positions)).Msg("Portfolio refreshed")
	return positions, nil
}

// Buy records a new position at the current price when price is zero.
func (s *Service) Buy(ctx context.Context, uid, symbol string, quantity, price float64) (*model.PortfolioPosition, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || quantity <= 0 || price < 0 {
		return nil, fmt.Errorf("portfolio: invalid position %q qty %v price %v", symbol, quantity, price)
	}

	name := symbol
	res, err := s.quotes.FetchQuote(ctx, symbol, s.country(ctx, uid))
	switch {
	case err == nil:
		name = res.Quote.Name
		if price == 0 {
			price = res.Quote.Price
		}
	case price == 0:
		return nil, fmt.Errorf("portfolio: price for %s: %w", symbol, err)
	}

	p := &model.PortfolioPosition{
		UserID:   uid,
		Symbol:   symbol,
		Name:     name,
		BuyPrice: price,
		Quantity: quantity,
		BuyDate:  s.now().UTC(),
	}
	current := price
	if err == nil {
		current = res.Quote.Price
	}
	Recompute(p, current)
	if err := s.store.AddPosition(ctx, p); err != nil {
		return nil, fmt.Errorf("add position: %w", err)
	}
	return p, nil
}

func (s *Service) Remove(ctx context.Context, uid, id string) error {
	return s.store.RemovePosition(ctx, uid, id)
}

func (s *Service) Clear(ctx context.Context, uid string) error {
	return s.store.ClearPortfolio(ctx, uid)
}

// Watchlist loads the entries and quotes them concurrently. Every lookup
// finishes before it returns; failures leave Quote nil.
func (s *Service) Watchlist(ctx context.Context, uid string) ([]WatchItem, error) {
	entries, err := s.store.ListWatchlist(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	country := s.country(ctx, uid)

	items := make([]WatchItem, len(entries))
	var g errgroup.Group
	for i, e := range entries {
		items[i].WatchlistEntry = e
		g.Go(func() error {
			res, err := s.quotes.FetchQuote(ctx, e.Symbol, country)
			if err != nil {
				s.logger.Debug().Str("symbol", e.Symbol).Err(err).Msg("Watchlist quote failed")
				return nil
			}
			q := res.Quote
			items[i].Quote = &q
			return nil
		})
	}
	_ = g.Wait()
	return items, nil
}

// Watch adds symbol to the watchlist. Watching an already watched symbol
// is not an error.
func (s *Service) Watch(ctx context.Context, uid, symbol, name string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return errors.New("portfolio: empty symbol")
	}
	if name == "" {
		name = symbol
	}
	err := s.store.AddWatch(ctx, &model.WatchlistEntry{
		UserID:  uid,
		Symbol:  symbol,
		Name:    name,
		AddedAt: s.now().UTC(),
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	return err
}

func (s *Service) Unwatch(ctx context.Context, uid, symbol string) error {
	return s.store.RemoveWatch(ctx, uid, strings.ToUpper(strings.TrimSpace(symbol)))
}

func (s *Service) IsWatched(ctx context.Context, uid, symbol string) (bool, error) {
	entries, err := s.store.ListWatchlist(ctx, uid)
	if err != nil {
		return false, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, e := range entries {
		if e.Symbol == symbol {
			return true, nil
		}
	}
	return false, nil
}

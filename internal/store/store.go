// Package store defines the persistence collaborator: user profiles,
// simulated portfolio positions and watchlists, keyed by user id.
package store

import (
	"context"
	"errors"

	"StockPulse/internal/model"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is implemented by sqlstore and badgerstore.
type Store interface {
	SaveUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, uid string) (*model.User, error)
	UpdateUserCountry(ctx context.Context, uid, country string) error
	MarkOnboardingComplete(ctx context.Context, uid string) error

	// AddPosition assigns an id when p.ID is empty.
	AddPosition(ctx context.Context, p *model.PortfolioPosition) error
	// ListPositions returns the user's positions, newest buy first.
	ListPositions(ctx context.Context, uid string) ([]model.PortfolioPosition, error)
	UpdatePosition(ctx context.Context, p *model.PortfolioPosition) error
	RemovePosition(ctx context.Context, uid, id string) error
	ClearPortfolio(ctx context.Context, uid string) error

	// AddWatch returns ErrAlreadyExists when the symbol is already watched.
	AddWatch(ctx context.Context, w *model.WatchlistEntry) error
	// ListWatchlist returns the user's entries, newest first.
	ListWatchlist(ctx context.Context, uid string) ([]model.WatchlistEntry, error)
	RemoveWatch(ctx context.Context, uid, symbol string) error

	Close() error
}

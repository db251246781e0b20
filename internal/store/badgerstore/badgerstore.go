// Package badgerstore implements store.Store on an embedded Badger database
// through badgerhold.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"StockPulse/internal/logger"
	"StockPulse/internal/model"
	"StockPulse/internal/store"
)

type Store struct {
	db     *badgerhold.Store
	logger arbor.ILogger
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

func WithLogger(l arbor.ILogger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens or creates the database directory at dir.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{logger: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create badger dir: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s.db = db
	s.logger.Info().Str("path", dir).Msg("Badger store opened")
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, badgerhold.ErrNotFound) {
		return store.ErrNotFound
	}
	return err
}

func watchKey(uid, symbol string) string { return uid + "/" + symbol }

func (s *Store) SaveUser(_ context.Context, u *model.User) error {
	if u.UID == "" {
		return errors.New("badgerstore: user uid is required")
	}
	var existing model.User
	switch err := s.db.Get(u.UID, &existing); {
	case err == nil:
		u.CreatedAt = existing.CreatedAt
	case errors.Is(err, badgerhold.ErrNotFound):
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
	default:
		return fmt.Errorf("save user: %w", err)
	}
	if err := s.db.Upsert(u.UID, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, uid string) (*model.User, error) {
	var u model.User
	if err := s.db.Get(uid, &u); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) updateUser(uid string, fn func(*model.User)) error {
	var u model.User
	if err := s.db.Get(uid, &u); err != nil {
		return notFound(err)
	}
	fn(&u)
	return s.db.Update(uid, &u)
}

func (s *Store) UpdateUserCountry(_ context.Context, uid, country string) error {
	return s.updateUser(uid, func(u *model.User) { u.Country = country })
}

func (s *Store) MarkOnboardingComplete(_ context.Context, uid string) error {
	return s.updateUser(uid, func(u *model.User) { u.HasCompletedOnboarding = true })
}

func (s *Store) AddPosition(_ context.Context, p *model.PortfolioPosition) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.db.Insert(p.ID, p); err != nil {
		return fmt.Errorf("add position: %w", err)
	}
	return nil
}

func (s *Store) ListPositions(_ context.Context, uid string) ([]model.PortfolioPosition, error) {
	var out []model.PortfolioPosition
	if err := s.db.Find(&out, badgerhold.Where("UserID").Eq(uid)); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].BuyDate.Equal(out[j].BuyDate) {
			return out[i].BuyDate.After(out[j].BuyDate)
		}
		return out[i].ID < out[j].ID
	})
	if out == nil {
		out = []model.PortfolioPosition{}
	}
	return out, nil
}

func (s *Store) getPosition(uid, id string) (*model.PortfolioPosition, error) {
	var p model.PortfolioPosition
	if err := s.db.Get(id, &p); err != nil {
		return nil, notFound(err)
	}
	if p.UserID != uid {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpdatePosition(_ context.Context, p *model.PortfolioPosition) error {
	if _, err := s.getPosition(p.UserID, p.ID); err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if err := s.db.Update(p.ID, p); err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	return nil
}

func (s *Store) RemovePosition(_ context.Context, uid, id string) error {
	if _, err := s.getPosition(uid, id); err != nil {
		return fmt.Errorf("remove position: %w", err)
	}
	if err := s.db.Delete(id, &model.PortfolioPosition{}); err != nil {
		return fmt.Errorf("remove position: %w", err)
	}
	return nil
}

func (s *Store) ClearPortfolio(_ context.Context, uid string) error {
	if err := s.db.DeleteMatching(&model.PortfolioPosition{}, badgerhold.Where("UserID").Eq(uid)); err != nil {
		return fmt.Errorf("clear portfolio: %w", err)
	}
	return nil
}

func (s *Store) AddWatch(_ context.Context, w *model.WatchlistEntry) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.AddedAt.IsZero() {
		w.AddedAt = time.Now().UTC()
	}
	err := s.db.Insert(watchKey(w.UserID, w.Symbol), w)
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("add watch: %w", err)
	}
	return nil
}

func (s *Store) ListWatchlist(_ context.Context, uid string) ([]model.WatchlistEntry, error) {
	var out []model.WatchlistEntry
	if err := s.db.Find(&out, badgerhold.Where("UserID").Eq(uid)); err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].ID < out[j].ID
	})
	if out == nil {
		out = []model.WatchlistEntry{}
	}
	return out, nil
}

func (s *Store) RemoveWatch(_ context.Context, uid, symbol string) error {
	err := s.db.Delete(watchKey(uid, symbol), &model.WatchlistEntry{})
	if err != nil {
		return fmt.Errorf("remove watch: %w", notFound(err))
	}
	return nil
}

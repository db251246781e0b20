// Package sqlstore implements store.Store on SQLite (modernc) or Postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"StockPulse/internal/logger"
	"StockPulse/internal/model"
	"StockPulse/internal/store"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store is a store.Store over database/sql via sqlx.
type Store struct {
	db     *sqlx.DB
	logger arbor.ILogger
	mu     sync.Mutex
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

func WithLogger(l arbor.ILogger) Option {
	return func(s *Store) { s.logger = l }
}

// Open connects with driver "sqlite" or "postgres" and creates the schema.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	s := &Store{logger: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}

	switch driver {
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// WAL lets readers proceed while a write is in progress.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s.db = db
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.logger.Info().Str("driver", driver).Msg("SQL store opened")
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			uid                      TEXT PRIMARY KEY,
			email                    TEXT NOT NULL DEFAULT '',
			display_name             TEXT NOT NULL DEFAULT '',
			photo_url                TEXT NOT NULL DEFAULT '',
			country                  TEXT NOT NULL DEFAULT '',
			created_at               BIGINT NOT NULL,
			has_completed_onboarding INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			symbol            TEXT NOT NULL,
			name              TEXT NOT NULL DEFAULT '',
			buy_price         DOUBLE PRECISION NOT NULL,
			current_price     DOUBLE PRECISION NOT NULL,
			quantity          DOUBLE PRECISION NOT NULL,
			buy_date          BIGINT NOT NULL,
			gain_loss         DOUBLE PRECISION NOT NULL DEFAULT 0,
			gain_loss_percent DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_user ON positions(user_id, buy_date)`,
		`CREATE TABLE IF NOT EXISTS watchlist (
			id       TEXT PRIMARY KEY,
			user_id  TEXT NOT NULL,
			symbol   TEXT NOT NULL,
			name     TEXT NOT NULL DEFAULT '',
			added_at BIGINT NOT NULL,
			UNIQUE (user_id, symbol)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type userRow struct {
	UID       string `db:"uid"`
	Email     string `db:"email"`
	Name      string `db:"display_name"`
	PhotoURL  string `db:"photo_url"`
	Country   string `db:"country"`
	CreatedAt int64  `db:"created_at"`
	Onboarded int    `db:"has_completed_onboarding"`
}

func (r userRow) model() *model.User {
	return &model.User{
		UID:                    r.UID,
		Email:                  r.Email,
		DisplayName:            r.Name,
		PhotoURL:               r.PhotoURL,
		Country:                r.Country,
		CreatedAt:              time.UnixMilli(r.CreatedAt).UTC(),
		HasCompletedOnboarding: r.Onboarded != 0,
	}
}

type positionRow struct {
	ID              string  `db:"id"`
	UserID          string  `db:"user_id"`
	Symbol          string  `db:"symbol"`
	Name            string  `db:"name"`
	BuyPrice        float64 `db:"buy_price"`
	CurrentPrice    float64 `db:"current_price"`
	Quantity        float64 `db:"quantity"`
	BuyDate         int64   `db:"buy_date"`
	GainLoss        float64 `db:"gain_loss"`
	GainLossPercent float64 `db:"gain_loss_percent"`
}

func toPositionRow(p *model.PortfolioPosition) positionRow {
	return positionRow{
		ID: p.ID, UserID: p.UserID, Symbol: p.Symbol, Name: p.Name,
		BuyPrice: p.BuyPrice, CurrentPrice: p.CurrentPrice, Quantity: p.Quantity,
		BuyDate: p.BuyDate.UnixMilli(), GainLoss: p.GainLoss, GainLossPercent: p.GainLossPercent,
	}
}

func (r positionRow) model() model.PortfolioPosition {
	return model.PortfolioPosition{
		ID: r.ID, UserID: r.UserID, Symbol: r.Symbol, Name: r.Name,
		BuyPrice: r.BuyPrice, CurrentPrice: r.CurrentPrice, Quantity: r.Quantity,
		BuyDate: time.UnixMilli(r.BuyDate).UTC(), GainLoss: r.GainLoss, GainLossPercent: r.GainLossPercent,
	}
}

type watchRow struct {
	ID      string `db:"id"`
	UserID  string `db:"user_id"`
	Symbol  string `db:"symbol"`
	Name    string `db:"name"`
	AddedAt int64  `db:"added_at"`
}

// exec runs a write under the store mutex and reports ErrNotFound when no
// row was touched and mustAffect is set.
func (s *Store) exec(ctx context.Context, mustAffect bool, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	if !mustAffect {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveUser(ctx context.Context, u *model.User) error {
	if u.UID == "" {
		return errors.New("sqlstore: user uid is required")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	onboarded := 0
	if u.HasCompletedOnboarding {
		onboarded = 1
	}
	err := s.exec(ctx, false, `
		INSERT INTO users (uid, email, display_name, photo_url, country, created_at, has_completed_onboarding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uid) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			photo_url = excluded.photo_url,
			country = excluded.country,
			has_completed_onboarding = excluded.has_completed_onboarding`,
		u.UID, u.Email, u.DisplayName, u.PhotoURL, u.Country, u.CreatedAt.UnixMilli(), onboarded)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (*model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT * FROM users WHERE uid = ?`), uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.model(), nil
}

func (s *Store) UpdateUserCountry(ctx context.Context, uid, country string) error {
	if err := s.exec(ctx, true, `UPDATE users SET country = ? WHERE uid = ?`, country, uid); err != nil {
		return fmt.Errorf("update country: %w", err)
	}
	return nil
}

func (s *Store) MarkOnboardingComplete(ctx context.Context, uid string) error {
	if err := s.exec(ctx, true, `UPDATE users SET has_completed_onboarding = 1 WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("mark onboarding: %w", err)
	}
	return nil
}

func (s *Store) AddPosition(ctx context.Context, p *model.PortfolioPosition) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r := toPositionRow(p)
	err := s.exec(ctx, false, `
		INSERT INTO positions (id, user_id, symbol, name, buy_price, current_price, quantity, buy_date, gain_loss, gain_loss_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Symbol, r.Name, r.BuyPrice, r.CurrentPrice, r.Quantity, r.BuyDate, r.GainLoss, r.GainLossPercent)
	if err != nil {
		return fmt.Errorf("add position: %w", err)
	}
	return nil
}

func (s *Store) ListPositions(ctx context.Context, uid string) ([]model.PortfolioPosition, error) {
	var rows []positionRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT * FROM positions WHERE user_id = ? ORDER BY buy_date DESC, id`), uid)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	out := make([]model.PortfolioPosition, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *Store) UpdatePosition(ctx context.Context, p *model.PortfolioPosition) error {
	r := toPositionRow(p)
	err := s.exec(ctx, true, `
		UPDATE positions SET symbol = ?, name = ?, buy_price = ?, current_price = ?, quantity = ?,
			buy_date = ?, gain_loss = ?, gain_loss_percent = ?
		WHERE id = ? AND user_id = ?`,
		r.Symbol, r.Name, r.BuyPrice, r.CurrentPrice, r.Quantity, r.BuyDate, r.GainLoss, r.GainLossPercent, r.ID, r.UserID)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	return nil
}

func (s *Store) RemovePosition(ctx context.Context, uid, id string) error {
	if err := s.exec(ctx, true, `DELETE FROM positions WHERE id = ? AND user_id = ?`, id, uid); err != nil {
		return fmt.Errorf("remove position: %w", err)
	}
	return nil
}

func (s *Store) ClearPortfolio(ctx context.Context, uid string) error {
	if err := s.exec(ctx, false, `DELETE FROM positions WHERE user_id = ?`, uid); err != nil {
		return fmt.Errorf("clear portfolio: %w", err)
	}
	return nil
}

func (s *Store) AddWatch(ctx context.Context, w *model.WatchlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.GetContext(ctx, &n,
		s.db.Rebind(`SELECT COUNT(*) FROM watchlist WHERE user_id = ? AND symbol = ?`), w.UserID, w.Symbol); err != nil {
		return fmt.Errorf("add watch: %w", err)
	}
	if n > 0 {
		return store.ErrAlreadyExists
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.AddedAt.IsZero() {
		w.AddedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO watchlist (id, user_id, symbol, name, added_at) VALUES (?, ?, ?, ?, ?)`),
		w.ID, w.UserID, w.Symbol, w.Name, w.AddedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("add watch: %w", err)
	}
	return nil
}

func (s *Store) ListWatchlist(ctx context.Context, uid string) ([]model.WatchlistEntry, error) {
	var rows []watchRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT * FROM watchlist WHERE user_id = ? ORDER BY added_at DESC, id`), uid)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	out := make([]model.WatchlistEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.WatchlistEntry{
			ID: r.ID, UserID: r.UserID, Symbol: r.Symbol, Name: r.Name,
			AddedAt: time.UnixMilli(r.AddedAt).UTC(),
		})
	}
	return out, nil
}

func (s *Store) RemoveWatch(ctx context.Context, uid, symbol string) error {
	if err := s.exec(ctx, true, `DELETE FROM watchlist WHERE user_id = ? AND symbol = ?`, uid, symbol); err != nil {
		return fmt.Errorf("remove watch: %w", err)
	}
	return nil
}

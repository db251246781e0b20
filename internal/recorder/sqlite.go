package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"StockPulse/internal/logger"
	"StockPulse/internal/model"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db     *sqlx.DB
	mu     sync.Mutex
	logger arbor.ILogger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, l arbor.ILogger) (*SQLiteRecorder, error) {
	if l == nil {
		l = logger.Discard()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets external readers query while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)

	r := &SQLiteRecorder{db: db, logger: l}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	l.Info().Str("path", dbPath).Msg("History recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_snapshots (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			symbol          TEXT NOT NULL,
			price           REAL,
			change_percent  REAL,
			factors         TEXT,
			total_score     REAL,
			recommendation  TEXT,
			risk_level      TEXT,
			target_price    REAL,
			origin          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_symbol_ts ON analysis_snapshots(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS digest_runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			symbols    INTEGER,
			analyzed   INTEGER,
			headlines  INTEGER,
			sent       INTEGER,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_digest_ts ON digest_runs(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAnalysis(ctx context.Context, snap *AnalysisSnapshot) error {
	factors, err := json.Marshal(snap.Factors)
	if err != nil {
		return fmt.Errorf("encode factors: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.ExecContext(ctx, `INSERT INTO analysis_snapshots
		(timestamp, symbol, price, change_percent, factors, total_score,
		 recommendation, risk_level, target_price, origin)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		snap.Time.UnixMilli(), snap.Symbol, snap.Price, snap.ChangePercent, string(factors),
		snap.TotalScore, string(snap.Recommendation), string(snap.RiskLevel), snap.TargetPrice, snap.Origin,
	)
	if err != nil {
		return fmt.Errorf("record analysis %s: %w", snap.Symbol, err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordDigest(ctx context.Context, evt *DigestEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO digest_runs
		(timestamp, symbols, analyzed, headlines, sent, error)
		VALUES (?,?,?,?,?,?)`,
		evt.Time.UnixMilli(), evt.Symbols, evt.Analyzed, evt.Headlines, evt.Sent, evt.Error,
	)
	if err != nil {
		return fmt.Errorf("record digest: %w", err)
	}
	return nil
}

type snapshotRow struct {
	Timestamp      int64   `db:"timestamp"`
	Symbol         string  `db:"symbol"`
	Price          float64 `db:"price"`
	ChangePercent  float64 `db:"change_percent"`
	Factors        string  `db:"factors"`
	TotalScore     float64 `db:"total_score"`
	Recommendation string  `db:"recommendation"`
	RiskLevel      string  `db:"risk_level"`
	TargetPrice    float64 `db:"target_price"`
	Origin         string  `db:"origin"`
}

func (r *SQLiteRecorder) RecentAnalyses(ctx context.Context, symbol string, limit int) ([]AnalysisSnapshot, error) {
	var rows []snapshotRow
	err := r.db.SelectContext(ctx, &rows, `SELECT timestamp, symbol, price, change_percent, factors,
		total_score, recommendation, risk_level, target_price, origin
		FROM analysis_snapshots WHERE symbol = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses %s: %w", symbol, err)
	}

	out := make([]AnalysisSnapshot, 0, len(rows))
	for _, row := range rows {
		snap := AnalysisSnapshot{
			Time:           time.UnixMilli(row.Timestamp),
			Symbol:         row.Symbol,
			Price:          row.Price,
			ChangePercent:  row.ChangePercent,
			TotalScore:     row.TotalScore,
			Recommendation: model.Recommendation(row.Recommendation),
			RiskLevel:      model.RiskLevel(row.RiskLevel),
			TargetPrice:    row.TargetPrice,
			Origin:         row.Origin,
		}
		if row.Factors != "" {
			if err := json.Unmarshal([]byte(row.Factors), &snap.Factors); err != nil {
				r.logger.Warn().Str("symbol", symbol).Err(err).Msg("Corrupt factor column")
			}
		}
		out = append(out, snap)
	}
	return out, nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("Closing history recorder")
	return r.db.Close()
}

// Package sqlite keeps a local archive of daily bars. Live fetches are
// written through to it and offline scans read from it. Verdicts are never
// stored.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/model"
)

// Config configures the bar archive.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"

	// Location is the exchange time zone that decides which session a bar
	// belongs to. Nil means UTC.
	Location *time.Location
}

// Store is the bar archive. It holds at most one bar per symbol and session
// day: a later save for the same day replaces the earlier bar, so the moving
// live bar of a trading day never piles up as duplicates.
type Store struct {
	db  *sql.DB
	loc *time.Location
	log zerolog.Logger
}

// New opens (or creates) the archive with WAL mode and ensures the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; readers queue behind it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	s := &Store{db: db, loc: loc, log: logger.Component("sqlite")}
	s.log.Info().Str("path", cfg.DBPath).Msg("opened bar archive")
	return s, nil
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_bars (
			symbol  TEXT    NOT NULL,
			day     TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  INTEGER NOT NULL,
			PRIMARY KEY (symbol, day)
		);
	`)
	return err
}

// SessionDay is the session date of t in the archive's time zone.
func (s *Store) SessionDay(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

// Save upserts every bar of the series in a single transaction, keyed on the
// bar's session day.
func (s *Store) Save(ctx context.Context, series model.Series) error {
	if len(series.Bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO daily_bars (symbol, day, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range series.Bars {
		day := s.SessionDay(b.TS)
		if _, err := stmt.ExecContext(ctx, series.Symbol, day, b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s@%s: %w", series.Symbol, day, err)
		}
	}
	return tx.Commit()
}

// ReadSeries returns the most recent limit bars of symbol, oldest first.
// A non-positive limit returns every stored bar.
func (s *Store) ReadSeries(ctx context.Context, symbol string, limit int) (model.Series, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM daily_bars WHERE symbol = ?
			ORDER BY day DESC LIMIT ?
		) ORDER BY ts ASC
	`, symbol, limit)
	if err != nil {
		return model.Series{}, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	out := model.Series{Symbol: symbol}
	for rows.Next() {
		var b model.Bar
		var ts int64
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return model.Series{}, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.Unix(ts, 0).UTC()
		out.Bars = append(out.Bars, b)
	}
	return out, rows.Err()
}

// LastTimestamp returns the newest stored bar time of symbol, zero if none.
func (s *Store) LastTimestamp(ctx context.Context, symbol string) (time.Time, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(ts) FROM daily_bars WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// Symbols lists every archived symbol in lexical order.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM daily_bars ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

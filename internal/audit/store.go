package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id            TEXT PRIMARY KEY,
	request_id    TEXT NOT NULL,
	ts            INTEGER NOT NULL,
	stage         TEXT NOT NULL,
	attempt       INTEGER NOT NULL,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	estimated     INTEGER NOT NULL,
	cost_usd      REAL NOT NULL,
	success       INTEGER NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS calls_ts ON calls(ts);
CREATE INDEX IF NOT EXISTS calls_request ON calls(request_id);
`

// Store keeps every recorded model call in a SQLite database so spend can be
// totalled across runs.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database %s: %w", path, err)
	}
	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping usage database %s: %w", path, err)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create usage schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveLedger stores every entry of l. Entries already stored are skipped, so
// saving the same ledger twice is harmless.
func (s *Store) SaveLedger(ctx context.Context, l *Ledger) error {
	entries := l.Entries()
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO calls
		(id, request_id, ts, stage, attempt, provider, model, input_tokens, output_tokens,
		 estimated, cost_usd, success, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx,
			e.ID, e.RequestID, e.Timestamp.UnixMilli(), e.Stage, e.Attempt, e.Provider, e.Model,
			e.InputTokens, e.OutputTokens, boolInt(e.Estimated), e.CostUSD, boolInt(e.Success),
			e.Error, e.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to store call %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// ModelSpend aggregates calls to one model.
type ModelSpend struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Spend is the stored usage since a point in time.
type Spend struct {
	Since        time.Time    `json:"since"`
	Requests     int          `json:"requests"`
	Calls        int          `json:"calls"`
	Failed       int          `json:"failed"`
	InputTokens  int          `json:"input_tokens"`
	OutputTokens int          `json:"output_tokens"`
	TotalUSD     float64      `json:"total_usd"`
	Models       []ModelSpend `json:"models"`
}

// Spend totals the calls recorded at or after since, most expensive model
// first.
func (s *Store) Spend(ctx context.Context, since time.Time) (*Spend, error) {
	sp := &Spend{Since: since}
	cutoff := since.UnixMilli()

	err := s.db.QueryRowContext(ctx, `SELECT
			COUNT(DISTINCT request_id), COUNT(*), COALESCE(SUM(1 - success), 0),
			COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM calls WHERE ts >= ?`, cutoff).
		Scan(&sp.Requests, &sp.Calls, &sp.Failed, &sp.InputTokens, &sp.OutputTokens, &sp.TotalUSD)
	if err != nil {
		return nil, fmt.Errorf("failed to total usage: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT provider, model, COUNT(*),
			SUM(input_tokens), SUM(output_tokens), SUM(cost_usd)
		FROM calls WHERE ts >= ?
		GROUP BY provider, model
		ORDER BY SUM(cost_usd) DESC, model`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to group usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m ModelSpend
		if err := rows.Scan(&m.Provider, &m.Model, &m.Calls, &m.InputTokens, &m.OutputTokens, &m.CostUSD); err != nil {
			return nil, err
		}
		sp.Models = append(sp.Models, m)
	}
	return sp, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

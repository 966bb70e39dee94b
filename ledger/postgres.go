package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

var _ Store = &PostgresStore{}

// Schema is the table layout PostgresStore expects. EnsureSchema creates it when missing.
const Schema = `
CREATE TABLE IF NOT EXISTS session_entries (
  id              BIGSERIAL        PRIMARY KEY,
  session_id      TEXT             NOT NULL,
  recorded_at     TIMESTAMPTZ      NOT NULL,
  provider        TEXT             NOT NULL,
  model           TEXT             NOT NULL,
  prompt          TEXT             NOT NULL,
  response        TEXT             NOT NULL,
  failed          BOOLEAN          NOT NULL,
  carbon_grams    DOUBLE PRECISION NOT NULL,
  elapsed_seconds DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS session_entries_session_id_idx ON session_entries (session_id, id);
`

// PostgresStore is a Store backed by a PostgreSQL table. Insertion order is the order of the
// BIGSERIAL id, so several API replicas can share one database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing *sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens and pings a pgx connection pool for dsn.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the session_entries table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("postgres store: ensure schema: %w", err)
	}
	return nil
}

// Append inserts e for sessionID.
func (s *PostgresStore) Append(ctx context.Context, sessionID string, e Entry) error {
	const insertStmt = `
INSERT INTO session_entries (
  session_id, recorded_at, provider, model, prompt, response, failed, carbon_grams, elapsed_seconds
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, insertStmt,
		sessionID,
		e.RecordedAt,
		e.Provider,
		e.Model,
		e.Prompt,
		e.Response,
		e.Failed,
		e.CarbonGrams,
		e.ElapsedSeconds,
	)
	if err != nil {
		return fmt.Errorf("postgres store: insert entry: %w", err)
	}
	return nil
}

// Load returns the entries of sessionID in insertion order.
func (s *PostgresStore) Load(ctx context.Context, sessionID string) ([]Entry, error) {
	const q = `
SELECT recorded_at, provider, model, prompt, response, failed, carbon_grams, elapsed_seconds
FROM session_entries
WHERE session_id = $1
ORDER BY id ASC
`
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.RecordedAt,
			&e.Provider,
			&e.Model,
			&e.Prompt,
			&e.Response,
			&e.Failed,
			&e.CarbonGrams,
			&e.ElapsedSeconds,
		); err != nil {
			return nil, fmt.Errorf("postgres store: scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: rows error: %w", err)
	}
	return out, nil
}

// Clear deletes every entry of sessionID.
func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	const deleteStmt = `DELETE FROM session_entries WHERE session_id = $1`
	if _, err := s.db.ExecContext(ctx, deleteStmt, sessionID); err != nil {
		return fmt.Errorf("postgres store: delete entries: %w", err)
	}
	return nil
}

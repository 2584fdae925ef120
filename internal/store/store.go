// File: internal/store/store.go

// Package store persists automation session history in PostgreSQL.
// Each completed session is written transactionally together with its
// per-task fire counts, so later runs can be compared and audited.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TaskRecord is one scheduled task's outcome within a session.
type TaskRecord struct {
	Name     string
	Interval time.Duration
	Fired    int
}

// SessionRecord is the persisted form of a finished automation session.
type SessionRecord struct {
	ID         string
	Scenario   string
	State      string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Tasks      []TaskRecord
}

// Store provides the PostgreSQL-backed session history.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id          UUID PRIMARY KEY,
    scenario    TEXT NOT NULL,
    state       TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS session_tasks (
    session_id  UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    interval_ms BIGINT NOT NULL,
    fired       INTEGER NOT NULL,
    PRIMARY KEY (session_id, name)
);`

// Migrate creates the history tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SaveSession writes the session row and its task stats in one
// transaction.
func (s *Store) SaveSession(ctx context.Context, rec SessionRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (id, scenario, state, error, started_at, finished_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Scenario, rec.State, rec.Error,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if len(rec.Tasks) > 0 {
		rows := make([][]interface{}, len(rec.Tasks))
		for i, t := range rec.Tasks {
			rows[i] = []interface{}{rec.ID, t.Name, t.Interval.Milliseconds(), t.Fired}
		}
		copied, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"session_tasks"},
			[]string{"session_id", "name", "interval_ms", "fired"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy task stats: %w", err)
		}
		if int(copied) != len(rec.Tasks) {
			return fmt.Errorf("mismatch in copied task stats: expected %d, got %d", len(rec.Tasks), copied)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecentSessions lists the newest sessions, most recent first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, scenario, state, error, started_at, finished_at
         FROM sessions
         ORDER BY started_at DESC
         LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		if err := rows.Scan(&r.ID, &r.Scenario, &r.State, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store is the PostgreSQL-backed persistence layer for assignments,
// submission events, developers and the workspace pool. All cross-instance
// invariants live here as schema constraints, not application checks.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New creates a Store over an existing connection pool.
func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// Connect dials Postgres and returns a Store.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates tables and the constraint indexes if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS developers (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS assignments (
			id                TEXT PRIMARY KEY,
			task_id           TEXT NOT NULL,
			developer_id      TEXT NOT NULL REFERENCES developers(id),
			status            TEXT NOT NULL DEFAULT 'assigned',
			start_date        TIMESTAMPTZ NOT NULL,
			due_date          TIMESTAMPTZ NOT NULL,
			completed_at      TIMESTAMPTZ,
			submission_ref    TEXT NOT NULL DEFAULT '',
			submission_status TEXT NOT NULL DEFAULT '',
			submitted_at      TIMESTAMPTZ,
			score             INTEGER,
			verdict           TEXT NOT NULL DEFAULT '',
			feedback          TEXT NOT NULL DEFAULT '',
			graded_at         TIMESTAMPTZ,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// One active assignment per (task, developer) pair, enforced by the
		// database so the invariant holds across service instances.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_assignments_active
			ON assignments(task_id, developer_id) WHERE status <> 'completed'`,
		`CREATE TABLE IF NOT EXISTS assignment_notes (
			id            TEXT PRIMARY KEY,
			assignment_id TEXT NOT NULL REFERENCES assignments(id),
			body          TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_assignment
			ON assignment_notes(assignment_id, created_at)`,
		// external_event_id is the primary key: concurrent duplicate webhook
		// deliveries serialize through this constraint.
		`CREATE TABLE IF NOT EXISTS submission_events (
			external_event_id TEXT PRIMARY KEY,
			correlation       TEXT NOT NULL DEFAULT '',
			assignment_id     TEXT NOT NULL DEFAULT '',
			repository        TEXT NOT NULL DEFAULT '',
			pr_number         INTEGER NOT NULL DEFAULT 0,
			action            TEXT NOT NULL DEFAULT '',
			status            TEXT NOT NULL,
			signature_valid   BOOLEAN NOT NULL DEFAULT TRUE,
			received_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS workspace_resources (
			id                   TEXT PRIMARY KEY,
			host                 TEXT NOT NULL DEFAULT '',
			username             TEXT NOT NULL DEFAULT '',
			credential_ref       TEXT NOT NULL DEFAULT '',
			holder_developer_id  TEXT,
			holder_assignment_id TEXT,
			leased_at            TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS workspace_leases (
			id            TEXT PRIMARY KEY,
			resource_id   TEXT NOT NULL REFERENCES workspace_resources(id),
			developer_id  TEXT NOT NULL,
			assignment_id TEXT NOT NULL DEFAULT '',
			leased_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			released_at   TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_leases_active
			ON workspace_leases(resource_id) WHERE released_at IS NULL`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation, optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

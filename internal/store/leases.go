package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/apperr"
	"github.com/clintrovert/praxis/pkg/types"
)

// SyncRoster upserts the configured workspace identities into the roster
// table. Identities are only ever added or updated; rows are never removed
// here so a shrinking config can't orphan a live lease.
func (s *Store) SyncRoster(ctx context.Context, resources []types.WorkspaceResource) error {
	for _, r := range resources {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO workspace_resources (id, host, username, credential_ref)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET host = EXCLUDED.host, username = EXCLUDED.username, credential_ref = EXCLUDED.credential_ref`,
			r.ID, r.Host, r.Username, r.CredentialRef)
		if err != nil {
			return fmt.Errorf("sync roster entry %s: %w", r.ID, err)
		}
	}
	return nil
}

// AcquireResource atomically claims a free workspace resource for the
// developer. The row is selected FOR UPDATE SKIP LOCKED inside a
// transaction, so two concurrent callers can never claim the same free
// identity even across service instances. Returns ok=false when the pool is
// exhausted.
func (s *Store) AcquireResource(ctx context.Context, developerID, assignmentID string) (types.WorkspaceResource, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.WorkspaceResource{}, false, fmt.Errorf("begin acquire: %w", err)
	}
	defer tx.Rollback(ctx)

	var r types.WorkspaceResource
	err = tx.QueryRow(ctx, `
		SELECT id, host, username, credential_ref
		FROM workspace_resources
		WHERE holder_developer_id IS NULL
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT 1`).
		Scan(&r.ID, &r.Host, &r.Username, &r.CredentialRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.WorkspaceResource{}, false, nil
		}
		return types.WorkspaceResource{}, false, fmt.Errorf("select free resource: %w", err)
	}

	now := time.Now().Truncate(time.Microsecond)
	_, err = tx.Exec(ctx, `
		UPDATE workspace_resources
		SET holder_developer_id = $2, holder_assignment_id = $3, leased_at = $4
		WHERE id = $1`,
		r.ID, developerID, assignmentID, now)
	if err != nil {
		return types.WorkspaceResource{}, false, fmt.Errorf("claim resource %s: %w", r.ID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO workspace_leases (id, resource_id, developer_id, assignment_id, leased_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.Must(uuid.NewV7()).String(), r.ID, developerID, assignmentID, now)
	if err != nil {
		return types.WorkspaceResource{}, false, fmt.Errorf("log lease for %s: %w", r.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.WorkspaceResource{}, false, fmt.Errorf("commit acquire: %w", err)
	}

	s.logger.Info("leased workspace resource",
		zap.String("resource_id", r.ID),
		zap.String("developer_id", developerID),
	)
	return r, true, nil
}

// ReleaseResource frees a workspace resource and closes its lease-log row.
// Releasing an already-free resource is a no-op.
func (s *Store) ReleaseResource(ctx context.Context, resourceID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin release: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE workspace_resources
		SET holder_developer_id = NULL, holder_assignment_id = NULL, leased_at = NULL
		WHERE id = $1 AND holder_developer_id IS NOT NULL`, resourceID)
	if err != nil {
		return fmt.Errorf("release resource %s: %w", resourceID, err)
	}
	if tag.RowsAffected() == 0 {
		// Already free; idempotent.
		return nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE workspace_leases SET released_at = NOW()
		WHERE resource_id = $1 AND released_at IS NULL`, resourceID)
	if err != nil {
		return fmt.Errorf("close lease for %s: %w", resourceID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit release: %w", err)
	}

	s.logger.Info("released workspace resource", zap.String("resource_id", resourceID))
	return nil
}

// ResourceHolder returns a resource's connection info and the developer
// currently holding it (empty when free).
func (s *Store) ResourceHolder(ctx context.Context, resourceID string) (types.WorkspaceResource, string, error) {
	var (
		r      types.WorkspaceResource
		holder *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, host, username, credential_ref, holder_developer_id
		FROM workspace_resources WHERE id = $1`, resourceID).
		Scan(&r.ID, &r.Host, &r.Username, &r.CredentialRef, &holder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.WorkspaceResource{}, "", apperr.Newf(apperr.NotFound, "resource %s not found", resourceID)
		}
		return types.WorkspaceResource{}, "", fmt.Errorf("get resource %s: %w", resourceID, err)
	}
	if holder == nil {
		return r, "", nil
	}
	return r, *holder, nil
}

// LeasedCount returns the number of resources currently held.
func (s *Store) LeasedCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workspace_resources WHERE holder_developer_id IS NOT NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count leased resources: %w", err)
	}
	return n, nil
}

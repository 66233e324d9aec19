// Package pool manages the fixed set of workspace identities (VPN/RDP
// slots) leased to developers for the duration of an assignment.
package pool

import (
	"context"

	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/apperr"
	"github.com/clintrovert/praxis/pkg/types"
)

// Pool issues and returns workspace leases. Acquire never blocks waiting
// for a slot: an exhausted pool is a distinguishable error and the caller
// decides whether to retry later.
type Pool interface {
	Acquire(ctx context.Context, developerID, assignmentID string) (types.ConnectionInfo, error)
	Release(ctx context.Context, resourceID string) error
	Describe(ctx context.Context, resourceID, developerID string) (types.ConnectionInfo, error)
	InUse(ctx context.Context) (int, error)
}

// LeaseStore is the persistence port backing StorePool. The store serializes
// concurrent claims, so the pool itself holds no mutable state and is safe
// across horizontally scaled instances.
type LeaseStore interface {
	SyncRoster(ctx context.Context, resources []types.WorkspaceResource) error
	AcquireResource(ctx context.Context, developerID, assignmentID string) (types.WorkspaceResource, bool, error)
	ReleaseResource(ctx context.Context, resourceID string) error
	ResourceHolder(ctx context.Context, resourceID string) (types.WorkspaceResource, string, error)
	LeasedCount(ctx context.Context) (int, error)
}

// StorePool is the store-backed pool. The free/in-use state lives in the
// shared store under conditional updates, never in process memory.
type StorePool struct {
	store  LeaseStore
	logger *zap.Logger
}

// NewStorePool creates a pool over the shared store and syncs the configured
// roster into it.
func NewStorePool(ctx context.Context, store LeaseStore, roster []types.WorkspaceResource, logger *zap.Logger) (*StorePool, error) {
	if err := store.SyncRoster(ctx, roster); err != nil {
		return nil, err
	}
	logger.Info("workspace roster synced", zap.Int("size", len(roster)))
	return &StorePool{store: store, logger: logger}, nil
}

// Acquire leases a free workspace resource to the developer.
func (p *StorePool) Acquire(ctx context.Context, developerID, assignmentID string) (types.ConnectionInfo, error) {
	r, ok, err := p.store.AcquireResource(ctx, developerID, assignmentID)
	if err != nil {
		return types.ConnectionInfo{}, err
	}
	if !ok {
		return types.ConnectionInfo{}, apperr.Newf(apperr.Exhausted, "no free workspace resource")
	}
	return connectionInfo(r), nil
}

// Release frees a resource. Releasing an already-free resource is a no-op.
func (p *StorePool) Release(ctx context.Context, resourceID string) error {
	return p.store.ReleaseResource(ctx, resourceID)
}

// Describe returns connection parameters for a leased resource. Callers may
// only describe a resource they currently hold.
func (p *StorePool) Describe(ctx context.Context, resourceID, developerID string) (types.ConnectionInfo, error) {
	r, holder, err := p.store.ResourceHolder(ctx, resourceID)
	if err != nil {
		return types.ConnectionInfo{}, err
	}
	if holder == "" || holder != developerID {
		return types.ConnectionInfo{}, apperr.Newf(apperr.Unauthorized, "caller does not hold resource %s", resourceID)
	}
	return connectionInfo(r), nil
}

// InUse returns the number of outstanding leases.
func (p *StorePool) InUse(ctx context.Context) (int, error) {
	return p.store.LeasedCount(ctx)
}

func connectionInfo(r types.WorkspaceResource) types.ConnectionInfo {
	return types.ConnectionInfo{
		ResourceID:    r.ID,
		Host:          r.Host,
		Username:      r.Username,
		CredentialRef: r.CredentialRef,
	}
}

package pool

import (
	"context"
	"sync"

	"github.com/clintrovert/praxis/pkg/apperr"
	"github.com/clintrovert/praxis/pkg/types"
)

// MemoryPool keeps pool state in process memory behind a single mutex. This
// is only correct when exactly one orchestrator instance runs; multi-instance
// deployments must use StorePool so the mutual-exclusion invariant lives in
// the shared store.
type MemoryPool struct {
	mu        sync.Mutex
	resources []types.WorkspaceResource
	holders   map[string]string
}

// NewMemoryPool creates an in-process pool over the given roster.
func NewMemoryPool(roster []types.WorkspaceResource) *MemoryPool {
	resources := make([]types.WorkspaceResource, len(roster))
	copy(resources, roster)
	return &MemoryPool{
		resources: resources,
		holders:   make(map[string]string),
	}
}

// Acquire leases the first free resource. Exhaustion is an error, never a
// block.
func (p *MemoryPool) Acquire(_ context.Context, developerID, _ string) (types.ConnectionInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range p.resources {
		if _, held := p.holders[r.ID]; !held {
			p.holders[r.ID] = developerID
			return connectionInfo(r), nil
		}
	}
	return types.ConnectionInfo{}, apperr.Newf(apperr.Exhausted, "no free workspace resource")
}

// Release frees a resource; releasing a free resource is a no-op.
func (p *MemoryPool) Release(_ context.Context, resourceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.holders, resourceID)
	return nil
}

// Describe returns connection info for a resource the caller holds.
func (p *MemoryPool) Describe(_ context.Context, resourceID, developerID string) (types.ConnectionInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range p.resources {
		if r.ID != resourceID {
			continue
		}
		if p.holders[resourceID] != developerID || developerID == "" {
			return types.ConnectionInfo{}, apperr.Newf(apperr.Unauthorized, "caller does not hold resource %s", resourceID)
		}
		return connectionInfo(r), nil
	}
	return types.ConnectionInfo{}, apperr.Newf(apperr.NotFound, "resource %s not found", resourceID)
}

// InUse returns the number of outstanding leases.
func (p *MemoryPool) InUse(_ context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.holders), nil
}

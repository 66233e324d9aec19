package pool

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/apperr"
	"github.com/clintrovert/praxis/pkg/types"
)

func testRoster(n int) []types.WorkspaceResource {
	roster := make([]types.WorkspaceResource, 0, n)
	ids := []string{"vpn-01", "vpn-02", "vpn-03", "vpn-04"}
	for i := 0; i < n; i++ {
		roster = append(roster, types.WorkspaceResource{
			ID:            ids[i],
			Host:          "gw.example.com",
			Username:      "svc-" + ids[i],
			CredentialRef: "vault://workspaces/" + ids[i],
		})
	}
	return roster
}

func TestMemoryPoolAcquireExhaustion(t *testing.T) {
	p := NewMemoryPool(testRoster(2))
	ctx := context.Background()

	first, err := p.Acquire(ctx, "dev-a", "asg-1")
	require.NoError(t, err)
	second, err := p.Acquire(ctx, "dev-b", "asg-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ResourceID, second.ResourceID)

	_, err = p.Acquire(ctx, "dev-c", "asg-3")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.Exhausted))

	n, err := p.InUse(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryPoolConcurrentAcquire(t *testing.T) {
	p := NewMemoryPool(testRoster(2))
	ctx := context.Background()

	const callers = 8
	results := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			info, err := p.Acquire(ctx, "dev", "asg")
			if err != nil {
				results <- ""
				return
			}
			results <- info.ResourceID
		}(i)
	}
	wg.Wait()
	close(results)

	granted := make(map[string]int)
	for id := range results {
		if id != "" {
			granted[id]++
		}
	}
	assert.Len(t, granted, 2, "pool of two must grant exactly two leases")
	for id, count := range granted {
		assert.Equal(t, 1, count, "resource %s leased more than once", id)
	}
}

func TestMemoryPoolReleaseAndReuse(t *testing.T) {
	p := NewMemoryPool(testRoster(1))
	ctx := context.Background()

	info, err := p.Acquire(ctx, "dev-a", "asg-1")
	require.NoError(t, err)

	require.NoError(t, p.Release(ctx, info.ResourceID))
	// Releasing an already-free resource is a no-op.
	require.NoError(t, p.Release(ctx, info.ResourceID))

	reused, err := p.Acquire(ctx, "dev-b", "asg-2")
	require.NoError(t, err)
	assert.Equal(t, info.ResourceID, reused.ResourceID)
}

func TestMemoryPoolDescribeAuthorization(t *testing.T) {
	p := NewMemoryPool(testRoster(1))
	ctx := context.Background()

	info, err := p.Acquire(ctx, "dev-a", "asg-1")
	require.NoError(t, err)

	got, err := p.Describe(ctx, info.ResourceID, "dev-a")
	require.NoError(t, err)
	assert.Equal(t, "gw.example.com", got.Host)
	assert.Equal(t, info.CredentialRef, got.CredentialRef)

	_, err = p.Describe(ctx, info.ResourceID, "dev-b")
	assert.True(t, apperr.IsCode(err, apperr.Unauthorized))

	_, err = p.Describe(ctx, info.ResourceID, "")
	assert.True(t, apperr.IsCode(err, apperr.Unauthorized))

	_, err = p.Describe(ctx, "vpn-99", "dev-a")
	assert.True(t, apperr.IsCode(err, apperr.NotFound))
}

type stubLeaseStore struct {
	mu      sync.Mutex
	roster  []types.WorkspaceResource
	holders map[string]string
	synced  bool
}

func newStubLeaseStore(roster []types.WorkspaceResource) *stubLeaseStore {
	return &stubLeaseStore{roster: roster, holders: make(map[string]string)}
}

func (s *stubLeaseStore) SyncRoster(_ context.Context, _ []types.WorkspaceResource) error {
	s.synced = true
	return nil
}

func (s *stubLeaseStore) AcquireResource(_ context.Context, developerID, _ string) (types.WorkspaceResource, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roster {
		if _, held := s.holders[r.ID]; !held {
			s.holders[r.ID] = developerID
			return r, true, nil
		}
	}
	return types.WorkspaceResource{}, false, nil
}

func (s *stubLeaseStore) ReleaseResource(_ context.Context, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.holders, resourceID)
	return nil
}

func (s *stubLeaseStore) ResourceHolder(_ context.Context, resourceID string) (types.WorkspaceResource, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roster {
		if r.ID == resourceID {
			return r, s.holders[resourceID], nil
		}
	}
	return types.WorkspaceResource{}, "", apperr.Newf(apperr.NotFound, "resource %s not found", resourceID)
}

func (s *stubLeaseStore) LeasedCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.holders), nil
}

func TestStorePoolDelegatesToStore(t *testing.T) {
	store := newStubLeaseStore(testRoster(1))
	p, err := NewStorePool(context.Background(), store, testRoster(1), zap.NewNop())
	require.NoError(t, err)
	assert.True(t, store.synced)

	ctx := context.Background()
	info, err := p.Acquire(ctx, "dev-a", "asg-1")
	require.NoError(t, err)
	assert.Equal(t, "vpn-01", info.ResourceID)

	_, err = p.Acquire(ctx, "dev-b", "asg-2")
	assert.True(t, apperr.IsCode(err, apperr.Exhausted))

	_, err = p.Describe(ctx, "vpn-01", "dev-b")
	assert.True(t, apperr.IsCode(err, apperr.Unauthorized))

	require.NoError(t, p.Release(ctx, "vpn-01"))
	n, err := p.InUse(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

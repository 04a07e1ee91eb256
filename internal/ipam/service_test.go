package ipam

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/netadmind/netadmind/internal/shared"
)

type memRepo struct {
	pools       map[uuid.UUID]Pool
	allocations map[uuid.UUID]Allocation
	countCalls  int
}

func newMemRepo() *memRepo {
	return &memRepo{
		pools:       map[uuid.UUID]Pool{},
		allocations: map[uuid.UUID]Allocation{},
	}
}

func (r *memRepo) ListPools(ctx context.Context, search string) ([]Pool, error) {
	out := []Pool{}
	for _, p := range r.pools {
		if search == "" || strings.Contains(p.Name, search) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepo) GetPool(ctx context.Context, id uuid.UUID) (Pool, error) {
	p, ok := r.pools[id]
	if !ok {
		return Pool{}, fmt.Errorf("%w: pool %s", shared.ErrNotFound, id)
	}
	return p, nil
}

func (r *memRepo) CreatePool(ctx context.Context, pool Pool) error {
	for _, p := range r.pools {
		if p.Name == pool.Name {
			return fmt.Errorf("%w: pool %s", shared.ErrDuplicate, pool.Name)
		}
	}
	r.pools[pool.ID] = pool
	return nil
}

func (r *memRepo) DeletePool(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.pools[id]; !ok {
		return fmt.Errorf("%w: pool %s", shared.ErrNotFound, id)
	}
	delete(r.pools, id)
	for aid, a := range r.allocations {
		if a.PoolID == id {
			delete(r.allocations, aid)
		}
	}
	return nil
}

func (r *memRepo) ListAllocations(ctx context.Context, poolID uuid.UUID) ([]Allocation, error) {
	out := []Allocation{}
	for _, a := range r.allocations {
		if a.PoolID == poolID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) GetAllocation(ctx context.Context, id uuid.UUID) (Allocation, error) {
	a, ok := r.allocations[id]
	if !ok {
		return Allocation{}, fmt.Errorf("%w: allocation %s", shared.ErrNotFound, id)
	}
	return a, nil
}

func (r *memRepo) CreateAllocation(ctx context.Context, alloc Allocation) error {
	for _, a := range r.allocations {
		if a.PoolID == alloc.PoolID && a.IPAddress == alloc.IPAddress {
			return fmt.Errorf("%w: %s", shared.ErrDuplicate, alloc.IPAddress)
		}
	}
	r.allocations[alloc.ID] = alloc
	return nil
}

func (r *memRepo) UpdateAllocation(ctx context.Context, alloc Allocation) error {
	if _, ok := r.allocations[alloc.ID]; !ok {
		return fmt.Errorf("%w: allocation %s", shared.ErrNotFound, alloc.ID)
	}
	r.allocations[alloc.ID] = alloc
	return nil
}

func (r *memRepo) DeleteAllocation(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.allocations[id]; !ok {
		return fmt.Errorf("%w: allocation %s", shared.ErrNotFound, id)
	}
	delete(r.allocations, id)
	return nil
}

func (r *memRepo) CountAllocations(ctx context.Context, poolID uuid.UUID) (int, error) {
	r.countCalls++
	n := 0
	for _, a := range r.allocations {
		if a.PoolID == poolID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CountByType(ctx context.Context, t AllocationType) (int, error) {
	n := 0
	for _, a := range r.allocations {
		if a.Type == t {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) SearchAllocations(ctx context.Context, query string, poolID *uuid.UUID, limit int) ([]Allocation, error) {
	out := []Allocation{}
	for _, a := range r.allocations {
		if poolID != nil && a.PoolID != *poolID {
			continue
		}
		if strings.Contains(a.IPAddress, query) || strings.Contains(a.Hostname, query) || strings.Contains(a.MACAddress, query) {
			out = append(out, a)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) AllAllocations(ctx context.Context) ([]Allocation, error) {
	out := make([]Allocation, 0, len(r.allocations))
	for _, a := range r.allocations {
		out = append(out, a)
	}
	return out, nil
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	return NewService(repo, nil, nil, slog.Default())
}

func createPool(t *testing.T, svc *Service, name, network string) PoolWithStats {
	t.Helper()
	pool, err := svc.CreatePool(context.Background(), CreatePoolParams{Name: name, Network: network}, "admin")
	require.NoError(t, err)
	return pool
}

func TestCreatePool(t *testing.T) {
	svc := newTestService(t, newMemRepo())

	pool := createPool(t, svc, "office", "192.168.1.0/24")
	require.Equal(t, "192.168.1.0/24", pool.Network)
	require.Equal(t, 254, pool.TotalIPs)
	require.Zero(t, pool.UsedIPs)
}

func TestCreatePoolValidation(t *testing.T) {
	svc := newTestService(t, newMemRepo())
	ctx := context.Background()

	_, err := svc.CreatePool(ctx, CreatePoolParams{Name: "x", Network: "junk"}, "admin")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreatePool(ctx, CreatePoolParams{Name: "x", Network: "10.0.0.0/24", Gateway: "10.0.1.1"}, "admin")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreatePool(ctx, CreatePoolParams{Name: "x", Network: "10.0.0.0/24", DNSServers: []string{"bad"}}, "admin")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreatePoolDuplicateName(t *testing.T) {
	svc := newTestService(t, newMemRepo())
	createPool(t, svc, "office", "192.168.1.0/24")

	_, err := svc.CreatePool(context.Background(), CreatePoolParams{Name: "office", Network: "10.0.0.0/24"}, "admin")
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestCreateAllocation(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)
	pool := createPool(t, svc, "office", "192.168.1.0/24")

	alloc, err := svc.CreateAllocation(context.Background(), CreateAllocationParams{
		PoolID:     pool.ID,
		IPAddress:  "192.168.1.10",
		Hostname:   "web01",
		MACAddress: "AA-BB-CC-00-11-22",
	}, "operator")
	require.NoError(t, err)
	require.Equal(t, AllocationStatic, alloc.Type)
	require.Equal(t, "aa:bb:cc:00:11:22", alloc.MACAddress)
	require.Equal(t, "operator", alloc.AllocatedBy)

	got, err := svc.GetPool(context.Background(), pool.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.UsedIPs)
	require.Equal(t, 253, got.AvailableIPs)
}

func TestCreateAllocationBounds(t *testing.T) {
	svc := newTestService(t, newMemRepo())
	pool := createPool(t, svc, "office", "192.168.1.0/24")
	ctx := context.Background()

	for _, ip := range []string{"192.168.1.0", "192.168.1.255", "192.168.2.10", "junk"} {
		_, err := svc.CreateAllocation(ctx, CreateAllocationParams{PoolID: pool.ID, IPAddress: ip}, "operator")
		require.ErrorIs(t, err, shared.ErrValidation, ip)
	}

	_, err := svc.CreateAllocation(ctx, CreateAllocationParams{
		PoolID: pool.ID, IPAddress: "192.168.1.10", Type: AllocationType("bogus"),
	}, "operator")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateAllocation(ctx, CreateAllocationParams{
		PoolID: uuid.New(), IPAddress: "192.168.1.10",
	}, "operator")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateAllocationDuplicateIP(t *testing.T) {
	svc := newTestService(t, newMemRepo())
	pool := createPool(t, svc, "office", "192.168.1.0/24")
	ctx := context.Background()

	_, err := svc.CreateAllocation(ctx, CreateAllocationParams{PoolID: pool.ID, IPAddress: "192.168.1.10"}, "operator")
	require.NoError(t, err)
	_, err = svc.CreateAllocation(ctx, CreateAllocationParams{PoolID: pool.ID, IPAddress: "192.168.1.10"}, "operator")
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdateAllocation(t *testing.T) {
	svc := newTestService(t, newMemRepo())
	pool := createPool(t, svc, "office", "192.168.1.0/24")
	ctx := context.Background()

	alloc, err := svc.CreateAllocation(ctx, CreateAllocationParams{PoolID: pool.ID, IPAddress: "192.168.1.10"}, "operator")
	require.NoError(t, err)

	hostname := "db01"
	reserved := AllocationReserved
	updated, err := svc.UpdateAllocation(ctx, alloc.ID, UpdateAllocationParams{
		Hostname: &hostname,
		Type:     &reserved,
	}, "operator")
	require.NoError(t, err)
	require.Equal(t, "db01", updated.Hostname)
	require.Equal(t, AllocationReserved, updated.Type)
	require.Equal(t, "192.168.1.10", updated.IPAddress)
}

func TestReleaseAllocation(t *testing.T) {
	svc := newTestService(t, newMemRepo())
	pool := createPool(t, svc, "office", "192.168.1.0/24")
	ctx := context.Background()

	alloc, err := svc.CreateAllocation(ctx, CreateAllocationParams{PoolID: pool.ID, IPAddress: "192.168.1.10"}, "operator")
	require.NoError(t, err)

	require.NoError(t, svc.ReleaseAllocation(ctx, alloc.ID, "operator"))
	require.ErrorIs(t, svc.ReleaseAllocation(ctx, alloc.ID, "operator"), shared.ErrNotFound)
}

func TestDetectConflicts(t *testing.T) {
	svc := newTestService(t, newMemRepo())
	ctx := context.Background()
	a := createPool(t, svc, "pool-a", "10.0.0.0/23")
	b := createPool(t, svc, "pool-b", "10.0.0.0/24")

	_, err := svc.CreateAllocation(ctx, CreateAllocationParams{PoolID: a.ID, IPAddress: "10.0.0.5", MACAddress: "aa:bb:cc:00:00:01"}, "op")
	require.NoError(t, err)
	_, err = svc.CreateAllocation(ctx, CreateAllocationParams{PoolID: b.ID, IPAddress: "10.0.0.5"}, "op")
	require.NoError(t, err)
	_, err = svc.CreateAllocation(ctx, CreateAllocationParams{PoolID: b.ID, IPAddress: "10.0.0.9", MACAddress: "aa:bb:cc:00:00:01"}, "op")
	require.NoError(t, err)

	conflicts, err := svc.DetectConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	require.Equal(t, "ip", conflicts[0].Kind)
	require.Equal(t, "10.0.0.5", conflicts[0].Value)
	require.Equal(t, "mac", conflicts[1].Kind)
	require.Equal(t, "aa:bb:cc:00:00:01", conflicts[1].Value)
	require.Len(t, conflicts[1].Pools, 2)
}

func TestStats(t *testing.T) {
	svc := newTestService(t, newMemRepo())
	ctx := context.Background()
	a := createPool(t, svc, "busy", "192.168.1.0/30")
	createPool(t, svc, "idle", "10.0.0.0/24")

	_, err := svc.CreateAllocation(ctx, CreateAllocationParams{PoolID: a.ID, IPAddress: "192.168.1.1", Type: AllocationReserved}, "op")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalPools)
	require.Equal(t, 2+254, stats.TotalIPAddresses)
	require.Equal(t, 1, stats.AllocatedAddresses)
	require.Equal(t, 1, stats.ReservedAddresses)
	require.Equal(t, 255, stats.AvailableAddresses)
	require.Len(t, stats.PoolsByUtilization, 2)
	// Ranked by utilization, busiest first.
	require.Equal(t, "busy", stats.PoolsByUtilization[0].PoolName)
}

func TestPoolStatsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemRepo()
	svc := NewService(repo, client, nil, slog.Default())
	pool := createPool(t, svc, "office", "192.168.1.0/24")
	ctx := context.Background()

	mr.FlushAll()
	before := repo.countCalls
	_, err := svc.GetPool(ctx, pool.ID)
	require.NoError(t, err)
	_, err = svc.GetPool(ctx, pool.ID)
	require.NoError(t, err)
	require.Equal(t, before+1, repo.countCalls)

	// A new allocation invalidates the cached stats.
	_, err = svc.CreateAllocation(ctx, CreateAllocationParams{PoolID: pool.ID, IPAddress: "192.168.1.10"}, "op")
	require.NoError(t, err)

	got, err := svc.GetPool(ctx, pool.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.UsedIPs)
}

func TestSearchRequiresQuery(t *testing.T) {
	svc := newTestService(t, newMemRepo())
	_, err := svc.Search(context.Background(), "", nil, 50)
	require.ErrorIs(t, err, shared.ErrValidation)
}

package ipam

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/netip"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/netadmind/netadmind/internal/audit"
	"github.com/netadmind/netadmind/internal/shared"
)

const statsCacheTTL = time.Minute

// Service implements address pool and allocation management. Pool stats are
// cached in Redis; a cold or unavailable cache falls back to recomputation.
type Service struct {
	repo   Repository
	cache  *redis.Client
	audit  *audit.Recorder
	logger *slog.Logger
}

// NewService constructs an IPAM service.
func NewService(repo Repository, cache *redis.Client, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, audit: recorder, logger: logger}
}

func statsCacheKey(poolID uuid.UUID) string {
	return "ipam:pool_stats:" + poolID.String()
}

// ListPools returns pools with usage stats attached.
func (s *Service) ListPools(ctx context.Context, search string) ([]PoolWithStats, error) {
	pools, err := s.repo.ListPools(ctx, search)
	if err != nil {
		return nil, err
	}
	out := make([]PoolWithStats, 0, len(pools))
	for _, p := range pools {
		stats, err := s.poolStats(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, PoolWithStats{Pool: p, PoolStats: stats})
	}
	return out, nil
}

// GetPool fetches one pool with its stats.
func (s *Service) GetPool(ctx context.Context, id uuid.UUID) (PoolWithStats, error) {
	pool, err := s.repo.GetPool(ctx, id)
	if err != nil {
		return PoolWithStats{}, err
	}
	stats, err := s.poolStats(ctx, pool)
	if err != nil {
		return PoolWithStats{}, err
	}
	return PoolWithStats{Pool: pool, PoolStats: stats}, nil
}

// CreatePool validates the network and creates the pool.
func (s *Service) CreatePool(ctx context.Context, p CreatePoolParams, actor string) (PoolWithStats, error) {
	prefix, err := parseIPv4Prefix(p.Network)
	if err != nil {
		return PoolWithStats{}, err
	}
	if p.Gateway != "" {
		gw, err := netip.ParseAddr(p.Gateway)
		if err != nil {
			return PoolWithStats{}, fmt.Errorf("%w: invalid gateway %q", shared.ErrValidation, p.Gateway)
		}
		if !prefix.Contains(gw) {
			return PoolWithStats{}, fmt.Errorf("%w: gateway %s is outside %s", shared.ErrValidation, p.Gateway, prefix)
		}
	}
	for _, dns := range p.DNSServers {
		if _, err := netip.ParseAddr(dns); err != nil {
			return PoolWithStats{}, fmt.Errorf("%w: invalid DNS server %q", shared.ErrValidation, dns)
		}
	}

	now := touch()
	pool := Pool{
		ID:          uuid.New(),
		Name:        p.Name,
		Network:     prefix.String(),
		Description: p.Description,
		VLANID:      p.VLANID,
		Gateway:     p.Gateway,
		DNSServers:  p.DNSServers,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	if err := s.repo.CreatePool(ctx, pool); err != nil {
		s.audit.RecordResource(ctx, audit.ActionCreate, "ip_pool", p.Name, actor, "failure", map[string]any{"error": err.Error()})
		return PoolWithStats{}, err
	}
	s.logger.Info("ip pool created", slog.String("name", p.Name), slog.String("network", pool.Network), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionCreate, "ip_pool", p.Name, actor, "success", map[string]any{
		"id":      pool.ID.String(),
		"network": pool.Network,
	})
	return s.GetPool(ctx, pool.ID)
}

// DeletePool removes a pool and, via cascade, its allocations.
func (s *Service) DeletePool(ctx context.Context, id uuid.UUID, actor string) error {
	if err := s.repo.DeletePool(ctx, id); err != nil {
		s.audit.RecordResource(ctx, audit.ActionDelete, "ip_pool", id.String(), actor, "failure", map[string]any{"error": err.Error()})
		return err
	}
	s.invalidateStats(ctx, id)
	s.logger.Info("ip pool deleted", slog.String("id", id.String()), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionDelete, "ip_pool", id.String(), actor, "success", nil)
	return nil
}

// ListAllocations returns the allocations in a pool ordered by address.
func (s *Service) ListAllocations(ctx context.Context, poolID uuid.UUID) ([]Allocation, error) {
	if _, err := s.repo.GetPool(ctx, poolID); err != nil {
		return nil, err
	}
	return s.repo.ListAllocations(ctx, poolID)
}

// CreateAllocation assigns an address inside a pool. The address must fall
// inside the pool network and must not be the network or broadcast address.
func (s *Service) CreateAllocation(ctx context.Context, p CreateAllocationParams, actor string) (Allocation, error) {
	pool, err := s.repo.GetPool(ctx, p.PoolID)
	if err != nil {
		return Allocation{}, err
	}
	prefix, err := parseIPv4Prefix(pool.Network)
	if err != nil {
		return Allocation{}, err
	}
	addr, err := netip.ParseAddr(p.IPAddress)
	if err != nil {
		return Allocation{}, fmt.Errorf("%w: invalid IP address %q", shared.ErrValidation, p.IPAddress)
	}
	if !prefix.Contains(addr) {
		return Allocation{}, fmt.Errorf("%w: %s is outside pool network %s", shared.ErrValidation, addr, prefix)
	}
	if addr == networkAddr(prefix) || addr == broadcastAddr(prefix) {
		return Allocation{}, fmt.Errorf("%w: %s is the network or broadcast address", shared.ErrValidation, addr)
	}
	if p.Type == "" {
		p.Type = AllocationStatic
	}
	if !p.Type.Valid() {
		return Allocation{}, fmt.Errorf("%w: invalid allocation type %q", shared.ErrValidation, p.Type)
	}
	mac := ""
	if p.MACAddress != "" {
		hw, err := net.ParseMAC(p.MACAddress)
		if err != nil {
			return Allocation{}, fmt.Errorf("%w: invalid MAC address %q", shared.ErrValidation, p.MACAddress)
		}
		mac = hw.String()
	}

	now := touch()
	alloc := Allocation{
		ID:          uuid.New(),
		PoolID:      p.PoolID,
		IPAddress:   addr.String(),
		Hostname:    p.Hostname,
		MACAddress:  mac,
		Type:        p.Type,
		Description: p.Description,
		AllocatedBy: actor,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	if err := s.repo.CreateAllocation(ctx, alloc); err != nil {
		s.audit.RecordResource(ctx, audit.ActionCreate, "ip_allocation", alloc.IPAddress, actor, "failure", map[string]any{"error": err.Error()})
		return Allocation{}, err
	}
	s.invalidateStats(ctx, p.PoolID)
	s.logger.Info("ip allocated",
		slog.String("ip", alloc.IPAddress), slog.String("pool", p.PoolID.String()), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionCreate, "ip_allocation", alloc.IPAddress, actor, "success", map[string]any{
		"id":      alloc.ID.String(),
		"pool_id": p.PoolID.String(),
		"type":    string(alloc.Type),
	})
	return alloc, nil
}

// UpdateAllocation applies field updates to an existing allocation.
func (s *Service) UpdateAllocation(ctx context.Context, id uuid.UUID, p UpdateAllocationParams, actor string) (Allocation, error) {
	alloc, err := s.repo.GetAllocation(ctx, id)
	if err != nil {
		return Allocation{}, err
	}
	if p.Hostname != nil {
		alloc.Hostname = *p.Hostname
	}
	if p.MACAddress != nil {
		alloc.MACAddress = ""
		if *p.MACAddress != "" {
			hw, err := net.ParseMAC(*p.MACAddress)
			if err != nil {
				return Allocation{}, fmt.Errorf("%w: invalid MAC address %q", shared.ErrValidation, *p.MACAddress)
			}
			alloc.MACAddress = hw.String()
		}
	}
	if p.Type != nil {
		if !p.Type.Valid() {
			return Allocation{}, fmt.Errorf("%w: invalid allocation type %q", shared.ErrValidation, *p.Type)
		}
		alloc.Type = *p.Type
	}
	if p.Description != nil {
		alloc.Description = *p.Description
	}
	alloc.ModifiedAt = touch()

	if err := s.repo.UpdateAllocation(ctx, alloc); err != nil {
		s.audit.RecordResource(ctx, audit.ActionUpdate, "ip_allocation", alloc.IPAddress, actor, "failure", map[string]any{"error": err.Error()})
		return Allocation{}, err
	}
	s.invalidateStats(ctx, alloc.PoolID)
	s.audit.RecordResource(ctx, audit.ActionUpdate, "ip_allocation", alloc.IPAddress, actor, "success", map[string]any{"id": id.String()})
	return alloc, nil
}

// ReleaseAllocation frees an address.
func (s *Service) ReleaseAllocation(ctx context.Context, id uuid.UUID, actor string) error {
	alloc, err := s.repo.GetAllocation(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAllocation(ctx, id); err != nil {
		s.audit.RecordResource(ctx, audit.ActionDelete, "ip_allocation", alloc.IPAddress, actor, "failure", map[string]any{"error": err.Error()})
		return err
	}
	s.invalidateStats(ctx, alloc.PoolID)
	s.logger.Info("ip released", slog.String("ip", alloc.IPAddress), slog.String("actor", actor))
	s.audit.RecordResource(ctx, audit.ActionDelete, "ip_allocation", alloc.IPAddress, actor, "success", map[string]any{"id": id.String()})
	return nil
}

// Search finds allocations by address, hostname or MAC substring.
func (s *Service) Search(ctx context.Context, query string, poolID *uuid.UUID, limit int) ([]Allocation, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrValidation)
	}
	return s.repo.SearchAllocations(ctx, query, poolID, limit)
}

// DetectConflicts scans every allocation for addresses held by multiple
// pools and hardware addresses bound to multiple IPs.
func (s *Service) DetectConflicts(ctx context.Context) ([]Conflict, error) {
	allocations, err := s.repo.AllAllocations(ctx)
	if err != nil {
		return nil, err
	}

	byIP := map[string][]string{}
	byMAC := map[string][]string{}
	for _, a := range allocations {
		byIP[a.IPAddress] = append(byIP[a.IPAddress], a.PoolID.String())
		if a.MACAddress != "" {
			byMAC[a.MACAddress] = append(byMAC[a.MACAddress], a.PoolID.String())
		}
	}

	conflicts := []Conflict{}
	for ip, pools := range byIP {
		if len(pools) > 1 {
			sort.Strings(pools)
			conflicts = append(conflicts, Conflict{
				Kind: "ip", Value: ip, Pools: pools,
				Issue: "Allocated in multiple pools",
			})
		}
	}
	for mac, pools := range byMAC {
		if len(pools) > 1 {
			sort.Strings(pools)
			conflicts = append(conflicts, Conflict{
				Kind: "mac", Value: mac, Pools: pools,
				Issue: "Hardware address bound to multiple allocations",
			})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Kind != conflicts[j].Kind {
			return conflicts[i].Kind < conflicts[j].Kind
		}
		return conflicts[i].Value < conflicts[j].Value
	})
	return conflicts, nil
}

// Stats aggregates usage across all pools.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	pools, err := s.repo.ListPools(ctx, "")
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{TotalPools: len(pools), PoolsByUtilization: []PoolUtilization{}}
	for _, p := range pools {
		ps, err := s.poolStats(ctx, p)
		if err != nil {
			return Stats{}, err
		}
		stats.TotalIPAddresses += ps.TotalIPs
		stats.AllocatedAddresses += ps.UsedIPs
		stats.PoolsByUtilization = append(stats.PoolsByUtilization, PoolUtilization{
			PoolName:    p.Name,
			Utilization: ps.UtilizationPercent,
		})
	}
	reserved, err := s.repo.CountByType(ctx, AllocationReserved)
	if err != nil {
		return Stats{}, err
	}
	stats.ReservedAddresses = reserved
	stats.AvailableAddresses = stats.TotalIPAddresses - stats.AllocatedAddresses
	if stats.TotalIPAddresses > 0 {
		stats.UtilizationPercent = roundPercent(float64(stats.AllocatedAddresses) / float64(stats.TotalIPAddresses) * 100)
	}
	sort.Slice(stats.PoolsByUtilization, func(i, j int) bool {
		return stats.PoolsByUtilization[i].Utilization > stats.PoolsByUtilization[j].Utilization
	})
	return stats, nil
}

func (s *Service) poolStats(ctx context.Context, pool Pool) (PoolStats, error) {
	key := statsCacheKey(pool.ID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached PoolStats
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	prefix, err := parseIPv4Prefix(pool.Network)
	if err != nil {
		return PoolStats{}, err
	}
	total := 1<<(32-prefix.Bits()) - 2
	if total < 0 {
		total = 0
	}
	used, err := s.repo.CountAllocations(ctx, pool.ID)
	if err != nil {
		return PoolStats{}, err
	}

	stats := PoolStats{TotalIPs: total, UsedIPs: used, AvailableIPs: total - used}
	if total > 0 {
		stats.UtilizationPercent = roundPercent(float64(used) / float64(total) * 100)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, key, raw, statsCacheTTL).Err(); err != nil {
				s.logger.Debug("cache pool stats", slog.Any("error", err))
			}
		}
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context, poolID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey(poolID)).Err(); err != nil {
		s.logger.Debug("invalidate pool stats", slog.Any("error", err))
	}
}

func roundPercent(v float64) float64 {
	return math.Round(v*100) / 100
}

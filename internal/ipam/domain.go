package ipam

import (
	"time"

	"github.com/google/uuid"
)

// AllocationType classifies how an address is assigned.
type AllocationType string

const (
	AllocationStatic   AllocationType = "static"
	AllocationDynamic  AllocationType = "dynamic"
	AllocationReserved AllocationType = "reserved"
)

// Valid reports whether t is a known allocation type.
func (t AllocationType) Valid() bool {
	switch t {
	case AllocationStatic, AllocationDynamic, AllocationReserved:
		return true
	}
	return false
}

// Pool is an address pool backed by a CIDR network.
type Pool struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Network     string    `json:"network"`
	Description string    `json:"description,omitempty"`
	VLANID      *int      `json:"vlan_id,omitempty"`
	Gateway     string    `json:"gateway,omitempty"`
	DNSServers  []string  `json:"dns_servers,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// PoolStats summarises pool usage. Network and broadcast addresses do not
// count as usable.
type PoolStats struct {
	TotalIPs           int     `json:"total_ips"`
	UsedIPs            int     `json:"used_ips"`
	AvailableIPs       int     `json:"available_ips"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// PoolWithStats is the list/get representation.
type PoolWithStats struct {
	Pool
	PoolStats
}

// Allocation is a single assigned address inside a pool.
type Allocation struct {
	ID          uuid.UUID      `json:"id"`
	PoolID      uuid.UUID      `json:"pool_id"`
	IPAddress   string         `json:"ip_address"`
	Hostname    string         `json:"hostname,omitempty"`
	MACAddress  string         `json:"mac_address,omitempty"`
	Type        AllocationType `json:"allocation_type"`
	Description string         `json:"description,omitempty"`
	AllocatedBy string         `json:"allocated_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ModifiedAt  time.Time      `json:"modified_at"`
}

// CreatePoolParams are the inputs for creating a pool.
type CreatePoolParams struct {
	Name        string
	Network     string
	Description string
	VLANID      *int
	Gateway     string
	DNSServers  []string
}

// CreateAllocationParams are the inputs for allocating an address.
type CreateAllocationParams struct {
	PoolID      uuid.UUID
	IPAddress   string
	Hostname    string
	MACAddress  string
	Type        AllocationType
	Description string
}

// UpdateAllocationParams carries optional allocation updates.
type UpdateAllocationParams struct {
	Hostname    *string
	MACAddress  *string
	Type        *AllocationType
	Description *string
}

// Conflict is one address or hardware conflict across pools.
type Conflict struct {
	Kind  string   `json:"kind"`
	Value string   `json:"value"`
	Pools []string `json:"pools"`
	Issue string   `json:"issue"`
}

// Stats aggregates usage across every pool.
type Stats struct {
	TotalPools         int               `json:"total_pools"`
	TotalIPAddresses   int               `json:"total_ip_addresses"`
	AllocatedAddresses int               `json:"allocated_addresses"`
	AvailableAddresses int               `json:"available_addresses"`
	ReservedAddresses  int               `json:"reserved_addresses"`
	UtilizationPercent float64           `json:"utilization_percent"`
	PoolsByUtilization []PoolUtilization `json:"pools_by_utilization"`
}

// PoolUtilization pairs a pool name with its utilization for ranking.
type PoolUtilization struct {
	PoolName    string  `json:"pool_name"`
	Utilization float64 `json:"utilization"`
}

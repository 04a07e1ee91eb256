package ipam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/netadmind/netadmind/internal/shared"
)

// Repository is the persistence surface consumed by the service layer.
type Repository interface {
	ListPools(ctx context.Context, search string) ([]Pool, error)
	GetPool(ctx context.Context, id uuid.UUID) (Pool, error)
	CreatePool(ctx context.Context, pool Pool) error
	DeletePool(ctx context.Context, id uuid.UUID) error

	ListAllocations(ctx context.Context, poolID uuid.UUID) ([]Allocation, error)
	GetAllocation(ctx context.Context, id uuid.UUID) (Allocation, error)
	CreateAllocation(ctx context.Context, alloc Allocation) error
	UpdateAllocation(ctx context.Context, alloc Allocation) error
	DeleteAllocation(ctx context.Context, id uuid.UUID) error

	CountAllocations(ctx context.Context, poolID uuid.UUID) (int, error)
	CountByType(ctx context.Context, t AllocationType) (int, error)
	SearchAllocations(ctx context.Context, query string, poolID *uuid.UUID, limit int) ([]Allocation, error)
	AllAllocations(ctx context.Context) ([]Allocation, error)
}

// PGRepository persists IPAM data in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const poolColumns = "id, name, network, description, vlan_id, gateway, dns_servers, created_at, modified_at"

const allocationColumns = "id, pool_id, ip_address, hostname, mac_address, allocation_type, description, allocated_by, created_at, modified_at"

func mapPGError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return shared.ErrDuplicate
		case "23503":
			return shared.ErrNotFound
		}
	}
	return err
}

func scanPool(row pgx.Row) (Pool, error) {
	var p Pool
	var description, gateway *string
	err := row.Scan(&p.ID, &p.Name, &p.Network, &description, &p.VLANID, &gateway, &p.DNSServers, &p.CreatedAt, &p.ModifiedAt)
	if err != nil {
		return Pool{}, mapPGError(err)
	}
	if description != nil {
		p.Description = *description
	}
	if gateway != nil {
		p.Gateway = *gateway
	}
	return p, nil
}

func scanAllocation(row pgx.Row) (Allocation, error) {
	var a Allocation
	var hostname, mac, description, allocatedBy *string
	err := row.Scan(&a.ID, &a.PoolID, &a.IPAddress, &hostname, &mac, &a.Type, &description, &allocatedBy, &a.CreatedAt, &a.ModifiedAt)
	if err != nil {
		return Allocation{}, mapPGError(err)
	}
	if hostname != nil {
		a.Hostname = *hostname
	}
	if mac != nil {
		a.MACAddress = *mac
	}
	if description != nil {
		a.Description = *description
	}
	if allocatedBy != nil {
		a.AllocatedBy = *allocatedBy
	}
	return a, nil
}

func (r *PGRepository) ListPools(ctx context.Context, search string) ([]Pool, error) {
	query := fmt.Sprintf("SELECT %s FROM ip_pools", poolColumns)
	args := []any{}
	if search != "" {
		query += " WHERE name ILIKE $1 OR network::text ILIKE $1 OR description ILIKE $1"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY name"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()

	pools := []Pool{}
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

func (r *PGRepository) GetPool(ctx context.Context, id uuid.UUID) (Pool, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM ip_pools WHERE id=$1", poolColumns), id)
	return scanPool(row)
}

func (r *PGRepository) CreatePool(ctx context.Context, pool Pool) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO ip_pools (id, name, network, description, vlan_id, gateway, dns_servers, created_at, modified_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, $9)`,
		pool.ID, pool.Name, pool.Network, pool.Description, pool.VLANID, pool.Gateway, pool.DNSServers, pool.CreatedAt, pool.ModifiedAt)
	return mapPGError(err)
}

func (r *PGRepository) DeletePool(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM ip_pools WHERE id=$1", id)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) ListAllocations(ctx context.Context, poolID uuid.UUID) ([]Allocation, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM ip_allocations WHERE pool_id=$1 ORDER BY ip_address", allocationColumns), poolID)
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()
	return collectAllocations(rows)
}

func (r *PGRepository) GetAllocation(ctx context.Context, id uuid.UUID) (Allocation, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM ip_allocations WHERE id=$1", allocationColumns), id)
	return scanAllocation(row)
}

func (r *PGRepository) CreateAllocation(ctx context.Context, alloc Allocation) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO ip_allocations (id, pool_id, ip_address, hostname, mac_address, allocation_type, description, allocated_by, created_at, modified_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)`,
		alloc.ID, alloc.PoolID, alloc.IPAddress, alloc.Hostname, alloc.MACAddress, alloc.Type,
		alloc.Description, alloc.AllocatedBy, alloc.CreatedAt, alloc.ModifiedAt)
	return mapPGError(err)
}

func (r *PGRepository) UpdateAllocation(ctx context.Context, alloc Allocation) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ip_allocations
SET hostname=NULLIF($2, ''), mac_address=NULLIF($3, ''), allocation_type=$4, description=NULLIF($5, ''), modified_at=$6
WHERE id=$1`,
		alloc.ID, alloc.Hostname, alloc.MACAddress, alloc.Type, alloc.Description, alloc.ModifiedAt)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) DeleteAllocation(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM ip_allocations WHERE id=$1", id)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) CountAllocations(ctx context.Context, poolID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ip_allocations WHERE pool_id=$1", poolID).Scan(&n)
	return n, mapPGError(err)
}

func (r *PGRepository) CountByType(ctx context.Context, t AllocationType) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ip_allocations WHERE allocation_type=$1", t).Scan(&n)
	return n, mapPGError(err)
}

func (r *PGRepository) SearchAllocations(ctx context.Context, query string, poolID *uuid.UUID, limit int) ([]Allocation, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	clauses := []string{"(ip_address::text ILIKE $1 OR hostname ILIKE $1 OR mac_address ILIKE $1)"}
	args := []any{"%" + query + "%"}
	if poolID != nil {
		args = append(args, *poolID)
		clauses = append(clauses, fmt.Sprintf("pool_id=$%d", len(args)))
	}
	args = append(args, limit)
	sql := fmt.Sprintf("SELECT %s FROM ip_allocations WHERE %s ORDER BY ip_address LIMIT $%d",
		allocationColumns, strings.Join(clauses, " AND "), len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()
	return collectAllocations(rows)
}

func (r *PGRepository) AllAllocations(ctx context.Context) ([]Allocation, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM ip_allocations ORDER BY ip_address", allocationColumns))
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()
	return collectAllocations(rows)
}

func collectAllocations(rows pgx.Rows) ([]Allocation, error) {
	allocations := []Allocation{}
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// touch is shared by service-level mutations to stamp modified_at.
func touch() time.Time {
	return time.Now().UTC()
}

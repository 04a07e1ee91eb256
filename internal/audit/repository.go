package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/netadmind/netadmind/internal/shared"
)

// Repository defines the audit queries the service layer needs.
type Repository interface {
	List(ctx context.Context, f Filters) ([]Record, int64, error)
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	Stats(ctx context.Context, from, to time.Time) (Stats, error)
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const recordColumns = `id, created_at, action, resource_type, resource_id, resource_name, actor, actor_ip, user_agent, status, details`

func buildFilterClause(f Filters) (string, []any) {
	clauses := []string{}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	if f.Actor != "" {
		add("actor = $%d", f.Actor)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.ResourceType != "" {
		add("resource_type = $%d", f.ResourceType)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns a filtered, newest-first page plus the total match count.
func (r *PGRepository) List(ctx context.Context, f Filters) ([]Record, int64, error) {
	where, args := buildFilterClause(f)

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM audit_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		recordColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// Get fetches one record by ID.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM audit_logs WHERE id = $1", recordColumns), id)
	rec, err := scanRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Record{}, shared.ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Stats aggregates counts by action, resource type and status.
func (r *PGRepository) Stats(ctx context.Context, from, to time.Time) (Stats, error) {
	where, args := buildFilterClause(Filters{From: from, To: to})
	stats := Stats{
		ByAction:   map[string]int64{},
		ByResource: map[string]int64{},
		ByStatus:   map[string]int64{},
	}

	rows, err := r.pool.Query(ctx,
		"SELECT action, resource_type, status, COUNT(*) FROM audit_logs"+where+" GROUP BY action, resource_type, status",
		args...)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var action, resource, status string
		var count int64
		if err := rows.Scan(&action, &resource, &status, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		stats.ByAction[action] += count
		stats.ByResource[resource] += count
		stats.ByStatus[status] += count
		if status == "failure" {
			stats.Failures += count
		}
	}
	return stats, rows.Err()
}

// Purge deletes records older than the cutoff and reports how many went.
func (r *PGRepository) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM audit_logs WHERE created_at < $1", olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var action string
	var details []byte
	err := row.Scan(&rec.ID, &rec.CreatedAt, &action, &rec.ResourceType,
		&rec.ResourceID, &rec.ResourceName, &rec.Actor, &rec.ActorIP,
		&rec.UserAgent, &rec.Status, &details)
	if err != nil {
		return Record{}, err
	}
	rec.Action = Action(action)
	if len(details) > 0 {
		_ = json.Unmarshal(details, &rec.Details)
	}
	return rec, nil
}

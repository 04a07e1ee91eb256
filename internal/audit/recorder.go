package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder writes audit records to Postgres. A recorder failure is logged
// and swallowed: audit writes must never fail the operation they describe.
type Recorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool, logger *slog.Logger) *Recorder {
	return &Recorder{pool: pool, logger: logger}
}

const insertRecord = `
INSERT INTO audit_logs (id, created_at, action, resource_type, resource_id, resource_name, actor, actor_ip, user_agent, status, details)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Record persists one audit entry.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if r == nil || r.pool == nil {
		return
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = "success"
	}
	if rec.Actor == "" {
		rec.Actor = "system"
	}
	details, err := json.Marshal(rec.Details)
	if err != nil {
		details = []byte("{}")
	}
	_, err = r.pool.Exec(ctx, insertRecord,
		rec.ID, rec.CreatedAt, string(rec.Action), rec.ResourceType,
		rec.ResourceID, rec.ResourceName, rec.Actor, rec.ActorIP,
		rec.UserAgent, rec.Status, details,
	)
	if err != nil {
		r.logger.Error("audit record failed",
			slog.String("action", string(rec.Action)),
			slog.String("resource", rec.ResourceType),
			slog.Any("error", err))
		return
	}
	r.logger.Info("audit",
		slog.String("action", string(rec.Action)),
		slog.String("resource", rec.ResourceType+"/"+rec.ResourceName),
		slog.String("actor", rec.Actor),
		slog.String("status", rec.Status))
}

// RecordResource is shorthand for a resource-scoped record.
func (r *Recorder) RecordResource(ctx context.Context, action Action, resourceType, name, actor, status string, details map[string]any) {
	r.Record(ctx, Record{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   name,
		ResourceName: name,
		Actor:        actor,
		Status:       status,
		Details:      details,
	})
}

// RecordAuth implements the auth package's AuditRecorder.
func (r *Recorder) RecordAuth(ctx context.Context, username, ip, status string, details map[string]any) {
	action := ActionLogin
	if status != "success" {
		action = ActionError
	}
	r.Record(ctx, Record{
		Action:       action,
		ResourceType: "authentication",
		ResourceID:   username,
		ResourceName: username,
		Actor:        username,
		ActorIP:      ip,
		Status:       status,
		Details:      details,
	})
}

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service coordinates audit queries and retention.
type Service struct {
	repo          Repository
	retentionDays int
}

// NewService constructs an audit service.
func NewService(repo Repository, retentionDays int) *Service {
	return &Service{repo: repo, retentionDays: retentionDays}
}

// List returns a filtered page of audit records.
func (s *Service) List(ctx context.Context, f Filters) ([]Record, int64, error) {
	if s.repo == nil {
		return nil, 0, fmt.Errorf("audit: repository not configured")
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 50
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return s.repo.List(ctx, f)
}

// Get fetches one record by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	return s.repo.Get(ctx, id)
}

// Stats aggregates the overview for a time window; a zero window means the
// last 30 days.
func (s *Service) Stats(ctx context.Context, from, to time.Time) (Stats, error) {
	if from.IsZero() && to.IsZero() {
		to = time.Now().UTC()
		from = to.AddDate(0, 0, -30)
	}
	return s.repo.Stats(ctx, from, to)
}

// PurgeExpired deletes records past the retention window.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	return s.repo.Purge(ctx, cutoff)
}

package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/platform/httpx"
)

const probeTimeout = 5 * time.Second

// Check is one dependency probe result.
type Check struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// Handler exposes liveness and readiness probes over the service
// dependencies.
type Handler struct {
	logger    *slog.Logger
	dir       directory.Client
	pool      *pgxpool.Pool
	cache     *redis.Client
	startedAt time.Time
}

// NewHandler constructs a health Handler.
func NewHandler(logger *slog.Logger, dir directory.Client, pool *pgxpool.Pool, cache *redis.Client) *Handler {
	return &Handler{logger: logger, dir: dir, pool: pool, cache: cache, startedAt: time.Now()}
}

// MountRoutes registers the probes. They are unauthenticated; orchestrators
// have no tokens.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/healthz", h.handleLive)
	r.Get("/health/ready", h.handleReady)
	r.Get("/health/detailed", h.handleDetailed)
}

func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": time.Since(h.startedAt).Seconds(),
	})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := h.runChecks(r.Context())
	status := http.StatusOK
	overall := "ready"
	for name, c := range checks {
		if c.Status != "ok" {
			status = http.StatusServiceUnavailable
			overall = "not_ready"
			h.logger.Warn("readiness probe failed", slog.String("check", name), slog.String("error", c.Error))
		}
	}
	httpx.JSON(w, status, map[string]any{"status": overall, "checks": checks})
}

func (h *Handler) handleDetailed(w http.ResponseWriter, r *http.Request) {
	checks := h.runChecks(r.Context())
	overall := "healthy"
	for _, c := range checks {
		if c.Status != "ok" {
			overall = "degraded"
			break
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":         overall,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": time.Since(h.startedAt).Seconds(),
		"checks":         checks,
	})
}

// runChecks probes all dependencies concurrently and never fails the group;
// failures are reported per check.
func (h *Handler) runChecks(ctx context.Context) map[string]Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var mu sync.Mutex
	checks := map[string]Check{}
	record := func(name string, started time.Time, err error) {
		c := Check{Status: "ok", LatencyMS: float64(time.Since(started).Microseconds()) / 1000}
		if err != nil {
			c.Status = "unavailable"
			c.Error = err.Error()
		}
		mu.Lock()
		checks[name] = c
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		started := time.Now()
		record("directory", started, h.dir.WhoAmI(ctx))
		return nil
	})
	g.Go(func() error {
		started := time.Now()
		record("postgres", started, h.pool.Ping(ctx))
		return nil
	})
	g.Go(func() error {
		started := time.Now()
		record("redis", started, h.cache.Ping(ctx).Err())
		return nil
	})
	_ = g.Wait()
	return checks
}

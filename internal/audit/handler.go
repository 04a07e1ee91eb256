package audit

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/netadmind/netadmind/internal/platform/httpx"
	"github.com/netadmind/netadmind/internal/shared"
)

// Handler exposes the audit query API. All routes require the admin role,
// enforced by the router when mounting.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/stats/overview", h.handleStats)
	r.Get("/export", h.handleExport)
	r.Get("/{id}", h.handleGet)
}

type listResponse struct {
	Logs       []Record          `json:"logs"`
	Pagination shared.Pagination `json:"pagination"`
}

func filtersFromQuery(r *http.Request) Filters {
	q := r.URL.Query()
	page, pageSize := shared.PageParams(r)
	f := Filters{
		Actor:        q.Get("actor"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		Status:       q.Get("status"),
		Page:         page,
		PageSize:     pageSize,
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = t
		}
	}
	return f
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	f := filtersFromQuery(r)
	records, total, err := h.service.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list audit logs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Logs:       records,
		Pagination: shared.Pagination{Page: f.Page, PageSize: f.PageSize, Total: int(total)},
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	f := filtersFromQuery(r)
	stats, err := h.service.Stats(r.Context(), f.From, f.To)
	if err != nil {
		h.logger.Error("audit stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

// handleExport streams the filtered window as CSV or JSON. Export ignores
// pagination and walks the full match set page by page.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	f := filtersFromQuery(r)
	f.Page = 1
	f.PageSize = 100

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	var all []Record
	for {
		records, total, err := h.service.List(r.Context(), f)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		all = append(all, records...)
		if int64(len(all)) >= total || len(records) == 0 {
			break
		}
		f.Page++
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case "json":
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.json", stamp))
		httpx.JSON(w, http.StatusOK, all)
	default:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.csv", stamp))
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"id", "created_at", "action", "resource_type", "resource_name", "actor", "actor_ip", "status"})
		for _, rec := range all {
			_ = cw.Write([]string{
				rec.ID.String(),
				rec.CreatedAt.Format(time.RFC3339),
				string(rec.Action),
				rec.ResourceType,
				rec.ResourceName,
				rec.Actor,
				rec.ActorIP,
				rec.Status,
			})
		}
		cw.Flush()
		h.logger.Info("audit export", slog.Int("rows", len(all)), slog.String("format", format))
	}
}

package dnszones

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/netadmind/netadmind/internal/auth"
	"github.com/netadmind/netadmind/internal/platform/httpx"
	"github.com/netadmind/netadmind/internal/shared"
)

// Handler wires HTTP endpoints for DNS zone and record management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     auth.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers DNS routes. Reads need any authenticated role,
// writes need operator, zone delete needs admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/zones", h.handleListZones)
	r.Get("/zones/{zone}", h.handleGetZone)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Post("/zones", h.handleCreateZone)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Patch("/zones/{zone}", h.handleUpdateZone)
	r.With(h.guard.RequireRole(auth.RoleAdmin)).Delete("/zones/{zone}", h.handleDeleteZone)

	r.Get("/zones/{zone}/records", h.handleListRecords)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Post("/zones/{zone}/records", h.handleCreateRecord)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Delete("/zones/{zone}/records/{name}/{type}", h.handleDeleteRecord)
}

type createZoneRequest struct {
	Name        string `json:"idnsName" validate:"required,max=255"`
	SOASerial   int    `json:"idnsSOAserial"`
	SOARefresh  int    `json:"idnsSOArefresh"`
	SOARetry    int    `json:"idnsSOAretry"`
	SOAExpire   int    `json:"idnsSOAexpire"`
	SOAMinimum  int    `json:"idnsSOAminimum"`
	SOAMName    string `json:"idnsSOAmName" validate:"required"`
	SOARName    string `json:"idnsSOArName" validate:"required"`
	Description string `json:"description" validate:"max=256"`
}

type updateZoneRequest struct {
	Description *string `json:"description" validate:"omitempty,max=256"`
	SOARefresh  *int    `json:"idnsSOArefresh" validate:"omitempty,min=1"`
	SOARetry    *int    `json:"idnsSOAretry" validate:"omitempty,min=1"`
	SOAExpire   *int    `json:"idnsSOAexpire" validate:"omitempty,min=1"`
	SOAMinimum  *int    `json:"idnsSOAminimum" validate:"omitempty,min=0"`
}

type createRecordRequest struct {
	Name  string `json:"idnsName" validate:"required,max=255"`
	Type  string `json:"record_type" validate:"required"`
	Value string `json:"value" validate:"required"`
}

type listZonesResponse struct {
	Zones      []Zone            `json:"zones"`
	Pagination shared.Pagination `json:"pagination"`
}

type listRecordsResponse struct {
	Zone    string   `json:"zone"`
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}

func actorFrom(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.Username
	}
	return ""
}

func (h *Handler) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.service.ListZones(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("list dns zones", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	page, pageSize := shared.PageParams(r)
	httpx.JSON(w, http.StatusOK, listZonesResponse{
		Zones:      shared.PageSlice(zones, page, pageSize),
		Pagination: shared.Pagination{Page: page, PageSize: pageSize, Total: len(zones)},
	})
}

func (h *Handler) handleGetZone(w http.ResponseWriter, r *http.Request) {
	zone, err := h.service.GetZone(r.Context(), chi.URLParam(r, "zone"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, zone)
}

func (h *Handler) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req createZoneRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	zone, err := h.service.CreateZone(r.Context(), CreateZoneParams{
		Name:        req.Name,
		SOASerial:   req.SOASerial,
		SOARefresh:  req.SOARefresh,
		SOARetry:    req.SOARetry,
		SOAExpire:   req.SOAExpire,
		SOAMinimum:  req.SOAMinimum,
		SOAMName:    req.SOAMName,
		SOARName:    req.SOARName,
		Description: req.Description,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, zone)
}

func (h *Handler) handleUpdateZone(w http.ResponseWriter, r *http.Request) {
	var req updateZoneRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	zone, err := h.service.UpdateZone(r.Context(), chi.URLParam(r, "zone"), UpdateZoneParams{
		Description: req.Description,
		SOARefresh:  req.SOARefresh,
		SOARetry:    req.SOARetry,
		SOAExpire:   req.SOAExpire,
		SOAMinimum:  req.SOAMinimum,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, zone)
}

func (h *Handler) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteZone(r.Context(), chi.URLParam(r, "zone"), actorFrom(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	zone := chi.URLParam(r, "zone")
	records, err := h.service.ListRecords(r.Context(), zone)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listRecordsResponse{Zone: zone, Records: records, Total: len(records)})
}

func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	record, err := h.service.CreateRecord(r.Context(), chi.URLParam(r, "zone"), CreateRecordParams{
		Name:  req.Name,
		Type:  req.Type,
		Value: req.Value,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		httpx.RespondError(w, fmt.Errorf("%w: query parameter value is required", shared.ErrValidation))
		return
	}
	err := h.service.DeleteRecord(r.Context(),
		chi.URLParam(r, "zone"), chi.URLParam(r, "name"), chi.URLParam(r, "type"), value, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

package ipam

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/netadmind/netadmind/internal/auth"
	"github.com/netadmind/netadmind/internal/platform/httpx"
	"github.com/netadmind/netadmind/internal/shared"
)

// Handler wires HTTP endpoints for IP address management.
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

// MountRoutes registers IPAM routes. Reads need any authenticated role,
// writes need operator, pool delete needs admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pools", h.handleListPools)
	r.Get("/pools/{id}", h.handleGetPool)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Post("/pools", h.handleCreatePool)
	r.With(h.guard.RequireRole(auth.RoleAdmin)).Delete("/pools/{id}", h.handleDeletePool)

	r.Get("/pools/{id}/allocations", h.handleListAllocations)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Post("/allocations", h.handleCreateAllocation)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Patch("/allocations/{id}", h.handleUpdateAllocation)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Delete("/allocations/{id}", h.handleReleaseAllocation)

	r.Get("/stats", h.handleStats)
	r.Get("/conflicts", h.handleConflicts)
	r.Post("/search", h.handleSearch)
	r.Post("/calculator", h.handleCalculator)
}

type createPoolRequest struct {
	Name        string   `json:"name" validate:"required,max=128"`
	Network     string   `json:"network" validate:"required"`
	Description string   `json:"description" validate:"max=256"`
	VLANID      *int     `json:"vlan_id" validate:"omitempty,min=1,max=4094"`
	Gateway     string   `json:"gateway"`
	DNSServers  []string `json:"dns_servers"`
}

type createAllocationRequest struct {
	PoolID      uuid.UUID `json:"pool_id" validate:"required"`
	IPAddress   string    `json:"ip_address" validate:"required"`
	Hostname    string    `json:"hostname" validate:"max=255"`
	MACAddress  string    `json:"mac_address"`
	Type        string    `json:"allocation_type"`
	Description string    `json:"description" validate:"max=256"`
}

type updateAllocationRequest struct {
	Hostname    *string `json:"hostname" validate:"omitempty,max=255"`
	MACAddress  *string `json:"mac_address"`
	Type        *string `json:"allocation_type"`
	Description *string `json:"description" validate:"omitempty,max=256"`
}

type searchRequest struct {
	Query  string     `json:"query" validate:"required"`
	PoolID *uuid.UUID `json:"pool_id"`
	Limit  int        `json:"limit" validate:"omitempty,min=1,max=100"`
}

type calculatorRequest struct {
	Operation   string   `json:"operation" validate:"required,oneof=info split merge validate"`
	Network     string   `json:"network"`
	SubnetCount int      `json:"subnet_count"`
	Networks    []string `json:"networks"`
}

type validateResponse struct {
	Valid   bool   `json:"valid"`
	Network string `json:"network,omitempty"`
	Message string `json:"message,omitempty"`
}

type listPoolsResponse struct {
	Pools      []PoolWithStats   `json:"pools"`
	Pagination shared.Pagination `json:"pagination"`
}

type listAllocationsResponse struct {
	Allocations []Allocation `json:"allocations"`
	Total       int          `json:"total"`
}

type searchResponse struct {
	Results []Allocation `json:"results"`
	Total   int          `json:"total"`
}

type conflictsResponse struct {
	HasConflicts bool       `json:"has_conflicts"`
	Conflicts    []Conflict `json:"conflicts"`
	Summary      string     `json:"summary"`
}

func actorFrom(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.Username
	}
	return ""
}

func idParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	return id, nil
}

func (h *Handler) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.service.ListPools(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("list ip pools", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	page, pageSize := shared.PageParams(r)
	httpx.JSON(w, http.StatusOK, listPoolsResponse{
		Pools:      shared.PageSlice(pools, page, pageSize),
		Pagination: shared.Pagination{Page: page, PageSize: pageSize, Total: len(pools)},
	})
}

func (h *Handler) handleGetPool(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pool, err := h.service.GetPool(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pool)
}

func (h *Handler) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	pool, err := h.service.CreatePool(r.Context(), CreatePoolParams{
		Name:        req.Name,
		Network:     req.Network,
		Description: req.Description,
		VLANID:      req.VLANID,
		Gateway:     req.Gateway,
		DNSServers:  req.DNSServers,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pool)
}

func (h *Handler) handleDeletePool(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeletePool(r.Context(), id, actorFrom(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	allocations, err := h.service.ListAllocations(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listAllocationsResponse{Allocations: allocations, Total: len(allocations)})
}

func (h *Handler) handleCreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req createAllocationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	alloc, err := h.service.CreateAllocation(r.Context(), CreateAllocationParams{
		PoolID:      req.PoolID,
		IPAddress:   req.IPAddress,
		Hostname:    req.Hostname,
		MACAddress:  req.MACAddress,
		Type:        AllocationType(req.Type),
		Description: req.Description,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, alloc)
}

func (h *Handler) handleUpdateAllocation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateAllocationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	params := UpdateAllocationParams{
		Hostname:    req.Hostname,
		MACAddress:  req.MACAddress,
		Description: req.Description,
	}
	if req.Type != nil {
		t := AllocationType(*req.Type)
		params.Type = &t
	}
	alloc, err := h.service.UpdateAllocation(r.Context(), id, params, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, alloc)
}

func (h *Handler) handleReleaseAllocation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ReleaseAllocation(r.Context(), id, actorFrom(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.service.DetectConflicts(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, conflictsResponse{
		HasConflicts: len(conflicts) > 0,
		Conflicts:    conflicts,
		Summary:      fmt.Sprintf("Found %d conflicts", len(conflicts)),
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	results, err := h.service.Search(r.Context(), req.Query, req.PoolID, req.Limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, searchResponse{Results: results, Total: len(results)})
}

func (h *Handler) handleCalculator(w http.ResponseWriter, r *http.Request) {
	var req calculatorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}

	switch req.Operation {
	case "info":
		info, err := SubnetInfoFor(req.Network)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, info)
	case "split":
		split, err := SplitSubnet(req.Network, req.SubnetCount)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, split)
	case "merge":
		merged, err := MergeSubnets(req.Networks)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, merged)
	case "validate":
		valid, detail := ValidateNetwork(req.Network)
		resp := validateResponse{Valid: valid}
		if valid {
			resp.Network = detail
			resp.Message = "Valid network"
		} else {
			resp.Message = detail
		}
		httpx.JSON(w, http.StatusOK, resp)
	}
}

package dhcp

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

// Handler wires HTTP endpoints for DHCP configuration management.
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

// MountRoutes registers DHCP routes. Reads need any authenticated role,
// writes need operator, subnet delete needs admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/subnets", h.handleListSubnets)
	r.Get("/subnets/{subnet}", h.handleGetSubnet)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Post("/subnets", h.handleCreateSubnet)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Patch("/subnets/{subnet}", h.handleUpdateSubnet)
	r.With(h.guard.RequireRole(auth.RoleAdmin)).Delete("/subnets/{subnet}", h.handleDeleteSubnet)

	r.Get("/subnets/{subnet}/hosts", h.handleListHosts)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Post("/subnets/{subnet}/hosts", h.handleCreateHost)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Delete("/subnets/{subnet}/hosts/{cn}", h.handleDeleteHost)

	r.Get("/stats", h.handleStats)
}

type createSubnetRequest struct {
	CN          string   `json:"cn" validate:"required"`
	NetMask     int      `json:"dhcpNetMask" validate:"min=0,max=32"`
	Options     []string `json:"dhcpOption"`
	Ranges      []string `json:"dhcpRange"`
	Description string   `json:"description" validate:"max=256"`
}

type updateSubnetRequest struct {
	Options     *[]string `json:"dhcpOption"`
	Ranges      *[]string `json:"dhcpRange"`
	Description *string   `json:"description" validate:"omitempty,max=256"`
}

type createHostRequest struct {
	CN           string   `json:"cn" validate:"required,max=64"`
	MAC          string   `json:"mac_address" validate:"required"`
	FixedAddress string   `json:"ip_address" validate:"required"`
	Options      []string `json:"dhcpOption"`
	Description  string   `json:"description" validate:"max=256"`
}

type listSubnetsResponse struct {
	Subnets    []Subnet          `json:"subnets"`
	Pagination shared.Pagination `json:"pagination"`
}

type listHostsResponse struct {
	Subnet string `json:"subnet"`
	Hosts  []Host `json:"hosts"`
	Total  int    `json:"total"`
}

func actorFrom(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.Username
	}
	return ""
}

func (h *Handler) handleListSubnets(w http.ResponseWriter, r *http.Request) {
	subnets, err := h.service.ListSubnets(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("list dhcp subnets", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	page, pageSize := shared.PageParams(r)
	httpx.JSON(w, http.StatusOK, listSubnetsResponse{
		Subnets:    shared.PageSlice(subnets, page, pageSize),
		Pagination: shared.Pagination{Page: page, PageSize: pageSize, Total: len(subnets)},
	})
}

func (h *Handler) handleGetSubnet(w http.ResponseWriter, r *http.Request) {
	subnet, err := h.service.GetSubnet(r.Context(), chi.URLParam(r, "subnet"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, subnet)
}

func (h *Handler) handleCreateSubnet(w http.ResponseWriter, r *http.Request) {
	var req createSubnetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	subnet, err := h.service.CreateSubnet(r.Context(), CreateSubnetParams{
		CN:          req.CN,
		NetMask:     req.NetMask,
		Options:     req.Options,
		Ranges:      req.Ranges,
		Description: req.Description,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, subnet)
}

func (h *Handler) handleUpdateSubnet(w http.ResponseWriter, r *http.Request) {
	var req updateSubnetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	subnet, err := h.service.UpdateSubnet(r.Context(), chi.URLParam(r, "subnet"), UpdateSubnetParams{
		Options:     req.Options,
		Ranges:      req.Ranges,
		Description: req.Description,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, subnet)
}

func (h *Handler) handleDeleteSubnet(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSubnet(r.Context(), chi.URLParam(r, "subnet"), actorFrom(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleListHosts(w http.ResponseWriter, r *http.Request) {
	subnet := chi.URLParam(r, "subnet")
	hosts, err := h.service.ListHosts(r.Context(), subnet)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listHostsResponse{Subnet: subnet, Hosts: hosts, Total: len(hosts)})
}

func (h *Handler) handleCreateHost(w http.ResponseWriter, r *http.Request) {
	var req createHostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	host, err := h.service.CreateHost(r.Context(), chi.URLParam(r, "subnet"), CreateHostParams{
		CN:           req.CN,
		MAC:          req.MAC,
		FixedAddress: req.FixedAddress,
		Options:      req.Options,
		Description:  req.Description,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, host)
}

func (h *Handler) handleDeleteHost(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteHost(r.Context(), chi.URLParam(r, "subnet"), chi.URLParam(r, "cn"), actorFrom(r))
	if err != nil {
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

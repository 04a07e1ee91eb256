package groups

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

// Handler wires HTTP endpoints for group management.
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

// MountRoutes registers group routes. Reads need any authenticated role,
// writes need operator, destructive operations need admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{cn}", h.handleGet)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Post("/", h.handleCreate)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Patch("/{cn}", h.handleUpdate)
	r.With(h.guard.RequireRole(auth.RoleAdmin)).Delete("/{cn}", h.handleDelete)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Post("/{cn}/members/{username}", h.handleAddMember)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Delete("/{cn}/members/{username}", h.handleRemoveMember)
}

type createRequest struct {
	CN          string   `json:"cn" validate:"required,min=2,max=64"`
	Description string   `json:"description" validate:"max=256"`
	GIDNumber   int      `json:"gidNumber"`
	MemberUID   []string `json:"memberUid"`
}

type updateRequest struct {
	Description *string   `json:"description" validate:"omitempty,max=256"`
	MemberUID   *[]string `json:"memberUid"`
}

type listGroupsResponse struct {
	Groups     []Group           `json:"groups"`
	Pagination shared.Pagination `json:"pagination"`
}

func actorFrom(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.Username
	}
	return ""
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("list groups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	page, pageSize := shared.PageParams(r)
	httpx.JSON(w, http.StatusOK, listGroupsResponse{
		Groups:     shared.PageSlice(groups, page, pageSize),
		Pagination: shared.Pagination{Page: page, PageSize: pageSize, Total: len(groups)},
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.Get(r.Context(), chi.URLParam(r, "cn"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	group, err := h.service.Create(r.Context(), CreateParams{
		CN:          req.CN,
		Description: req.Description,
		GIDNumber:   req.GIDNumber,
		MemberUID:   req.MemberUID,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	group, err := h.service.Update(r.Context(), chi.URLParam(r, "cn"), UpdateParams{
		Description: req.Description,
		MemberUID:   req.MemberUID,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "cn"), actorFrom(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.AddMember(r.Context(), chi.URLParam(r, "cn"), chi.URLParam(r, "username"), actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.RemoveMember(r.Context(), chi.URLParam(r, "cn"), chi.URLParam(r, "username"), actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

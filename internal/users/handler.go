package users

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

// Handler wires HTTP endpoints for user management.
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

// MountRoutes registers user routes. Reads need any authenticated role,
// writes need operator, destructive operations need admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{username}", h.handleGet)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Post("/", h.handleCreate)
	r.With(h.guard.RequireRole(auth.RoleOperator)).Patch("/{username}", h.handleUpdate)
	r.With(h.guard.RequireRole(auth.RoleAdmin)).Delete("/{username}", h.handleDelete)
	r.With(h.guard.RequireRole(auth.RoleAdmin)).Post("/{username}/password", h.handleResetPassword)
}

type createRequest struct {
	UID           string `json:"uid" validate:"required,min=3,max=32"`
	CN            string `json:"cn" validate:"required,max=128"`
	Password      string `json:"userPassword" validate:"required"`
	Mail          string `json:"mail" validate:"omitempty,email"`
	GivenName     string `json:"givenName"`
	SN            string `json:"sn"`
	Description   string `json:"description"`
	UIDNumber     int    `json:"uidNumber"`
	GIDNumber     int    `json:"gidNumber"`
	HomeDirectory string `json:"homeDirectory"`
	LoginShell    string `json:"loginShell"`
}

type updateRequest struct {
	CN          *string `json:"cn"`
	Mail        *string `json:"mail" validate:"omitempty,email"`
	GivenName   *string `json:"givenName"`
	SN          *string `json:"sn"`
	Description *string `json:"description"`
	LoginShell  *string `json:"loginShell"`
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

type listUsersResponse struct {
	Users      []User            `json:"users"`
	Pagination shared.Pagination `json:"pagination"`
}

func actorFrom(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.Username
	}
	return ""
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	page, pageSize := shared.PageParams(r)
	httpx.JSON(w, http.StatusOK, listUsersResponse{
		Users:      shared.PageSlice(users, page, pageSize),
		Pagination: shared.Pagination{Page: page, PageSize: pageSize, Total: len(users)},
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
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
	user, err := h.service.Create(r.Context(), CreateParams{
		UID:           req.UID,
		CN:            req.CN,
		Password:      req.Password,
		Mail:          req.Mail,
		GivenName:     req.GivenName,
		SN:            req.SN,
		Description:   req.Description,
		UIDNumber:     req.UIDNumber,
		GIDNumber:     req.GIDNumber,
		HomeDirectory: req.HomeDirectory,
		LoginShell:    req.LoginShell,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
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
	user, err := h.service.Update(r.Context(), chi.URLParam(r, "username"), UpdateParams{
		CN:          req.CN,
		Mail:        req.Mail,
		GivenName:   req.GivenName,
		SN:          req.SN,
		Description: req.Description,
		LoginShell:  req.LoginShell,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "username"), actorFrom(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "username"), req.NewPassword, actorFrom(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

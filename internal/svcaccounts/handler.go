package svcaccounts

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

// Handler wires HTTP endpoints for service-account management.
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

// MountRoutes registers service-account routes. Every mutation is
// admin-only; these accounts carry machine credentials.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{uid}", h.handleGet)
	r.With(h.guard.RequireRole(auth.RoleAdmin)).Post("/", h.handleCreate)
	r.With(h.guard.RequireRole(auth.RoleAdmin)).Patch("/{uid}", h.handleUpdate)
	r.With(h.guard.RequireRole(auth.RoleAdmin)).Delete("/{uid}", h.handleDelete)
	r.With(h.guard.RequireRole(auth.RoleAdmin)).Post("/{uid}/reset-secret", h.handleResetSecret)
}

type createRequest struct {
	UID         string `json:"uid" validate:"required,min=3,max=32"`
	CN          string `json:"cn" validate:"required,max=128"`
	Mail        string `json:"mail" validate:"omitempty,email"`
	Description string `json:"description" validate:"max=256"`
	UIDNumber   int    `json:"uidNumber"`
	GIDNumber   int    `json:"gidNumber"`
	LoginShell  string `json:"loginShell"`
}

type updateRequest struct {
	CN          *string `json:"cn"`
	Mail        *string `json:"mail" validate:"omitempty,email"`
	Description *string `json:"description" validate:"omitempty,max=256"`
}

type listAccountsResponse struct {
	ServiceAccounts []ServiceAccount  `json:"service_accounts"`
	Pagination      shared.Pagination `json:"pagination"`
}

type resetSecretResponse struct {
	UID    string `json:"uid"`
	Secret string `json:"secret"`
}

func actorFrom(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.Username
	}
	return ""
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("list service accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	page, pageSize := shared.PageParams(r)
	httpx.JSON(w, http.StatusOK, listAccountsResponse{
		ServiceAccounts: shared.PageSlice(accounts, page, pageSize),
		Pagination:      shared.Pagination{Page: page, PageSize: pageSize, Total: len(accounts)},
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Get(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
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
	created, err := h.service.Create(r.Context(), CreateParams{
		UID:         req.UID,
		CN:          req.CN,
		Mail:        req.Mail,
		Description: req.Description,
		UIDNumber:   req.UIDNumber,
		GIDNumber:   req.GIDNumber,
		LoginShell:  req.LoginShell,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
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
	account, err := h.service.Update(r.Context(), chi.URLParam(r, "uid"), UpdateParams{
		CN:          req.CN,
		Mail:        req.Mail,
		Description: req.Description,
	}, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "uid"), actorFrom(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleResetSecret(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	secret, err := h.service.ResetSecret(r.Context(), uid, actorFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resetSecretResponse{UID: uid, Secret: secret})
}

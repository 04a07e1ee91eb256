package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/netadmind/netadmind/internal/platform/httpx"
	"github.com/netadmind/netadmind/internal/shared"
)

// rolePermissions is the static, role-indexed display table returned by
// /auth/me. It is presentation data for clients; enforcement is the
// per-route role guard.
var rolePermissions = map[Role][]string{
	RoleAdmin: {"users:*", "groups:*", "dns:*", "dhcp:*", "ipam:*", "audit:read"},
	RoleOperator: {
		"users:read", "users:write", "groups:read", "groups:write",
		"dns:read", "dns:write", "dhcp:read", "dhcp:write",
		"ipam:read", "ipam:write",
	},
	RoleReadonly: {"users:read", "groups:read", "dns:read", "dhcp:read", "ipam:read"},
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	middleware Middleware
	validator  *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw Middleware) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		middleware: mw,
		validator:  validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.Authenticate)
		r.Get("/me", h.handleMe)
		r.Post("/logout", h.handleLogout)
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type userInfoResponse struct {
	Username    string   `json:"username"`
	CN          string   `json:"cn"`
	Email       string   `json:"email"`
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		// Invalid shape gets the same generic answer as a wrong password so
		// the response never reveals which field was at fault.
		httpx.RespondError(w, shared.ErrInvalidCredentials)
		return
	}

	pair, err := h.service.Login(r.Context(), req.Username, req.Password, r.RemoteAddr)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidToken)
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrInvalidToken)
		return
	}
	perms := rolePermissions[identity.Role]
	if perms == nil {
		perms = rolePermissions[RoleReadonly]
	}
	httpx.JSON(w, http.StatusOK, userInfoResponse{
		Username:    identity.Username,
		CN:          identity.DisplayName,
		Email:       identity.Email,
		Role:        identity.Role,
		Permissions: perms,
	})
}

// handleLogout is advisory: tokens have no server-side revocation, clients
// simply discard them. The endpoint exists so logouts show up in logs.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if identity, ok := IdentityFromContext(r.Context()); ok {
		h.logger.Info("user logged out", slog.String("username", identity.Username))
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netadmind/netadmind/internal/audit"
	"github.com/netadmind/netadmind/internal/auth"
	"github.com/netadmind/netadmind/internal/dhcp"
	"github.com/netadmind/netadmind/internal/dnszones"
	"github.com/netadmind/netadmind/internal/groups"
	"github.com/netadmind/netadmind/internal/health"
	"github.com/netadmind/netadmind/internal/ipam"
	"github.com/netadmind/netadmind/internal/observability"
	"github.com/netadmind/netadmind/internal/svcaccounts"
	"github.com/netadmind/netadmind/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config
	Guard  auth.Middleware

	AuthHandler           *auth.Handler
	UsersHandler          *users.Handler
	GroupsHandler         *groups.Handler
	ServiceAccountHandler *svcaccounts.Handler
	DNSHandler            *dnszones.Handler
	DHCPHandler           *dhcp.Handler
	IPAMHandler           *ipam.Handler
	AuditHandler          *audit.Handler
	HealthHandler         *health.Handler
	Metrics               *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults. Everything but
// the auth endpoints, probes and metrics sits behind bearer authentication.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	params.HealthHandler.MountRoutes(r)

	r.Route("/auth", params.AuthHandler.MountRoutes)

	authenticated := func(mount func(chi.Router)) func(chi.Router) {
		return func(r chi.Router) {
			r.Use(params.Guard.Authenticate)
			mount(r)
		}
	}

	r.Route("/users", authenticated(params.UsersHandler.MountRoutes))
	r.Route("/groups", authenticated(params.GroupsHandler.MountRoutes))
	r.Route("/service-accounts", authenticated(params.ServiceAccountHandler.MountRoutes))
	r.Route("/dns", authenticated(params.DNSHandler.MountRoutes))
	r.Route("/dhcp", authenticated(params.DHCPHandler.MountRoutes))
	r.Route("/ipam", authenticated(params.IPAMHandler.MountRoutes))

	r.Route("/audit", func(r chi.Router) {
		r.Use(params.Guard.Authenticate)
		r.Use(params.Guard.RequireRole(auth.RoleAdmin))
		params.AuditHandler.MountRoutes(r)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

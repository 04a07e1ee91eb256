package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/netadmind/netadmind/internal/platform/httpx"
	"github.com/netadmind/netadmind/internal/shared"
)

// Middleware wires bearer-token authentication and the role guard for HTTP
// handlers. A request moves Unauthenticated -> Authenticated -> Authorized;
// any failed edge terminates with 401 or 403 and the handler never runs.
type Middleware struct {
	Codec  *TokenCodec
	Logger *slog.Logger
}

// Authenticate verifies the Authorization bearer token as a live access
// token and stores the identity in the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			httpx.RespondError(w, shared.ErrInvalidToken)
			return
		}
		claims, err := m.Codec.Verify(token, KindAccess)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("token rejected", slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, shared.ErrInvalidToken)
			return
		}
		identity := Identity{
			Username:    claims.Subject,
			Role:        claims.Role,
			Email:       claims.Email,
			DisplayName: claims.DisplayName,
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// RequireRole accepts an already-authenticated identity whose role is at
// least the minimum. It never contacts the directory or database.
func (m Middleware) RequireRole(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrInvalidToken)
				return
			}
			if !identity.Role.Satisfies(min) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden",
					fmt.Sprintf("Insufficient permissions. Required role: %s", min))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

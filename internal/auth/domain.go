package auth

import (
	"context"
	"strings"
)

// Role is one of the fixed set of access levels, totally ordered
// admin > operator > readonly.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleReadonly Role = "readonly"
)

// rank maps a role onto the total order. Unknown values rank lowest so a
// corrupted or future role can never grant more than readonly.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleOperator:
		return 2
	default:
		return 1
	}
}

// Satisfies reports whether the role meets a minimum requirement.
func (r Role) Satisfies(min Role) bool {
	return r.rank() >= min.rank()
}

// Principal is a verified identity resolved from the directory.
type Principal struct {
	Username    string
	DN          string
	DisplayName string
	Email       string
	Groups      []string
}

// ResolveRole derives a role from directory group memberships. The admin
// marker wins over the operator marker; no marker means readonly.
func ResolveRole(groups []string) Role {
	for _, group := range groups {
		if strings.Contains(strings.ToLower(group), "cn=ldap-admins") {
			return RoleAdmin
		}
	}
	for _, group := range groups {
		if strings.Contains(strings.ToLower(group), "cn=ldap-operators") {
			return RoleOperator
		}
	}
	return RoleReadonly
}

// Identity is the authenticated actor attached to a request context.
type Identity struct {
	Username    string
	Role        Role
	Email       string
	DisplayName string
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

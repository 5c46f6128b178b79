package shared

import "context"

// Role enumerates the roles the auth collaborator can hand us.
type Role string

const (
	// RoleAdmin may manage users and roles.
	RoleAdmin Role = "admin"
	// RoleStaff may operate the warehouse surfaces.
	RoleStaff Role = "staff"
)

// Identity is the verified caller supplied by the auth collaborator.
type Identity struct {
	UserID int64
	Name   string
	Role   Role
}

// IsAdmin reports whether the identity may perform admin-only actions.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

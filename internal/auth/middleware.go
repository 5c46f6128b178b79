package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/httpx"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// IdentityResolver resolves bearer tokens into identities.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (shared.Identity, error)
}

// Middleware guards routes behind the auth collaborator.
type Middleware struct {
	Resolver IdentityResolver
	Logger   *slog.Logger
}

// RequireAuth rejects requests without a valid bearer token and stores
// the identity in the request context.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		identity, err := m.Resolver.Resolve(r.Context(), token)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("auth failed", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

// RequireAdmin allows only identities holding the admin role. Must be
// mounted inside a RequireAuth group.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := shared.IdentityFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !identity.IsAdmin() {
			httpx.Error(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

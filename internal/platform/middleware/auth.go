package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"ssoportal/internal/authz"
	"ssoportal/pkg/domain"
	"ssoportal/pkg/requestcontext"
)

// PrincipalLoader turns a bearer token into an authenticated principal. The
// implementation re-checks the admin row so revoked or deactivated admins are
// rejected even while their token is still unexpired.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, token string) (*authz.Principal, error)
}

type contextKeyPrincipal struct{}

// ContextKeyPrincipal is exported for tests that inject a principal directly.
var ContextKeyPrincipal = contextKeyPrincipal{}

// GetPrincipal retrieves the authenticated principal from the context, or nil.
func GetPrincipal(ctx context.Context) *authz.Principal {
	p, _ := ctx.Value(ContextKeyPrincipal).(*authz.Principal)
	return p
}

// WithPrincipal injects a principal into a context. Test helper.
func WithPrincipal(ctx context.Context, p *authz.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// RequireAdmin authenticates the bearer token, loads the principal, and gates
// the route on the allowed roles. An empty role list admits any authenticated
// admin.
func RequireAdmin(loader PrincipalLoader, logger *slog.Logger, allowed ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			principal, err := loader.LoadPrincipal(ctx, token)
			if err != nil || principal == nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				unauthorized(w)
				return
			}

			if err := authz.Authorize(principal, allowed, nil); err != nil {
				logger.WarnContext(ctx, "forbidden access",
					"role", principal.Role,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	const bearerPrefix = "Bearer "
	token, ok := strings.CutPrefix(authHeader, bearerPrefix)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}

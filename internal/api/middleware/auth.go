package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/api/respond"
	"github.com/vizora/entitlements/internal/auth"
)

type contextKey struct{}

var principalKey contextKey

// WithPrincipal attaches the authenticated caller to ctx.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller attached by Auth, if any.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	return p, ok
}

// Auth resolves the session token from the Authorization header (API
// clients) or the token cookie (admin console) and rejects the request
// when neither verifies.
func Auth(tokens auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w)
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.Principal())))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	respond.JSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
}

func forbidden(w http.ResponseWriter) {
	respond.JSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
}

func GetUserID(ctx context.Context) uuid.UUID {
	p, _ := PrincipalFrom(ctx)
	return p.UserID
}

// GetOrganizationID returns the tenant the caller acts for.
func GetOrganizationID(ctx context.Context) uuid.UUID {
	p, _ := PrincipalFrom(ctx)
	return p.OrganizationID
}

func GetUserEmail(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.Email
}

func GetUserRole(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.Role
}

func IsSuperAdmin(ctx context.Context) bool {
	p, _ := PrincipalFrom(ctx)
	return p.SuperAdmin
}

// RequireRole admits callers whose organization role is one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[GetUserRole(r.Context())]; !ok {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin gates the platform admin console.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsSuperAdmin(r.Context()) {
			forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

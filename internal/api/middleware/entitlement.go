package middleware

import (
	"log/slog"
	"net/http"

	"github.com/vizora/entitlements/internal/api/respond"
	"github.com/vizora/entitlements/internal/entitlement"
)

// RequireActiveSubscription rejects mutating requests from organizations
// whose subscription is neither active nor in a running trial. Must run
// after Auth.
func RequireActiveSubscription(guard *entitlement.Guard, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := GetOrganizationID(r.Context())
			if err := guard.CheckSubscription(r.Context(), orgID, r.Method); err != nil {
				respond.Error(w, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireQuota rejects the request when the organization has no room left
// in the given dimension. Must run after Auth.
func RequireQuota(guard *entitlement.Guard, dim entitlement.QuotaDimension, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := GetOrganizationID(r.Context())
			if err := guard.CheckQuota(r.Context(), orgID, dim); err != nil {
				respond.Error(w, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

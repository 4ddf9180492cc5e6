package middleware

import (
	"net/http"
	"slices"

	"storefront-client/internal/domain"
	"storefront-client/pkg/utils"
)

// RequireRole lets through only callers whose role is one of roles.
// MUST be used AFTER AuthMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized: No user found in context")
				return
			}
			if !slices.Contains(roles, user.Role) {
				utils.WriteError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminMiddleware ensures the authenticated user has the admin role.
func AdminMiddleware(next http.Handler) http.Handler {
	return RequireRole(domain.RoleAdmin)(next)
}

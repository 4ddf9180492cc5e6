package middleware

import (
	"context"
	"net/http"

	"storefront-client/internal/domain"
	"storefront-client/pkg/utils"
)

// AuthMiddleware requires a valid bearer token and puts the caller, built from
// the token claims, into the request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := utils.BearerToken(r)
		if tokenString == "" {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized: No token provided")
			return
		}

		claims, err := utils.ValidateJWT(tokenString)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}
		email, _ := claims["email"].(string)
		role, _ := claims["role"].(string)
		name, _ := claims["name"].(string)

		user := &domain.User{
			ID:    sub,
			Name:  name,
			Email: email,
			Role:  role,
		}

		ctx := context.WithValue(r.Context(), domain.UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the caller set by AuthMiddleware.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(domain.UserContextKey).(*domain.User)
	return user, ok && user != nil
}

package middleware

import (
	"net/http"
	"slices"

	"github.com/learnsy/backend/libs/auth/service"
)

// RoleMiddleware validates the JWT access token and lets the request through only when the user's role
// is one of allowedRoles. Roles are not hierarchical: a faculty member is not a student.
func RoleMiddleware(tokenGenerator *service.TokenGenerator, allowedRoles ...int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			userID, role, err := tokenGenerator.ValidateAccessToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			if !slices.Contains(allowedRoles, role) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, role)))
		})
	}
}

package middleware

import (
	"net/http"

	apiContext "mailpanel/internal/api/context"
	"mailpanel/internal/engine/access"
	"mailpanel/internal/pkg/errors"
	"mailpanel/internal/platform/auth"
)

// AccessMiddleware gates handlers on hierarchy level or named permission.
// Hierarchy is the coarse gate and comes straight from verified claims;
// named permissions are the fine-grained gate and are re-read from the store
// on every check so revocation is immediate.
type AccessMiddleware struct {
	resolver *access.Resolver
}

func NewAccessMiddleware(resolver *access.Resolver) *AccessMiddleware {
	return &AccessMiddleware{resolver: resolver}
}

func (m *AccessMiddleware) RequireLevel(requiredLevel int) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
				return
			}

			if !access.SatisfiesLevel(claims.Hierarchy, requiredLevel) {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient privilege level", nil)
				return
			}

			next(w, r)
		}
	}
}

func (m *AccessMiddleware) RequirePermission(permissionName string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
				return
			}

			// Super admin bypasses named permission checks.
			if access.SatisfiesLevel(claims.Hierarchy, 1) {
				next(w, r)
				return
			}

			allowed, err := m.resolver.HasPermission(claims.UserID, permissionName)
			if err != nil {
				errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to resolve permissions", nil)
				return
			}
			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Missing required permission", nil)
				return
			}

			next(w, r)
		}
	}
}

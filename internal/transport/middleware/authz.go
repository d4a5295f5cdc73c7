package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/flightbase/fbo-management/internal"
	"github.com/flightbase/fbo-management/internal/accesscontrol"
	"github.com/go-chi/chi"
)

// Authorizer is the slice of the permission resolver route guards need.
type Authorizer interface {
	IsAuthorized(ctx context.Context, userID int64, permissionName string, rc *accesscontrol.ResourceContext) (bool, error)
}

// RequirePermission guards a route with an unscoped permission check.
// Denials answer a generic 403; the grant source is never exposed.
func RequirePermission(resolver Authorizer, logger *slog.Logger, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := internal.UserIDFromContext(r.Context())
			if userID == 0 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			allowed, err := resolver.IsAuthorized(r.Context(), userID, permission, nil)
			if err != nil {
				logger.Error("authorization check failed",
					"error", err,
					"user_id", userID,
					"permission", permission)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				logger.Warn("access denied",
					"user_id", userID,
					"permission", permission,
					"path", r.URL.Path)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireResourcePermission guards a route with a resource-scoped check.
// The context's IDParam names the chi URL parameter holding the resource
// id; it is resolved per request before the resolver is consulted.
func RequireResourcePermission(resolver Authorizer, logger *slog.Logger, permission string, rc *accesscontrol.ResourceContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := internal.UserIDFromContext(r.Context())
			if userID == 0 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			scoped := rc
			if rc != nil && rc.IDParam != "" {
				resourceID := chi.URLParam(r, rc.IDParam)
				if resourceID == "" {
					logger.Error("resource id parameter missing from route",
						"id_param", rc.IDParam,
						"path", r.URL.Path)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				scoped = rc.WithResolvedID(resourceID)
			}

			allowed, err := resolver.IsAuthorized(r.Context(), userID, permission, scoped)
			if err != nil {
				logger.Error("authorization check failed",
					"error", err,
					"user_id", userID,
					"permission", permission)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				logger.Warn("access denied",
					"user_id", userID,
					"permission", permission,
					"resource_type", scoped.ResourceType,
					"path", r.URL.Path)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

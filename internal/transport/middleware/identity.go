package middleware

import (
	"net/http"
	"strconv"

	"github.com/flightbase/fbo-management/internal"
	"github.com/flightbase/fbo-management/pkg/logger"
)

// IdentityHeader carries the authenticated user id injected by the
// upstream gateway. Authentication itself happens there; this service
// only consumes the result.
const IdentityHeader = "X-User-ID"

// Identity extracts the gateway-injected user id and places it on the
// request context. Requests without a parseable id proceed anonymously;
// protected routes reject them downstream.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(IdentityHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ctx := internal.ContextWithUserID(r.Context(), userID)
		ctx = logger.With(ctx, "userID", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

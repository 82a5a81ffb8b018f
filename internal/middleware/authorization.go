package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RequireSelf allows the request only when the URL parameter param names the
// authenticated account. It must run after AuthMiddleware.
func RequireSelf(param string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, ok := GetUsername(r.Context())
			if !ok {
				logger.Warn("Username not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if target := chi.URLParam(r, param); target != username {
				logger.Warn("Account attempted to modify another account's resource",
					zap.String("username", username),
					zap.String("target", target),
				)
				RespondWithError(w, http.StatusForbidden, "you can only modify your own profile")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

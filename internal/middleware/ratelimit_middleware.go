package middleware

import (
	"net/http"

	"model_gateway/internal/ratelimit"
	"model_gateway/internal/utils"
)

// RateLimit throttles per authenticated user. It must run after
// UserAuth so the caller identity is on the context.
func RateLimit(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			if !limiter.Allow(r.Context(), user.ID.String()) {
				utils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"model_gateway/internal/auth"
	"model_gateway/internal/logging"
	"model_gateway/internal/models"
	"model_gateway/internal/storage"
	"model_gateway/internal/utils"
)

// ContextKey is the type for values stored on the request context.
type ContextKey string

const (
	// UserKey holds the authenticated *models.User.
	UserKey ContextKey = "user"

	// ServiceTokenKey holds the *models.ServiceToken for machine callers.
	ServiceTokenKey ContextKey = "serviceToken"
)

func bearerToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if token == "" {
		return ""
	}
	return strings.TrimPrefix(token, "Bearer ")
}

// UserAuth validates the caller's JWT and stores the user on the
// request context. Every /v1/* route runs behind it.
func UserAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			user, err := jwtManager.Verify(token)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser retrieves the authenticated user from the request context.
func GetUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok
}

// ManagementAuth guards the admin API. Two caller types are accepted:
// a user JWT whose admin claim is set, or a service token carrying a
// role that covers the required one.
func ManagementAuth(jwtManager *auth.JWTManager, tokens *storage.ServiceTokenRepository, required auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			if user, err := jwtManager.Verify(token); err == nil {
				if !user.IsAdmin {
					utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
					return
				}
				ctx := context.WithValue(r.Context(), UserKey, user)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			svcToken, err := tokens.GetByHash(r.Context(), auth.HashToken(token))
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if !svcToken.IsValid() {
				utils.RespondWithError(w, http.StatusUnauthorized, "Token disabled or expired")
				return
			}
			if !tokenCovers(svcToken, required) {
				utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			tokens.TouchLastUsed(r.Context(), svcToken.TokenHash)
			logging.Debugf("service token %s authenticated for %s %s", svcToken.ServiceName, r.Method, r.URL.Path)

			ctx := context.WithValue(r.Context(), ServiceTokenKey, svcToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenCovers(token *models.ServiceToken, required auth.Role) bool {
	for _, role := range token.Roles {
		if auth.Role(role).Covers(required) {
			return true
		}
	}
	return false
}

// GetServiceToken retrieves the service token from the request context.
func GetServiceToken(ctx context.Context) (*models.ServiceToken, bool) {
	token, ok := ctx.Value(ServiceTokenKey).(*models.ServiceToken)
	return token, ok
}

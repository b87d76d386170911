package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"backoffice/internal/domain/auth"
	"backoffice/internal/transport/http/api"
)

const APIKeyHeader = "X-API-Key"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.UserContext, error)
	AuthenticateAPIKey(ctx context.Context, key string) (auth.UserContext, error)
}

// Auth resolves a bearer token or API key into the request user. Requests
// without usable credentials continue anonymously; RequireAuth and
// RequirePermission turn them away.
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
				user, err := authn.AuthenticateAPIKey(r.Context(), key)
				if err != nil {
					slog.Debug("api key rejected", "err", err, "requestId", GetRequestID(r.Context()))
					next.ServeHTTP(w, r)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := authn.Authenticate(r.Context(), parts[1])
			if err != nil {
				slog.Debug("bearer token rejected", "err", err, "requestId", GetRequestID(r.Context()))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

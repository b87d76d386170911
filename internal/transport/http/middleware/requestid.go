package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"backoffice/internal/platform/requestctx"
	"backoffice/internal/transport/http/shared"
)

const RequestIDHeader = "X-Request-ID"

// RequestID honours a caller-supplied id of sane length and otherwise mints one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := requestctx.WithRequestID(r.Context(), requestID)
		ctx = requestctx.WithClientIP(ctx, shared.RemoteIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

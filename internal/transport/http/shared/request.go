package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"backoffice/internal/platform/requestctx"
	"backoffice/internal/transport/http/api"
)

// DecodeJSON reads a single JSON document into dest, rejecting unknown fields.
// It writes the error response itself and reports whether decoding succeeded.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestctx.GetRequestID(r.Context()))
		case errors.Is(err, io.EOF):
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "request body is required", requestctx.GetRequestID(r.Context()))
		default:
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestctx.GetRequestID(r.Context()))
		}
		return false
	}
	return true
}

// PathID returns the named URL parameter when it is a UUID; otherwise it
// answers 404 and returns false.
func PathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := chi.URLParam(r, name)
	if _, err := uuid.Parse(raw); err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestctx.GetRequestID(r.Context()))
		return "", false
	}
	return raw, true
}

func ClientIP(r *http.Request) string {
	if ip := requestctx.GetClientIP(r.Context()); ip != "" {
		return ip
	}
	return RemoteIP(r)
}

// RemoteIP prefers the first X-Forwarded-For hop.
func RemoteIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// VersionParam reads the required ?version= query parameter used by deletes.
func VersionParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("version"))
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		FailValidation(w, requestctx.GetRequestID(r.Context()), []ValidationIssue{{Field: "version", Reason: "is required and must be a positive integer"}})
		return 0, false
	}
	return version, true
}

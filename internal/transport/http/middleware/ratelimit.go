package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/shared"
)

// RateLimitKeyFunc picks the bucket a request counts against.
type RateLimitKeyFunc func(r *http.Request) string

const maxKeyedBody = 64 * 1024

type fixedWindow struct {
	count int
	reset time.Time
}

// limiter is a fixed window counter per key. Expired windows are swept once
// per span so idle clients do not pile up.
type limiter struct {
	mu        sync.Mutex
	limit     int
	span      time.Duration
	key       RateLimitKeyFunc
	windows   map[string]*fixedWindow
	nextSweep time.Time
}

func newLimiter(limit int, span time.Duration, key RateLimitKeyFunc) *limiter {
	if key == nil {
		key = actorOrIPKey
	}
	return &limiter{limit: limit, span: span, key: key, windows: map[string]*fixedWindow{}}
}

// take counts one hit for key and reports what is left of its window.
func (l *limiter) take(key string, now time.Time) (remaining, resetIn int, over bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextSweep) {
		for k, fw := range l.windows {
			if now.After(fw.reset) {
				delete(l.windows, k)
			}
		}
		l.nextSweep = now.Add(l.span)
	}

	fw, ok := l.windows[key]
	if !ok || now.After(fw.reset) {
		fw = &fixedWindow{reset: now.Add(l.span)}
		l.windows[key] = fw
	}
	fw.count++
	return max(l.limit-fw.count, 0), ceilSeconds(fw.reset.Sub(now)), fw.count > l.limit
}

// allow answers 429 and returns false once the caller is over the limit.
func (l *limiter) allow(w http.ResponseWriter, r *http.Request, suffix string) bool {
	if l.limit <= 0 {
		return true
	}
	key := l.key(r)
	if key == "" {
		key = clientIPKey(r)
	}
	if suffix != "" {
		key += "|" + suffix
	}
	remaining, resetIn, over := l.take(key, time.Now())

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.Itoa(resetIn))
	if !over {
		return true
	}
	h.Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
	slog.Warn("rate limit exceeded", "key", key, "method", r.Method, "path", r.URL.Path, "limit", l.limit)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

// RateLimit caps every request per signed-in actor, or per client IP for
// anonymous callers.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	l := newLimiter(limit, window, actorOrIPKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.allow(w, r, "") {
				next.ServeHTTP(w, r)
			}
		})
	}
}

type sensitiveScope int

const (
	scopeNone sensitiveScope = iota
	// scopeCredentials covers anonymous credential endpoints, limited per IP
	// and per submitted email.
	scopeCredentials
	// scopeActor covers state-changing workflow routes, limited per actor
	// and route.
	scopeActor
)

// sensitiveRoutes is keyed by method and chi route pattern below /api/v1.
var sensitiveRoutes = map[string]sensitiveScope{
	"POST /auth/login":         scopeCredentials,
	"POST /auth/request-reset": scopeCredentials,
	"POST /auth/reset":         scopeCredentials,
	"POST /auth/mfa/setup":     scopeCredentials,
	"POST /auth/mfa/enable":    scopeCredentials,
	"POST /auth/mfa/disable":   scopeCredentials,

	"POST /auth/refresh":                        scopeActor,
	"POST /api-keys":                            scopeActor,
	"POST /contracts/{contractID}/submit":       scopeActor,
	"POST /contracts/{contractID}/approve":      scopeActor,
	"POST /contracts/{contractID}/reject":       scopeActor,
	"POST /contracts/{contractID}/cancel":       scopeActor,
	"PUT /roles/{roleID}/permissions":           scopeActor,
	"POST /jobs/{jobName}/run":                  scopeActor,
	"PUT /identity-documents/{documentID}/file": scopeActor,
}

// SensitiveMutationRateLimit adds tighter limits to the routes listed in
// sensitiveRoutes. It resolves the route pattern itself so it can sit in
// front of the subrouter that owns the route.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	credLimit := max(baseLimit/4, 1)
	byIP := newLimiter(credLimit, window, clientIPKey)
	byEmail := newLimiter(credLimit, window, emailOrIPKey("email"))
	byActor := newLimiter(max(baseLimit/2, 1), window, actorOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pattern := routePattern(r)
			switch sensitiveRoutes[r.Method+" "+pattern] {
			case scopeCredentials:
				if !byIP.allow(w, r, "") || !byEmail.allow(w, r, "") {
					return
				}
			case scopeActor:
				if !byActor.allow(w, r, pattern) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// routePattern finds the pattern the request will be routed to, without the
// /api/v1 prefix and trailing slash. It is empty for unknown routes.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return ""
	}
	pattern := rctx.Routes.Find(chi.NewRouteContext(), r.Method, r.URL.Path)
	pattern = strings.TrimPrefix(pattern, "/api/v1")
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	return pattern
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.ActorID() != "" {
		return "actor:" + user.ActorID()
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	return "ip:" + shared.ClientIP(r)
}

// emailOrIPKey keys on a JSON body field so one address cannot be hammered
// from many IPs. The body is restored for the handler.
func emailOrIPKey(field string) RateLimitKeyFunc {
	return func(r *http.Request) string {
		if email := bodyField(r, field); email != "" {
			return "email:" + strings.ToLower(email)
		}
		return clientIPKey(r)
	}
}

func bodyField(r *http.Request, field string) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxKeyedBody))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if json.Unmarshal(raw, &payload) != nil {
		return ""
	}
	var value string
	if json.Unmarshal(payload[field], &value) != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

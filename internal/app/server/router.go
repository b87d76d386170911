package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/platform/config"
	"backoffice/internal/platform/metrics"
	"backoffice/internal/transport/http/api"
	audithandler "backoffice/internal/transport/http/handlers/audit"
	authhandler "backoffice/internal/transport/http/handlers/auth"
	certificationshandler "backoffice/internal/transport/http/handlers/certifications"
	contractshandler "backoffice/internal/transport/http/handlers/contracts"
	documentshandler "backoffice/internal/transport/http/handlers/documents"
	employeeshandler "backoffice/internal/transport/http/handlers/employees"
	jobshandler "backoffice/internal/transport/http/handlers/jobs"
	notificationshandler "backoffice/internal/transport/http/handlers/notifications"
	orghandler "backoffice/internal/transport/http/handlers/org"
	roleshandler "backoffice/internal/transport/http/handlers/roles"
	taskshandler "backoffice/internal/transport/http/handlers/tasks"
	"backoffice/internal/transport/http/middleware"
)

// multipartOverhead leaves room for form boundaries and fields around an
// upload of MaxUploadBytes.
const multipartOverhead = 1 << 20

type ReadyFunc func(ctx context.Context) error

// NewRouter mounts the health checks, the metrics endpoint and the /api/v1 tree.
func NewRouter(cfg config.Config, s Services, collector *metrics.Collector, ready ReadyFunc) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, map[string]string{"status": "ok"}, middleware.GetRequestID(r.Context()))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			slog.Warn("readiness check failed", "err", err)
			api.Fail(w, http.StatusServiceUnavailable, "unavailable", "dependencies not ready", middleware.GetRequestID(r.Context()))
			return
		}
		api.Success(w, map[string]string{"status": "ready"}, middleware.GetRequestID(r.Context()))
	})
	if cfg.MetricsEnabled && collector != nil {
		router.Method(http.MethodGet, "/metrics", collector.Handler())
	}

	perms := s.Auth
	auditor := s.Audit
	authHandler := authhandler.NewHandler(s.Auth, auditor, perms)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BodyLimit(cfg.MaxBodyBytes, cfg.MaxUploadBytes+multipartOverhead))
		r.Use(middleware.Auth(s.Auth))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			authHandler.RegisterRoutes(r)
			employeeshandler.NewHandler(s.Employees, auditor, perms).RegisterRoutes(r)
			orghandler.NewHandler(s.Org, auditor, perms).RegisterRoutes(r)
			contractshandler.NewHandler(s.Contracts, auditor, perms).WithIdempotency(s.Idempotency).RegisterRoutes(r)
			certificationshandler.NewHandler(s.Certifications, auditor, perms).RegisterRoutes(r)
			documentshandler.NewHandler(s.Documents, auditor, perms).RegisterRoutes(r)
			taskshandler.NewHandler(s.Tasks, auditor, perms).WithIdempotency(s.Idempotency).RegisterRoutes(r)
			notificationshandler.NewHandler(s.Notifications, auditor, perms).RegisterRoutes(r)
			roleshandler.NewHandler(s.Access, auditor, perms).RegisterRoutes(r)
			audithandler.NewHandler(s.Audit, perms).RegisterRoutes(r)
			jobshandler.NewHandler(s.Jobs, auditor, perms).WithIdempotency(s.Idempotency).RegisterRoutes(r)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", middleware.GetRequestID(r.Context()))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", middleware.GetRequestID(r.Context()))
	})
	return router
}

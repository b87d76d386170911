package jobshandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/platform/jobs"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
	"backoffice/internal/transport/http/shared"
)

type Handler struct {
	Service *jobs.Service
	Audit   audit.Recorder
	Perms   middleware.PermissionStore
	Keys    middleware.IdempotencyKeys
}

func NewHandler(service *jobs.Service, auditor audit.Recorder, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditor, Perms: perms}
}

// WithIdempotency lets callers retry mutations with an Idempotency-Key.
func (h *Handler) WithIdempotency(keys middleware.IdempotencyKeys) *Handler {
	h.Keys = keys
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermJobsRun, h.Perms))
		r.Get("/", h.handleNames)
		r.Get("/runs", h.handleRuns)
		r.With(middleware.Idempotent(h.Keys, "jobs.run")).Post("/{jobName}/run", h.handleRun)
	})
}

func (h *Handler) handleNames(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Service.Names(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r)
	runs, total, err := h.Service.ListRuns(r.Context(), r.URL.Query().Get("jobType"), page.Limit, page.Offset)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotal(w, total)
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	name := chi.URLParam(r, "jobName")
	run, err := h.Service.RunNow(r.Context(), name)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Audit.Record(r.Context(), user.ActorID(), "jobs.run", "job", name, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, run); err != nil {
		slog.Warn("audit jobs.run failed", "err", err)
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

package taskshandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/tasks"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
	"backoffice/internal/transport/http/shared"
)

type Handler struct {
	Service *tasks.Service
	Audit   audit.Recorder
	Perms   middleware.PermissionStore
	Keys    middleware.IdempotencyKeys
}

func NewHandler(service *tasks.Service, auditor audit.Recorder, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditor, Perms: perms}
}

// WithIdempotency lets callers retry mutations with an Idempotency-Key.
func (h *Handler) WithIdempotency(keys middleware.IdempotencyKeys) *Handler {
	h.Keys = keys
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermTasksRead, h.Perms)
	write := middleware.RequirePermission(auth.PermTasksWrite, h.Perms)

	r.Route("/tasks", func(r chi.Router) {
		r.With(read).Get("/", h.handleList)
		r.With(write, middleware.Idempotent(h.Keys, "tasks.create")).Post("/", h.handleCreate)
		r.With(read).Get("/{taskID}", h.handleGet)
		r.With(write).Put("/{taskID}", h.handleUpdate)
		r.With(write).Delete("/{taskID}", h.handleDelete)
		// Assignees move their own tasks along without tasks.write.
		r.With(read).Post("/{taskID}/status", h.handleStatus)
	})
}

type taskRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	AssigneeID  string `json:"assigneeId" validate:"omitempty,uuid"`
	EmployeeID  string `json:"employeeId" validate:"omitempty,uuid"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     string `json:"dueDate"`
	Version     int    `json:"version"`
}

type statusRequest struct {
	Status  string `json:"status" validate:"required,oneof=todo in_progress done cancelled"`
	Version int    `json:"version" validate:"required,gte=1"`
}

func (h *Handler) viewer(r *http.Request) (tasks.Viewer, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		return tasks.Viewer{}, false
	}
	return tasks.Viewer{
		ActorID: user.ActorID(),
		UserID:  user.UserID,
		Manage:  middleware.Allowed(r, h.Perms, auth.PermTasksWrite),
	}, true
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, actorID, action, id string, before, after any) {
	if err := h.Audit.Record(r.Context(), actorID, action, "task", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit "+action+" failed", "err", err)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(r)
	if !ok {
		unauthorized(w, r)
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("status", q.Get("status"), tasks.Statuses, "is not a known status")
	v.Enum("priority", q.Get("priority"), tasks.Priorities, "is not a known priority")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	filter := tasks.Filter{
		AssigneeID: q.Get("assigneeId"),
		EmployeeID: q.Get("employeeId"),
		Status:     q.Get("status"),
		Priority:   q.Get("priority"),
		Overdue:    q.Get("overdue") == "true",
	}
	page := shared.ParsePage(r)
	items, total, err := h.Service.List(r.Context(), viewer, filter, page.Limit, page.Offset)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(r)
	if !ok {
		unauthorized(w, r)
		return
	}
	id, ok := shared.PathID(w, r, "taskID")
	if !ok {
		return
	}
	t, err := h.Service.Get(r.Context(), viewer, id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, t, middleware.GetRequestID(r.Context()))
}

func (req taskRequest) input(v *shared.Validator) tasks.Input {
	return tasks.Input{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		EmployeeID:  req.EmployeeID,
		Priority:    req.Priority,
		DueDate:     v.OptionalDate("dueDate", req.DueDate),
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(r)
	if !ok {
		unauthorized(w, r)
		return
	}
	var req taskRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	in := req.input(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	t, err := h.Service.Create(r.Context(), viewer, in)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, viewer.ActorID, "tasks.create", t.ID, nil, t)
	api.Created(w, t, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(r)
	if !ok {
		unauthorized(w, r)
		return
	}
	id, ok := shared.PathID(w, r, "taskID")
	if !ok {
		return
	}
	var req taskRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	in := req.input(v)
	if req.Version < 1 {
		v.Add("version", "is required")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	before, err := h.Service.Get(r.Context(), viewer, id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	t, err := h.Service.Update(r.Context(), viewer, id, req.Version, in)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, viewer.ActorID, "tasks.update", id, before, t)
	api.Success(w, t, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(r)
	if !ok {
		unauthorized(w, r)
		return
	}
	id, ok := shared.PathID(w, r, "taskID")
	if !ok {
		return
	}
	version, ok := shared.VersionParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), viewer, id, version); err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, viewer.ActorID, "tasks.delete", id, map[string]int{"version": version}, nil)
	api.Message(w, "task deleted", middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(r)
	if !ok {
		unauthorized(w, r)
		return
	}
	id, ok := shared.PathID(w, r, "taskID")
	if !ok {
		return
	}
	var req statusRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	t, err := h.Service.ChangeStatus(r.Context(), viewer, id, req.Version, req.Status)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, viewer.ActorID, "tasks.status", id, nil, map[string]string{"status": t.Status})
	api.Success(w, t, middleware.GetRequestID(r.Context()))
}

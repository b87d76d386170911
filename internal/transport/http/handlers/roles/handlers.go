package roleshandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/domain/access"
	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
	"backoffice/internal/transport/http/shared"
)

type Handler struct {
	Service *access.Service
	Audit   audit.Recorder
	Perms   middleware.PermissionStore
}

func NewHandler(service *access.Service, auditor audit.Recorder, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditor, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermRolesManage, h.Perms))
		r.Get("/permissions", h.handlePermissions)
		r.Get("/roles", h.handleList)
		r.Post("/roles", h.handleCreate)
		r.Get("/roles/{roleID}", h.handleGet)
		r.Put("/roles/{roleID}", h.handleUpdate)
		r.Put("/roles/{roleID}/permissions", h.handleSetPermissions)
		r.Delete("/roles/{roleID}", h.handleDelete)
	})
}

type roleRequest struct {
	Name        string   `json:"name" validate:"required,max=64"`
	Description string   `json:"description" validate:"max=500"`
	Permissions []string `json:"permissions" validate:"dive,required"`
	Version     int      `json:"version"`
}

type permissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,dive,required"`
	Version     int      `json:"version" validate:"required,gte=1"`
}

func (h *Handler) record(r *http.Request, actorID, action, id string, before, after any) {
	if err := h.Audit.Record(r.Context(), actorID, action, "role", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit "+action+" failed", "err", err)
	}
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.Service.ListPermissions(r.Context())
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, perms, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.ListRoles(r.Context())
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotal(w, len(roles))
	api.Success(w, roles, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r, "roleID")
	if !ok {
		return
	}
	role, err := h.Service.GetRole(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, role, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var req roleRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	role, err := h.Service.CreateRole(r.Context(), user.ActorID(), access.RoleInput{Name: req.Name, Description: req.Description, Permissions: req.Permissions})
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, user.ActorID(), "roles.create", role.ID, nil, role)
	api.Created(w, role, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "roleID")
	if !ok {
		return
	}
	var req roleRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	if req.Version < 1 {
		v.Add("version", "is required")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	before, err := h.Service.GetRole(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	role, err := h.Service.UpdateRole(r.Context(), user.ActorID(), id, req.Version, access.RoleInput{Name: req.Name, Description: req.Description})
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, user.ActorID(), "roles.update", id, before, role)
	api.Success(w, role, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetPermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "roleID")
	if !ok {
		return
	}
	var req permissionsRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	before, err := h.Service.GetRole(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	role, err := h.Service.SetPermissions(r.Context(), user.ActorID(), id, req.Version, req.Permissions)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, user.ActorID(), "roles.permissions", id, before.Permissions, role.Permissions)
	api.Success(w, role, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "roleID")
	if !ok {
		return
	}
	version, ok := shared.VersionParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteRole(r.Context(), id, version); err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, user.ActorID(), "roles.delete", id, map[string]int{"version": version}, nil)
	api.Message(w, "role deleted", middleware.GetRequestID(r.Context()))
}

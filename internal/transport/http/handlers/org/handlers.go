package orghandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/org"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
	"backoffice/internal/transport/http/shared"
)

type Handler struct {
	Service *org.Service
	Audit   audit.Recorder
	Perms   middleware.PermissionStore
}

func NewHandler(service *org.Service, auditor audit.Recorder, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditor, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermOrgRead, h.Perms)
	write := middleware.RequirePermission(auth.PermOrgWrite, h.Perms)

	r.Route("/departments", func(r chi.Router) {
		r.With(read).Get("/", h.handleListDepartments)
		r.With(write).Post("/", h.handleCreateDepartment)
		r.With(read).Get("/{departmentID}", h.handleGetDepartment)
		r.With(write).Put("/{departmentID}", h.handleUpdateDepartment)
		r.With(write).Delete("/{departmentID}", h.handleDeleteDepartment)
	})
	r.Route("/positions", func(r chi.Router) {
		r.With(read).Get("/", h.handleListPositions)
		r.With(write).Post("/", h.handleCreatePosition)
		r.With(read).Get("/{positionID}", h.handleGetPosition)
		r.With(write).Put("/{positionID}", h.handleUpdatePosition)
		r.With(write).Delete("/{positionID}", h.handleDeletePosition)
	})
}

type departmentRequest struct {
	Name        string `json:"name" validate:"required,max=150"`
	Code        string `json:"code" validate:"max=20"`
	Description string `json:"description" validate:"max=2000"`
	ParentID    string `json:"parentId" validate:"omitempty,uuid"`
	ManagerID   string `json:"managerId" validate:"omitempty,uuid"`
	Version     int    `json:"version"`
}

func (req departmentRequest) input() org.DepartmentInput {
	return org.DepartmentInput{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		ParentID:    req.ParentID,
		ManagerID:   req.ManagerID,
	}
}

type positionRequest struct {
	Title        string           `json:"title" validate:"required,max=150"`
	Code         string           `json:"code" validate:"max=20"`
	DepartmentID string           `json:"departmentId" validate:"required,uuid"`
	Grade        string           `json:"grade" validate:"max=20"`
	MinSalary    *decimal.Decimal `json:"minSalary"`
	MaxSalary    *decimal.Decimal `json:"maxSalary"`
	Description  string           `json:"description" validate:"max=2000"`
	Version      int              `json:"version"`
}

func (req positionRequest) input(v *shared.Validator) org.PositionInput {
	in := org.PositionInput{
		Title:        req.Title,
		Code:         req.Code,
		DepartmentID: req.DepartmentID,
		Grade:        req.Grade,
		Description:  req.Description,
	}
	if req.MinSalary != nil {
		if req.MinSalary.IsNegative() {
			v.Add("minSalary", "must not be negative")
		}
		in.MinSalary = decimal.NewNullDecimal(*req.MinSalary)
	}
	if req.MaxSalary != nil {
		if req.MaxSalary.IsNegative() {
			v.Add("maxSalary", "must not be negative")
		}
		in.MaxSalary = decimal.NewNullDecimal(*req.MaxSalary)
	}
	return in
}

func (h *Handler) record(r *http.Request, action, entityType, entityID string, before, after any) {
	user, _ := middleware.GetUser(r.Context())
	if err := h.Audit.Record(r.Context(), user.ActorID(), action, entityType, entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit "+action+" failed", "err", err)
	}
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r)
	items, total, err := h.Service.ListDepartments(r.Context(), page.Limit, page.Offset)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r, "departmentID")
	if !ok {
		return
	}
	dept, err := h.Service.GetDepartment(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, dept, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var req departmentRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	dept, err := h.Service.CreateDepartment(r.Context(), user.ActorID(), req.input())
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, "org.department.create", "department", dept.ID, nil, dept)
	api.Created(w, dept, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateDepartment(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "departmentID")
	if !ok {
		return
	}
	var req departmentRequest
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
	before, err := h.Service.GetDepartment(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	dept, err := h.Service.UpdateDepartment(r.Context(), user.ActorID(), id, req.Version, req.input())
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, "org.department.update", "department", id, before, dept)
	api.Success(w, dept, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "departmentID")
	if !ok {
		return
	}
	version, ok := shared.VersionParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteDepartment(r.Context(), user.ActorID(), id, version); err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, "org.department.delete", "department", id, map[string]int{"version": version}, nil)
	api.Message(w, "department deleted", middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPositions(w http.ResponseWriter, r *http.Request) {
	departmentID := r.URL.Query().Get("departmentId")
	page := shared.ParsePage(r)
	items, total, err := h.Service.ListPositions(r.Context(), departmentID, page.Limit, page.Offset)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r, "positionID")
	if !ok {
		return
	}
	pos, err := h.Service.GetPosition(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, pos, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreatePosition(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var req positionRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	in := req.input(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	pos, err := h.Service.CreatePosition(r.Context(), user.ActorID(), in)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, "org.position.create", "position", pos.ID, nil, pos)
	api.Created(w, pos, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "positionID")
	if !ok {
		return
	}
	var req positionRequest
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
	before, err := h.Service.GetPosition(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	pos, err := h.Service.UpdatePosition(r.Context(), user.ActorID(), id, req.Version, in)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, "org.position.update", "position", id, before, pos)
	api.Success(w, pos, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeletePosition(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "positionID")
	if !ok {
		return
	}
	version, ok := shared.VersionParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeletePosition(r.Context(), user.ActorID(), id, version); err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, "org.position.delete", "position", id, map[string]int{"version": version}, nil)
	api.Message(w, "position deleted", middleware.GetRequestID(r.Context()))
}

package employeeshandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/employees"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
	"backoffice/internal/transport/http/shared"
)

type Handler struct {
	Service *employees.Service
	Audit   audit.Recorder
	Perms   middleware.PermissionStore
}

func NewHandler(service *employees.Service, auditor audit.Recorder, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditor, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Post("/", h.handleCreate)
		r.Route("/{employeeID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/", h.handleGet)
			r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Put("/", h.handleUpdate)
			r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Delete("/", h.handleDelete)
		})
	})
}

type employeeRequest struct {
	EmployeeNumber  string `json:"employeeNumber" validate:"max=32"`
	FirstName       string `json:"firstName" validate:"required,max=100"`
	LastName        string `json:"lastName" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Phone           string `json:"phone" validate:"max=32"`
	DateOfBirth     string `json:"dateOfBirth"`
	NationalID      string `json:"nationalId" validate:"max=64"`
	BankAccount     string `json:"bankAccount" validate:"max=64"`
	DepartmentID    string `json:"departmentId" validate:"omitempty,uuid"`
	PositionID      string `json:"positionId" validate:"omitempty,uuid"`
	ManagerID       string `json:"managerId" validate:"omitempty,uuid"`
	UserID          string `json:"userId" validate:"omitempty,uuid"`
	HireDate        string `json:"hireDate"`
	TerminationDate string `json:"terminationDate"`
	Status          string `json:"status" validate:"omitempty,oneof=active on_leave terminated"`
	Version         int    `json:"version"`
}

func (req employeeRequest) input(v *shared.Validator) employees.Input {
	in := employees.Input{
		UserID:         req.UserID,
		EmployeeNumber: req.EmployeeNumber,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		NationalID:     req.NationalID,
		BankAccount:    req.BankAccount,
		DepartmentID:   req.DepartmentID,
		PositionID:     req.PositionID,
		ManagerID:      req.ManagerID,
		Status:         req.Status,
	}
	in.DateOfBirth = v.OptionalDate("dateOfBirth", req.DateOfBirth)
	in.HireDate = v.OptionalDate("hireDate", req.HireDate)
	in.TerminationDate = v.OptionalDate("terminationDate", req.TerminationDate)
	if in.HireDate != nil && in.TerminationDate != nil {
		v.DateOrder("hireDate", *in.HireDate, "terminationDate", *in.TerminationDate)
	}
	return in
}

func (h *Handler) viewer(r *http.Request, user auth.UserContext) employees.Viewer {
	return employees.Viewer{
		UserID:     user.UserID,
		Privileged: middleware.Allowed(r, h.Perms, auth.PermEmployeesWrite),
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	q := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("status", q.Get("status"), employees.Statuses, "must be one of: active, on_leave, terminated")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	filter := employees.Filter{
		Search:       q.Get("search"),
		DepartmentID: q.Get("departmentId"),
		PositionID:   q.Get("positionId"),
		ManagerID:    q.Get("managerId"),
		Status:       q.Get("status"),
	}
	page := shared.ParsePage(r)
	items, total, err := h.Service.List(r.Context(), h.viewer(r, user), filter, page.Limit, page.Offset)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "employeeID")
	if !ok {
		return
	}
	emp, err := h.Service.Get(r.Context(), h.viewer(r, user), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var req employeeRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	in := req.input(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	emp, err := h.Service.Create(r.Context(), user.ActorID(), in)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Audit.Record(r.Context(), user.ActorID(), "employees.create", "employee", emp.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, emp); err != nil {
		slog.Warn("audit employees.create failed", "err", err)
	}
	api.Created(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "employeeID")
	if !ok {
		return
	}
	var req employeeRequest
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

	before, err := h.Service.Get(r.Context(), employees.Viewer{Privileged: true}, id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	emp, err := h.Service.Update(r.Context(), user.ActorID(), id, req.Version, in)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Audit.Record(r.Context(), user.ActorID(), "employees.update", "employee", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, emp); err != nil {
		slog.Warn("audit employees.update failed", "err", err)
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "employeeID")
	if !ok {
		return
	}
	version, ok := shared.VersionParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), user.ActorID(), id, version); err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Audit.Record(r.Context(), user.ActorID(), "employees.delete", "employee", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), map[string]int{"version": version}, nil); err != nil {
		slog.Warn("audit employees.delete failed", "err", err)
	}
	api.Message(w, "employee deleted", middleware.GetRequestID(r.Context()))
}

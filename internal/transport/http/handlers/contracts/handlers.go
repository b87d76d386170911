package contractshandler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/contracts"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
	"backoffice/internal/transport/http/shared"
)

type Handler struct {
	Service *contracts.Service
	Audit   audit.Recorder
	Perms   middleware.PermissionStore
	Keys    middleware.IdempotencyKeys
}

func NewHandler(service *contracts.Service, auditor audit.Recorder, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditor, Perms: perms}
}

// WithIdempotency lets callers retry mutations with an Idempotency-Key.
func (h *Handler) WithIdempotency(keys middleware.IdempotencyKeys) *Handler {
	h.Keys = keys
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermContractsRead, h.Perms)
	write := middleware.RequirePermission(auth.PermContractsWrite, h.Perms)
	approve := middleware.RequirePermission(auth.PermContractsApprove, h.Perms)

	r.Route("/contracts", func(r chi.Router) {
		r.With(read).Get("/", h.handleList)
		r.With(write).Post("/", h.handleCreate)
		r.Route("/{contractID}", func(r chi.Router) {
			r.With(read).Get("/", h.handleGet)
			r.With(write).Put("/", h.handleUpdate)
			r.With(write).Delete("/", h.handleDelete)
			r.With(read).Get("/approvals", h.handleApprovals)
			r.With(read).Get("/pdf", h.handlePDF)
			r.With(write, middleware.Idempotent(h.Keys, "contracts.submit")).Post("/submit", h.handleSubmit)
			r.With(write).Post("/cancel", h.handleCancel)
			r.With(approve).Post("/approve", h.handleApprove)
			r.With(approve).Post("/reject", h.handleReject)
		})
	})
}

type contractRequest struct {
	EmployeeID     string          `json:"employeeId" validate:"required,uuid"`
	PositionID     string          `json:"positionId" validate:"omitempty,uuid"`
	ContractNumber string          `json:"contractNumber" validate:"required,max=40"`
	Type           string          `json:"type" validate:"required,oneof=permanent fixed_term internship consultancy"`
	StartDate      string          `json:"startDate" validate:"required"`
	EndDate        string          `json:"endDate"`
	Salary         decimal.Decimal `json:"salary"`
	Currency       string          `json:"currency" validate:"required,len=3,alpha"`
	WorkingHours   int             `json:"workingHours" validate:"omitempty,gte=1,lte=80"`
	Notes          string          `json:"notes" validate:"max=4000"`
	Version        int             `json:"version"`
}

func (req contractRequest) input(v *shared.Validator) contracts.Input {
	in := contracts.Input{
		EmployeeID:     req.EmployeeID,
		PositionID:     req.PositionID,
		ContractNumber: req.ContractNumber,
		Type:           req.Type,
		Salary:         req.Salary,
		Currency:       req.Currency,
		WorkingHours:   req.WorkingHours,
		Notes:          req.Notes,
	}
	if req.StartDate != "" {
		in.StartDate, _ = v.Date("startDate", req.StartDate)
	}
	in.EndDate = v.OptionalDate("endDate", req.EndDate)
	if in.EndDate != nil {
		v.DateOrder("startDate", in.StartDate, "endDate", *in.EndDate)
	} else if req.Type == contracts.TypeFixedTerm {
		v.Add("endDate", "is required for fixed_term contracts")
	}
	if !req.Salary.IsPositive() {
		v.Add("salary", "must be greater than 0")
	} else if req.Salary.GreaterThan(contracts.MaxSalary) {
		v.Add("salary", "must be at most "+contracts.MaxSalary.String())
	}
	return in
}

type transitionRequest struct {
	Version int    `json:"version" validate:"required,gte=1"`
	Comment string `json:"comment" validate:"max=2000"`
}

func actorFrom(user auth.UserContext) contracts.Actor {
	return contracts.Actor{
		ID:       user.ActorID(),
		UserID:   user.UserID,
		RoleName: user.RoleName,
		IsAdmin:  user.IsAdmin(),
	}
}

func (h *Handler) record(r *http.Request, action, entityID string, before, after any) {
	user, _ := middleware.GetUser(r.Context())
	if err := h.Audit.Record(r.Context(), user.ActorID(), action, "contract", entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit "+action+" failed", "err", err)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("status", q.Get("status"), contracts.Statuses, "is not a known contract status")
	v.Enum("type", q.Get("type"), contracts.Types, "is not a known contract type")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	page := shared.ParsePage(r)
	filter := contracts.Filter{EmployeeID: q.Get("employeeId"), Status: q.Get("status"), Type: q.Get("type")}
	items, total, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r, "contractID")
	if !ok {
		return
	}
	c, err := h.Service.Get(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, c, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprovals(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r, "contractID")
	if !ok {
		return
	}
	steps, err := h.Service.Approvals(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, steps, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var req contractRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	in := req.input(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	c, err := h.Service.Create(r.Context(), user.ActorID(), in)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, "contracts.create", c.ID, nil, c)
	api.Created(w, c, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "contractID")
	if !ok {
		return
	}
	var req contractRequest
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
	before, err := h.Service.Get(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	c, err := h.Service.Update(r.Context(), user.ActorID(), id, req.Version, in)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, "contracts.update", id, before, c)
	api.Success(w, c, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "contractID")
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
	h.record(r, "contracts.delete", id, map[string]int{"version": version}, nil)
	api.Message(w, "contract deleted", middleware.GetRequestID(r.Context()))
}

// transition decodes the shared {version, comment} body and runs fn.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, fn func(actor contracts.Actor, id string, req transitionRequest) (contracts.Contract, error)) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "contractID")
	if !ok {
		return
	}
	var req transitionRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	c, err := fn(actorFrom(user), id, req)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, action, id, map[string]any{"version": req.Version, "comment": req.Comment}, c)
	api.Success(w, c, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "contracts.submit", func(actor contracts.Actor, id string, req transitionRequest) (contracts.Contract, error) {
		return h.Service.Submit(r.Context(), actor, id, req.Version)
	})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "contracts.approve", func(actor contracts.Actor, id string, req transitionRequest) (contracts.Contract, error) {
		return h.Service.Approve(r.Context(), actor, id, req.Version, req.Comment)
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "contracts.reject", func(actor contracts.Actor, id string, req transitionRequest) (contracts.Contract, error) {
		return h.Service.Reject(r.Context(), actor, id, req.Version, req.Comment)
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "contracts.cancel", func(actor contracts.Actor, id string, req transitionRequest) (contracts.Contract, error) {
		return h.Service.Cancel(r.Context(), actor, id, req.Version)
	})
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r, "contractID")
	if !ok {
		return
	}
	c, data, err := h.Service.PDF(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "contract-"+c.ContractNumber+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("contract pdf write failed", "err", err, "contractId", id)
	}
}

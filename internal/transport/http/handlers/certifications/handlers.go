package certificationshandler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/certifications"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
	"backoffice/internal/transport/http/shared"
)

type Handler struct {
	Service *certifications.Service
	Audit   audit.Recorder
	Perms   middleware.PermissionStore
}

func NewHandler(service *certifications.Service, auditor audit.Recorder, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditor, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermCertificationsRead, h.Perms)
	write := middleware.RequirePermission(auth.PermCertificationsWrite, h.Perms)

	r.Route("/certifications", func(r chi.Router) {
		r.With(read).Get("/", h.handleList)
		r.With(write).Post("/", h.handleCreate)
		r.Route("/{certificationID}", func(r chi.Router) {
			r.With(read).Get("/", h.handleGet)
			r.With(write).Put("/", h.handleUpdate)
			r.With(write).Delete("/", h.handleDelete)
			r.With(write).Put("/file", h.handleUpload)
			r.With(read).Get("/file", h.handleDownload)
		})
	})
}

type certificationRequest struct {
	EmployeeID   string `json:"employeeId" validate:"required,uuid"`
	Name         string `json:"name" validate:"required,max=200"`
	Issuer       string `json:"issuer" validate:"max=200"`
	CredentialID string `json:"credentialId" validate:"max=100"`
	IssueDate    string `json:"issueDate" validate:"required"`
	ExpiryDate   string `json:"expiryDate"`
	Version      int    `json:"version"`
}

func (req certificationRequest) input(v *shared.Validator) certifications.Input {
	in := certifications.Input{
		EmployeeID:   req.EmployeeID,
		Name:         req.Name,
		Issuer:       req.Issuer,
		CredentialID: req.CredentialID,
	}
	if req.IssueDate != "" {
		in.IssueDate, _ = v.Date("issueDate", req.IssueDate)
	}
	in.ExpiryDate = v.OptionalDate("expiryDate", req.ExpiryDate)
	if in.ExpiryDate != nil {
		v.DateOrder("issueDate", in.IssueDate, "expiryDate", *in.ExpiryDate)
	}
	return in
}

func (h *Handler) record(r *http.Request, action, entityID string, before, after any) {
	user, _ := middleware.GetUser(r.Context())
	if err := h.Audit.Record(r.Context(), user.ActorID(), action, "certification", entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit "+action+" failed", "err", err)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := certifications.Filter{EmployeeID: q.Get("employeeId")}
	if raw := q.Get("expiringWithinDays"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "expiringWithinDays", Reason: "must be a positive integer"}})
			return
		}
		filter.ExpiringWithinDays = days
	}
	page := shared.ParsePage(r)
	items, total, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r, "certificationID")
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

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var req certificationRequest
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
	h.record(r, "certifications.create", c.ID, nil, c)
	api.Created(w, c, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "certificationID")
	if !ok {
		return
	}
	var req certificationRequest
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
	h.record(r, "certifications.update", id, before, c)
	api.Success(w, c, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "certificationID")
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
	h.record(r, "certifications.delete", id, map[string]int{"version": version}, nil)
	api.Message(w, "certification deleted", middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "certificationID")
	if !ok {
		return
	}
	upload, ok := shared.ReadUpload(w, r)
	if !ok {
		return
	}
	defer upload.File.Close()

	c, err := h.Service.Upload(r.Context(), user.ActorID(), id, upload.Version, upload.FileName, upload.File)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, "certifications.upload", id, nil, c.Attachment)
	api.Success(w, c, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r, "certificationID")
	if !ok {
		return
	}
	link, att, err := h.Service.DownloadURL(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{
		"url":         link,
		"fileName":    att.FileName,
		"contentType": att.ContentType,
		"size":        att.Size,
	}, middleware.GetRequestID(r.Context()))
}

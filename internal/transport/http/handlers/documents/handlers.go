package documentshandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/documents"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
	"backoffice/internal/transport/http/shared"
)

type Handler struct {
	Service *documents.Service
	Audit   audit.Recorder
	Perms   middleware.PermissionStore
}

func NewHandler(service *documents.Service, auditor audit.Recorder, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditor, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermDocumentsRead, h.Perms)
	write := middleware.RequirePermission(auth.PermDocumentsWrite, h.Perms)

	r.Route("/identity-documents", func(r chi.Router) {
		r.With(read).Get("/", h.handleList)
		r.With(write).Post("/", h.handleCreate)
		r.With(read).Get("/{documentID}", h.handleGet)
		r.With(write).Put("/{documentID}", h.handleUpdate)
		r.With(write).Delete("/{documentID}", h.handleDelete)
		r.With(write).Put("/{documentID}/file", h.handleUpload)
		r.With(read).Get("/{documentID}/file", h.handleDownload)
	})
}

type documentRequest struct {
	EmployeeID     string `json:"employeeId" validate:"required,uuid"`
	DocumentType   string `json:"documentType" validate:"required,oneof=passport national_id driver_license residence_permit work_permit"`
	DocumentNumber string `json:"documentNumber" validate:"required,max=64"`
	IssuingCountry string `json:"issuingCountry" validate:"required,len=2,alpha"`
	IssueDate      string `json:"issueDate"`
	ExpiryDate     string `json:"expiryDate"`
	Version        int    `json:"version"`
}

func (req documentRequest) input(v *shared.Validator) documents.Input {
	in := documents.Input{
		EmployeeID:     req.EmployeeID,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		IssuingCountry: req.IssuingCountry,
		IssueDate:      v.OptionalDate("issueDate", req.IssueDate),
		ExpiryDate:     v.OptionalDate("expiryDate", req.ExpiryDate),
	}
	if in.IssueDate != nil && in.ExpiryDate != nil {
		v.DateOrder("issueDate", *in.IssueDate, "expiryDate", *in.ExpiryDate)
	}
	return in
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("documentType", q.Get("documentType"), documents.Types, "is not a known document type")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	page := shared.ParsePage(r)
	items, total, err := h.Service.List(r.Context(), documents.Filter{EmployeeID: q.Get("employeeId"), DocumentType: q.Get("documentType")}, page.Limit, page.Offset)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r, "documentID")
	if !ok {
		return
	}
	d, err := h.Service.Get(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, d, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var req documentRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	v := shared.NewValidator()
	v.Struct(req)
	in := req.input(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	d, err := h.Service.Create(r.Context(), user.ActorID(), in)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Audit.Record(r.Context(), user.ActorID(), "documents.create", "identity_document", d.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, d); err != nil {
		slog.Warn("audit documents.create failed", "err", err)
	}
	api.Created(w, d, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "documentID")
	if !ok {
		return
	}
	var req documentRequest
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
	d, err := h.Service.Update(r.Context(), user.ActorID(), id, req.Version, in)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Audit.Record(r.Context(), user.ActorID(), "documents.update", "identity_document", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, d); err != nil {
		slog.Warn("audit documents.update failed", "err", err)
	}
	api.Success(w, d, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "documentID")
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
	if err := h.Audit.Record(r.Context(), user.ActorID(), "documents.delete", "identity_document", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), map[string]int{"version": version}, nil); err != nil {
		slog.Warn("audit documents.delete failed", "err", err)
	}
	api.Message(w, "identity document deleted", middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "documentID")
	if !ok {
		return
	}
	upload, ok := shared.ReadUpload(w, r)
	if !ok {
		return
	}
	defer upload.File.Close()

	d, err := h.Service.UploadFile(r.Context(), user.ActorID(), id, upload.Version, upload.FileName, upload.File)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Audit.Record(r.Context(), user.ActorID(), "documents.upload", "identity_document", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, d.File); err != nil {
		slog.Warn("audit documents.upload failed", "err", err)
	}
	api.Success(w, d, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r, "documentID")
	if !ok {
		return
	}
	link, att, err := h.Service.DownloadURL(r.Context(), id)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"url": link, "fileName": att.FileName, "contentType": att.ContentType, "size": att.Size}, middleware.GetRequestID(r.Context()))
}

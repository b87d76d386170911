package authhandler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/transport/http/api"
	"backoffice/internal/transport/http/middleware"
	"backoffice/internal/transport/http/shared"
)

// Service is the subset of auth.Service the handlers call.
type Service interface {
	Login(ctx context.Context, email, password, mfaCode string) (auth.LoginResult, error)
	Logout(ctx context.Context, user auth.UserContext) error
	Refresh(ctx context.Context, token string) (auth.LoginResult, error)
	Me(ctx context.Context, user auth.UserContext) (auth.Profile, error)
	SetupMFA(ctx context.Context, user auth.UserContext) (auth.MFASetup, error)
	EnableMFA(ctx context.Context, userID, code string) error
	DisableMFA(ctx context.Context, userID, code string) error
	RequestPasswordReset(ctx context.Context, email string)
	ResetPassword(ctx context.Context, token, newPassword string) error
	CreateAPIKey(ctx context.Context, actor auth.UserContext, in auth.APIKeyInput) (auth.IssuedAPIKey, error)
	ListAPIKeys(ctx context.Context) ([]auth.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

type Handler struct {
	Service Service
	Audit   audit.Recorder
	Perms   middleware.PermissionStore
}

func NewHandler(service Service, auditor audit.Recorder, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditor, Perms: perms}
}

// RegisterPublicRoutes mounts the endpoints reachable without a session.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/refresh", h.HandleRefresh)
	r.Post("/auth/request-reset", h.HandleRequestReset)
	r.Post("/auth/reset", h.HandleReset)
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/me", h.HandleMe)
	r.Post("/auth/mfa/setup", h.HandleMFASetup)
	r.Post("/auth/mfa/enable", h.HandleMFAEnable)
	r.Post("/auth/mfa/disable", h.HandleMFADisable)

	r.Route("/api-keys", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermAdminAPIKeys, h.Perms))
		r.Get("/", h.HandleListAPIKeys)
		r.Post("/", h.HandleCreateAPIKey)
		r.Delete("/{keyID}", h.HandleRevokeAPIKey)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfaCode" validate:"omitempty,numeric,len=6"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type mfaCodeRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

type apiKeyRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	RoleID    string `json:"roleId" validate:"required,uuid"`
	ExpiresAt string `json:"expiresAt"`
}

func (h *Handler) record(r *http.Request, actorID, action, entityType, entityID string, after any) {
	if err := h.Audit.Record(r.Context(), actorID, action, entityType, entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit "+action+" failed", "err", err)
	}
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	result, err := h.Service.Login(r.Context(), payload.Email, payload.Password, payload.MFACode)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, result.User.ID, "auth.login", "user", result.User.ID, nil)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if user, ok := middleware.GetUser(r.Context()); ok {
		if err := h.Service.Logout(r.Context(), user); err != nil {
			slog.Warn("logout session revoke failed", "userId", user.UserID, "err", err)
		}
	}
	api.Success(w, map[string]string{"status": "logged_out"}, middleware.GetRequestID(r.Context()))
}

func bearerToken(r *http.Request) string {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	result, err := h.Service.Refresh(r.Context(), token)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	profile, err := h.Service.Me(r.Context(), user)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, profile, middleware.GetRequestID(r.Context()))
}

// HandleRequestReset always answers the same way so callers cannot discover
// which addresses have accounts.
func (h *Handler) HandleRequestReset(w http.ResponseWriter, r *http.Request) {
	var payload resetRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	h.Service.RequestPasswordReset(r.Context(), payload.Email)
	api.Success(w, map[string]string{"status": "reset_requested"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var payload resetPasswordRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	if err := h.Service.ResetPassword(r.Context(), payload.Token, payload.NewPassword); err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"status": "password_reset"}, middleware.GetRequestID(r.Context()))
}

// sessionUser returns the signed-in human user; API keys cannot manage MFA.
func sessionUser(w http.ResponseWriter, r *http.Request) (auth.UserContext, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user.UserID == "" {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return auth.UserContext{}, false
	}
	return user, true
}

func (h *Handler) HandleMFASetup(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(w, r)
	if !ok {
		return
	}
	setup, err := h.Service.SetupMFA(r.Context(), user)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, setup, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMFAEnable(w http.ResponseWriter, r *http.Request) {
	h.handleMFAToggle(w, r, true)
}

func (h *Handler) HandleMFADisable(w http.ResponseWriter, r *http.Request) {
	h.handleMFAToggle(w, r, false)
}

func (h *Handler) handleMFAToggle(w http.ResponseWriter, r *http.Request, enable bool) {
	user, ok := sessionUser(w, r)
	if !ok {
		return
	}
	var payload mfaCodeRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	toggle, action, status := h.Service.DisableMFA, "auth.mfa.disable", "disabled"
	if enable {
		toggle, action, status = h.Service.EnableMFA, "auth.mfa.enable", "enabled"
	}
	if err := toggle(r.Context(), user.UserID, payload.Code); err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, user.ActorID(), action, "user", user.UserID, nil)
	api.Success(w, map[string]string{"status": status}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.Service.ListAPIKeys(r.Context())
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotal(w, len(keys))
	api.Success(w, keys, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload apiKeyRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	var expiresAt *time.Time
	if payload.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, payload.ExpiresAt)
		if err != nil {
			v.Add("expiresAt", "must be an RFC 3339 timestamp")
		} else {
			expiresAt = &parsed
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	issued, err := h.Service.CreateAPIKey(r.Context(), user, auth.APIKeyInput{Name: payload.Name, RoleID: payload.RoleID, ExpiresAt: expiresAt})
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, user.ActorID(), "apikeys.create", "api_key", issued.ID, issued.APIKey)
	api.Created(w, issued, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id, ok := shared.PathID(w, r, "keyID")
	if !ok {
		return
	}
	if err := h.Service.RevokeAPIKey(r.Context(), id); err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, user.ActorID(), "apikeys.revoke", "api_key", id, nil)
	api.Message(w, "api key revoked", middleware.GetRequestID(r.Context()))
}

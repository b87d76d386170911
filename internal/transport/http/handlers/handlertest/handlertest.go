// Package handlertest holds fakes shared by the HTTP handler tests.
package handlertest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/auth"
	"backoffice/internal/transport/http/middleware"
)

// AuditEntry is one recorded audit call.
type AuditEntry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
}

// Recorder captures audit events in memory.
type Recorder struct {
	mu      sync.Mutex
	Entries []AuditEntry
}

func (r *Recorder) Record(_ context.Context, actorID, action, entityType, entityID, _, _ string, _, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, AuditEntry{ActorID: actorID, Action: action, EntityType: entityType, EntityID: entityID})
	return nil
}

func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.Action)
	}
	return out
}

// Perms grants permissions per role ID using the built-in role matrix, where
// the role ID is the role name.
type Perms struct{}

func (Perms) HasPermission(_ context.Context, roleID, permission string) (bool, error) {
	for _, p := range auth.RolePermissions[roleID] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

// User builds a session user whose role ID is the role name, matching Perms.
func User(userID, role string) auth.UserContext {
	return auth.UserContext{UserID: userID, RoleID: role, RoleName: role, SessionID: "session-" + userID}
}

// Keys keeps idempotent responses in memory.
type Keys struct {
	mu      sync.Mutex
	entries map[string]middleware.StoredResponse
}

func (k *Keys) Lookup(_ context.Context, actorID, scope, key string) (middleware.StoredResponse, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	resp, ok := k.entries[actorID+"|"+scope+"|"+key]
	return resp, ok, nil
}

func (k *Keys) Save(_ context.Context, actorID, scope, key string, resp middleware.StoredResponse) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.entries == nil {
		k.entries = map[string]middleware.StoredResponse{}
	}
	k.entries[actorID+"|"+scope+"|"+key] = resp
	return nil
}

// DoWithKey is Do with an Idempotency-Key header.
func DoWithKey(t *testing.T, register func(chi.Router), user auth.UserContext, key, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	raw := []byte("{}")
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.IdempotencyHeader, key)
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	return Serve(t, register, req)
}

// Response is the decoded envelope.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// Do serves one request against a router built by register. A zero user sends
// the request anonymously.
func Do(t *testing.T, register func(chi.Router), user auth.UserContext, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user.RoleID != "" {
		req = req.WithContext(middleware.WithUser(req.Context(), user))
	}
	return Serve(t, register, req)
}

// Serve runs a prepared request.
func Serve(t *testing.T, register func(chi.Router), req *http.Request) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	r := chi.NewRouter()
	register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env Response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

// Decode unmarshals the envelope data into dest.
func Decode(t *testing.T, env Response, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

// Fields lists the field names of a validation_error response in order.
func Fields(t *testing.T, env Response) []string {
	t.Helper()
	require.NotNil(t, env.Error)
	raw, _ := env.Error.Details["fields"].([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		issue, ok := item.(map[string]any)
		require.True(t, ok)
		field, _ := issue["field"].(string)
		out = append(out, field)
	}
	return out
}

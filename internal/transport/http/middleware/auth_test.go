package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"backoffice/internal/domain/auth"
)

type stubAuthenticator struct {
	tokens map[string]auth.UserContext
	keys   map[string]auth.UserContext
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (auth.UserContext, error) {
	if user, ok := s.tokens[token]; ok {
		return user, nil
	}
	return auth.UserContext{}, errors.New("invalid token")
}

func (s stubAuthenticator) AuthenticateAPIKey(_ context.Context, key string) (auth.UserContext, error) {
	if user, ok := s.keys[key]; ok {
		return user, nil
	}
	return auth.UserContext{}, errors.New("invalid key")
}

var testAuthn = stubAuthenticator{
	tokens: map[string]auth.UserContext{"good": {UserID: "u1", RoleID: "r1", RoleName: auth.RoleHR}},
	keys:   map[string]auth.UserContext{"bo_key": {APIKeyID: "k1", RoleID: "r2", RoleName: auth.RoleManager}},
}

func TestAuthMiddlewareSetsUser(t *testing.T) {
	var seen auth.UserContext
	handler := Auth(testAuthn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			t.Fatal("expected user in context")
		}
		seen = user
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen.UserID != "u1" || seen.RoleName != auth.RoleHR {
		t.Fatalf("unexpected user: %+v", seen)
	}
}

func TestAuthMiddlewareAcceptsAPIKey(t *testing.T) {
	var seen auth.UserContext
	handler := Auth(testAuthn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUser(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(APIKeyHeader, "bo_key")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen.ActorID() != "apikey:k1" {
		t.Fatalf("unexpected principal: %+v", seen)
	}
}

func TestAuthMiddlewareMissingOrInvalidToken(t *testing.T) {
	handler := Auth(testAuthn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); ok {
			t.Fatal("did not expect user in context")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer revoked")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRequireAuth(t *testing.T) {
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(WithUser(context.Background(), auth.UserContext{UserID: "u1"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

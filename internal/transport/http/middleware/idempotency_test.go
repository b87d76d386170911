package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/auth"
)

type memoryKeys struct {
	entries map[string]StoredResponse
	lookups int
	failing bool
}

func (m *memoryKeys) Lookup(_ context.Context, actorID, scope, key string) (StoredResponse, bool, error) {
	m.lookups++
	if m.failing {
		return StoredResponse{}, false, errors.New("db down")
	}
	resp, ok := m.entries[actorID+"|"+scope+"|"+key]
	return resp, ok, nil
}

func (m *memoryKeys) Save(_ context.Context, actorID, scope, key string, resp StoredResponse) error {
	if m.failing {
		return errors.New("db down")
	}
	m.entries[actorID+"|"+scope+"|"+key] = resp
	return nil
}

// counting creates a numbered resource per call and fails when the body says so.
func counting(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "fail") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":%d,"body":%q}`, *calls, body)
	})
}

func keyedRequest(user *auth.UserContext, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	if user != nil {
		req = req.WithContext(WithUser(req.Context(), *user))
	}
	return req
}

func TestIdempotentReplaysFirstAnswer(t *testing.T) {
	keys := &memoryKeys{entries: map[string]StoredResponse{}}
	calls := 0
	handler := Idempotent(keys, "tasks.create")(counting(&calls))
	alice := &auth.UserContext{UserID: "alice"}

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(alice, "k1", `{"title":"a"}`))
	require.Equal(t, http.StatusCreated, first.Code)

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, keyedRequest(alice, "k1", `{"title":"a"}`))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)

	conflict := httptest.NewRecorder()
	handler.ServeHTTP(conflict, keyedRequest(alice, "k1", `{"title":"b"}`))
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Contains(t, conflict.Body.String(), "idempotency_conflict")

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, keyedRequest(&auth.UserContext{APIKeyID: "key-1"}, "k1", `{"title":"a"}`))
	assert.Equal(t, http.StatusCreated, other.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotentSkipsFailuresAndUnkeyedRequests(t *testing.T) {
	keys := &memoryKeys{entries: map[string]StoredResponse{}}
	calls := 0
	handler := Idempotent(keys, "tasks.create")(counting(&calls))
	alice := &auth.UserContext{UserID: "alice"}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(alice, "k2", `{"title":"fail"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, keys.entries)

	for range 2 {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest(alice, "", `{"title":"a"}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Zero(t, keys.lookups)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(alice, strings.Repeat("k", 201), `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotentRunsWhenStoreFails(t *testing.T) {
	keys := &memoryKeys{entries: map[string]StoredResponse{}, failing: true}
	calls := 0
	handler := Idempotent(keys, "jobs.run")(counting(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(&auth.UserContext{UserID: "alice"}, "k3", `{}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotentWithoutStore(t *testing.T) {
	var store *IdempotencyStore
	calls := 0
	handler := Idempotent(store, "jobs.run")(counting(&calls))

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest(&auth.UserContext{UserID: "alice"}, "k4", `{}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)

	n, err := store.Purge(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRequestHashCoversPath(t *testing.T) {
	body := []byte(`{}`)
	assert.Equal(t, RequestHash(http.MethodPost, "/contracts/a/submit", body), RequestHash(http.MethodPost, "/contracts/a/submit", body))
	assert.NotEqual(t, RequestHash(http.MethodPost, "/contracts/a/submit", body), RequestHash(http.MethodPost, "/contracts/b/submit", body))
}

package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"backoffice/internal/platform/querier"
	"backoffice/internal/transport/http/api"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// IdempotencyTTL is how long a stored response is replayed.
	IdempotencyTTL    = 24 * time.Hour
	maxIdempotencyKey = 200
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// StoredResponse is the first successful answer to a keyed request.
type StoredResponse struct {
	RequestHash string
	Status      int
	Body        json.RawMessage
}

type IdempotencyKeys interface {
	Lookup(ctx context.Context, actorID, scope, key string) (StoredResponse, bool, error)
	Save(ctx context.Context, actorID, scope, key string, resp StoredResponse) error
}

type IdempotencyStore struct {
	db querier.Querier
}

func NewIdempotencyStore(db querier.Querier) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func RequestHash(method, path string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(method + " " + path + "\n"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *IdempotencyStore) Lookup(ctx context.Context, actorID, scope, key string) (StoredResponse, bool, error) {
	if s == nil || s.db == nil {
		return StoredResponse{}, false, nil
	}
	var resp StoredResponse
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, status_code, response_json
    FROM idempotency_keys
    WHERE actor_id = $1 AND scope = $2 AND key = $3 AND created_at > $4
  `, actorID, scope, key, time.Now().Add(-IdempotencyTTL)).Scan(&resp.RequestHash, &resp.Status, &resp.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredResponse{}, false, nil
	}
	if err != nil {
		return StoredResponse{}, false, err
	}
	return resp, true, nil
}

// Save keeps resp unless a live entry for the key holds a different request.
func (s *IdempotencyStore) Save(ctx context.Context, actorID, scope, key string, resp StoredResponse) error {
	if s == nil || s.db == nil {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (actor_id, scope, key, request_hash, status_code, response_json)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (actor_id, scope, key)
    DO UPDATE SET request_hash = EXCLUDED.request_hash, status_code = EXCLUDED.status_code,
      response_json = EXCLUDED.response_json, created_at = now()
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash OR idempotency_keys.created_at <= $7
  `, actorID, scope, key, resp.RequestHash, resp.Status, resp.Body, time.Now().Add(-IdempotencyTTL))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Purge drops entries past the replay window.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, "DELETE FROM idempotency_keys WHERE created_at <= $1", time.Now().Add(-IdempotencyTTL))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bodyRecorder) WriteHeader(code int) {
	b.status = code
	b.ResponseWriter.WriteHeader(code)
}

func (b *bodyRecorder) Write(p []byte) (int, error) {
	b.body.Write(p)
	return b.ResponseWriter.Write(p)
}

func (b *bodyRecorder) Unwrap() http.ResponseWriter {
	return b.ResponseWriter
}

// Idempotent replays the stored answer when a caller repeats a request with
// the same Idempotency-Key. Requests without the header run normally. Reusing
// a key for a different payload is answered 409. Only 2xx answers are kept so
// a failed attempt can be retried. keys may be nil.
func Idempotent(keys IdempotencyKeys, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if keys == nil || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			requestID := GetRequestID(r.Context())
			if len(key) > maxIdempotencyKey {
				api.Fail(w, http.StatusBadRequest, "validation_error", "Idempotency-Key is too long", requestID)
				return
			}
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
				return
			}

			payload, err := io.ReadAll(r.Body)
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
					return
				}
				api.Fail(w, http.StatusBadRequest, "invalid_payload", "request body could not be read", requestID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(payload))
			hash := RequestHash(r.Method, r.URL.Path, payload)
			actorID := user.ActorID()

			stored, found, err := keys.Lookup(r.Context(), actorID, scope, key)
			if err != nil {
				slog.Warn("idempotency lookup failed", "err", err, "scope", scope, "requestId", requestID)
			}
			if found {
				if stored.RequestHash != hash {
					api.Fail(w, http.StatusConflict, "idempotency_conflict", "Idempotency-Key was used for a different request", requestID)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.Status)
				if _, err := w.Write(stored.Body); err != nil {
					slog.Warn("idempotent replay write failed", "err", err)
				}
				return
			}

			rec := &bodyRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status < 200 || rec.status >= 300 {
				return
			}
			resp := StoredResponse{RequestHash: hash, Status: rec.status, Body: json.RawMessage(rec.body.Bytes())}
			if err := keys.Save(r.Context(), actorID, scope, key, resp); err != nil {
				slog.Warn("idempotency save failed", "err", err, "scope", scope, "requestId", requestID)
			}
		})
	}
}

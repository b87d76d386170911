package audithandler

import (
	"encoding/csv"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/transport/http/handlers/handlertest"
)

var columns = []string{"id", "actor_user_id", "action", "entity_type", "entity_id", "request_id", "ip", "created_at"}

func setup(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewHandler(audit.New(db), handlertest.Perms{}), mock
}

var hr = handlertest.User("7d8e9f0a-1b2c-4d3e-8f4a-5b6c7d8e9f0a", auth.RoleHR)

func TestExportEventsAsCSV(t *testing.T) {
	h, mock := setup(t)
	created := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_events WHERE action = $1 AND created_at >= $2 AND created_at < $3 ORDER BY created_at DESC")).
		WithArgs("contracts.approve", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a1", "u1", "contracts.approve", "contract", "c1", "r1", "10.0.0.1", created).
			AddRow("a2", "u2", "contracts.approve", "contract", "c2", "r2", "10.0.0.2, 10.0.0.3", created.Add(-time.Hour)))

	rec, _ := handlertest.Do(t, h.RegisterRoutes, hr, http.MethodGet, "/audit/events/export?action=contracts.approve&from=2024-03-01&to=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "audit-events.csv")

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, columns, records[0])
	assert.Equal(t, []string{"a1", "u1", "contracts.approve", "contract", "c1", "r1", "10.0.0.1", "2024-03-01T10:30:00Z"}, records[1])
	assert.Equal(t, "10.0.0.2, 10.0.0.3", records[2][6])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportRejectsBadFilters(t *testing.T) {
	h, mock := setup(t)

	rec, env := handlertest.Do(t, h.RegisterRoutes, hr, http.MethodGet, "/audit/events/export?from=2024-03-02&to=2024-03-01", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"from"}, handlertest.Fields(t, env))

	rec, env = handlertest.Do(t, h.RegisterRoutes, hr, http.MethodGet, "/audit/events/export?to=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"to"}, handlertest.Fields(t, env))

	rec, _ = handlertest.Do(t, h.RegisterRoutes, handlertest.User("e1", auth.RoleManager), http.MethodGet, "/audit/events/export", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

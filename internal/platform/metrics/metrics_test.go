package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCountsByRoute(t *testing.T) {
	c := New()
	c.Record(http.MethodGet, "/api/v1/employees/{id}", http.StatusOK, 15*time.Millisecond)
	c.Record(http.MethodGet, "/api/v1/employees/{id}", http.StatusOK, 5*time.Millisecond)
	c.Record(http.MethodPost, "/api/v1/auth/login", http.StatusTooManyRequests, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues(http.MethodGet, "/api/v1/employees/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimited))
}

func TestRecordJob(t *testing.T) {
	c := New()
	c.RecordJob("task_overdue", "completed")
	c.RecordJob("task_overdue", "failed")
	c.RecordJob("task_overdue", "completed")
	assert.Equal(t, 2.0, testutil.ToFloat64(c.jobRuns.WithLabelValues("task_overdue", "completed")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.Record(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{method="GET",route="unmatched",status="404"} 1`), body)
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.Record(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	c.RecordJob("x", "completed")
}

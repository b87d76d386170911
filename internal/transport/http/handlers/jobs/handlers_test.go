package jobshandler

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/auth"
	"backoffice/internal/platform/jobs"
	"backoffice/internal/platform/metrics"
	"backoffice/internal/transport/http/handlers/handlertest"
)

type runStore struct {
	mu   sync.Mutex
	runs []jobs.Run
}

func (s *runStore) CreateRun(_ context.Context, jobType, trigger string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := jobType + "-run"
	s.runs = append(s.runs, jobs.Run{ID: id, JobType: jobType, Trigger: trigger, Status: jobs.StatusRunning})
	return id, nil
}

func (s *runStore) FinishRun(_ context.Context, runID, status string, detailsJSON []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == runID {
			s.runs[i].Status = status
			s.runs[i].Details = detailsJSON
		}
	}
	return nil
}

func (s *runStore) ListRuns(_ context.Context, jobType string, _, _ int) ([]jobs.Run, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []jobs.Run{}
	for _, run := range s.runs {
		if jobType == "" || run.JobType == jobType {
			out = append(out, run)
		}
	}
	return out, len(out), nil
}

func newHandler() (*Handler, *handlertest.Recorder) {
	svc := jobs.New(&runStore{}, metrics.New())
	svc.Register(jobs.JobTaskOverdue, func(context.Context) (any, error) {
		return map[string]int{"notified": 2}, nil
	})
	svc.Register(jobs.JobSessionCleanup, func(context.Context) (any, error) {
		return nil, nil
	})
	recorder := &handlertest.Recorder{}
	return NewHandler(svc, recorder, handlertest.Perms{}), recorder
}

func TestJobsRequireJobsRunPermission(t *testing.T) {
	h, _ := newHandler()
	rec, env := handlertest.Do(t, h.RegisterRoutes, handlertest.User("hr-1", auth.RoleHR), http.MethodGet, "/jobs/", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "forbidden", env.Error.Code)
}

func TestRunJobOnDemand(t *testing.T) {
	h, recorder := newHandler()
	admin := handlertest.User("admin-1", auth.RoleAdmin)

	rec, env := handlertest.Do(t, h.RegisterRoutes, admin, http.MethodGet, "/jobs/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	handlertest.Decode(t, env, &names)
	assert.Equal(t, []string{jobs.JobSessionCleanup, jobs.JobTaskOverdue}, names)

	rec, env = handlertest.Do(t, h.RegisterRoutes, admin, http.MethodPost, "/jobs/"+jobs.JobTaskOverdue+"/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var run jobs.Run
	handlertest.Decode(t, env, &run)
	assert.Equal(t, jobs.StatusCompleted, run.Status)
	assert.Equal(t, jobs.TriggerManual, run.Trigger)
	assert.JSONEq(t, `{"notified":2}`, string(run.Details))
	assert.Equal(t, []string{"jobs.run"}, recorder.Actions())

	rec, env = handlertest.Do(t, h.RegisterRoutes, admin, http.MethodGet, "/jobs/runs?jobType="+jobs.JobTaskOverdue, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	var runs []jobs.Run
	handlertest.Decode(t, env, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, jobs.StatusCompleted, runs[0].Status)
}

func TestRunUnknownJob(t *testing.T) {
	h, recorder := newHandler()
	rec, env := handlertest.Do(t, h.RegisterRoutes, handlertest.User("admin-1", auth.RoleAdmin), http.MethodPost, "/jobs/payroll_close/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
	assert.Empty(t, recorder.Actions())
}

func TestRunWithIdempotencyKeyStartsOneRun(t *testing.T) {
	store := &runStore{}
	svc := jobs.New(store, metrics.New())
	runs := 0
	svc.Register(jobs.JobTaskOverdue, func(context.Context) (any, error) {
		runs++
		return nil, nil
	})
	recorder := &handlertest.Recorder{}
	routes := NewHandler(svc, recorder, handlertest.Perms{}).WithIdempotency(&handlertest.Keys{}).RegisterRoutes
	admin := handlertest.User("admin-1", auth.RoleAdmin)

	for range 3 {
		rec, _ := handlertest.DoWithKey(t, routes, admin, "nightly-rerun", http.MethodPost, "/jobs/"+jobs.JobTaskOverdue+"/run", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, 1, runs)
	assert.Len(t, store.runs, 1)
	assert.Equal(t, []string{"jobs.run"}, recorder.Actions())
}

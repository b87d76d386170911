package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/metrics"
)

type memoryStore struct {
	mu   sync.Mutex
	runs []Run
}

func (m *memoryStore) CreateRun(_ context.Context, jobType, trigger string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := jobType + "-" + string(rune('a'+len(m.runs)))
	m.runs = append(m.runs, Run{ID: id, JobType: jobType, Trigger: trigger, Status: StatusRunning})
	return id, nil
}

func (m *memoryStore) FinishRun(_ context.Context, runID, status string, detailsJSON []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == runID {
			m.runs[i].Status = status
			m.runs[i].Details = detailsJSON
		}
	}
	return nil
}

func (m *memoryStore) ListRuns(_ context.Context, jobType string, limit, offset int) ([]Run, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Run{}
	for _, run := range m.runs {
		if jobType == "" || run.JobType == jobType {
			out = append(out, run)
		}
	}
	return out, len(out), nil
}

func (m *memoryStore) statuses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run.Status)
	}
	return out
}

func TestRunNowRecordsCompletedRun(t *testing.T) {
	store := &memoryStore{}
	svc := New(store, metrics.New())
	svc.Register(JobTaskOverdue, func(context.Context) (any, error) {
		return map[string]int{"notified": 3}, nil
	})

	run, err := svc.RunNow(context.Background(), JobTaskOverdue)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, TriggerManual, run.Trigger)
	assert.NotNil(t, run.CompletedAt)

	var details map[string]int
	require.NoError(t, json.Unmarshal(run.Details, &details))
	assert.Equal(t, 3, details["notified"])
	assert.Equal(t, []string{StatusCompleted}, store.statuses())
}

func TestRunNowRecordsFailure(t *testing.T) {
	store := &memoryStore{}
	svc := New(store, nil)
	svc.Register(JobAuditRetention, func(context.Context) (any, error) {
		return nil, errors.New("db down")
	})

	run, err := svc.RunNow(context.Background(), JobAuditRetention)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "db down", run.Error)
	assert.Equal(t, []string{StatusFailed}, store.statuses())
}

func TestRunNowUnknownJob(t *testing.T) {
	svc := New(&memoryStore{}, nil)
	_, err := svc.RunNow(context.Background(), "nope")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestEnqueueSkipsDuplicatesAndUnknown(t *testing.T) {
	svc := New(&memoryStore{}, nil)
	svc.Register(JobSessionCleanup, func(context.Context) (any, error) { return nil, nil })

	assert.True(t, svc.Enqueue(JobSessionCleanup, TriggerSchedule))
	assert.False(t, svc.Enqueue(JobSessionCleanup, TriggerSchedule))
	assert.False(t, svc.Enqueue("unknown", TriggerSchedule))

	_, err := svc.RunNow(context.Background(), JobSessionCleanup)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestRunDrainsQueue(t *testing.T) {
	store := &memoryStore{}
	svc := New(store, nil)
	done := make(chan struct{})
	svc.Register(JobDocumentExpiry, func(context.Context) (any, error) {
		close(done)
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- svc.Run(ctx) }()

	require.True(t, svc.Enqueue(JobDocumentExpiry, TriggerSchedule))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not executed")
	}
	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedule(t *testing.T) {
	svc := New(&memoryStore{}, nil)
	svc.Register(JobCertificationExpiry, func(context.Context) (any, error) { return nil, nil })

	assert.NoError(t, svc.Schedule(map[string]string{JobCertificationExpiry: "0 7 * * *"}))
	assert.NoError(t, svc.Schedule(map[string]string{JobCertificationExpiry: "*/30 * * * * *"}))
	assert.Error(t, svc.Schedule(map[string]string{JobCertificationExpiry: "whenever"}))
	assert.Error(t, svc.Schedule(map[string]string{"ghost": "@daily"}))
	assert.Equal(t, []string{JobCertificationExpiry}, svc.Names())
}
